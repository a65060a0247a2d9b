package models

// TsnePoint is one projected point labeled with its source text.
type TsnePoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// TsneSeries is one plottable scatter series, one per category.
type TsneSeries struct {
	Name   string      `json:"name"`
	Points []TsnePoint `json:"points"`
}

// RocResponse is a ROC curve with its area under the curve.
// FPR, TPR and Thresholds have one value per sample point.
type RocResponse struct {
	FPR        []float64 `json:"fpr"`
	TPR        []float64 `json:"tpr"`
	Thresholds []float64 `json:"thresholds"`
	AUC        float64   `json:"auc"`
}

// RocPoint is one sample of a ROC curve.
type RocPoint struct {
	FPR       float64 `json:"fpr"`
	TPR       float64 `json:"tpr"`
	Threshold float64 `json:"threshold"`
}

// Points zips the curve arrays into points.
func (r RocResponse) Points() []RocPoint {
	n := min(len(r.FPR), len(r.TPR), len(r.Thresholds))
	points := make([]RocPoint, n)
	for i := 0; i < n; i++ {
		points[i] = RocPoint{FPR: r.FPR[i], TPR: r.TPR[i], Threshold: r.Thresholds[i]}
	}
	return points
}
