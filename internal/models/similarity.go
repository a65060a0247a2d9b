package models

// ClipSimilarity is the similarity between one clip and one text.
type ClipSimilarity struct {
	Text           string  `json:"text"`
	Classification bool    `json:"classification"`
	Similarity     float64 `json:"similarity"`
}

// ConfusionTopK is the confusion matrix obtained when a clip is predicted
// as alarm if any of its K most similar texts is alarm-labeled.
type ConfusionTopK struct {
	TP                     int             `json:"tp"`
	FN                     int             `json:"fn"`
	FP                     int             `json:"fp"`
	TN                     int             `json:"tn"`
	TopKTextClassification map[string]bool `json:"topk_text_classification"`
}

// Total returns the number of clips counted in the matrix.
func (c ConfusionTopK) Total() int {
	return c.TP + c.FN + c.FP + c.TN
}

// Accuracy returns (tp+tn)/total, or 0 for an empty matrix.
func (c ConfusionTopK) Accuracy() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.TP+c.TN) / float64(total)
}

// SimilarityResult is the decoded response of a similarity search.
type SimilarityResult struct {
	Similarities map[string][]ClipSimilarity `json:"similarities"`
	Confusion    map[int]ConfusionTopK       `json:"confusion"`
	Min          float64                     `json:"min"`
	Max          float64                     `json:"max"`
}
