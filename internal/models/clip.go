package models

// Category is the ground-truth label of a clip.
type Category string

const (
	CategoryAlarm       Category = "Alarm"
	CategoryBackground  Category = "Background"
	CategoryDistraction Category = "Distraction"
)

// IsAlarm reports whether the category is the alarm category.
func (c Category) IsAlarm() bool {
	return c == CategoryAlarm
}

// ClipIndex describes a video clip of the catalogue.
// Optional fields are nil when the service did not provide them.
type ClipIndex struct {
	Index       string   `json:"index"`
	Category    Category `json:"category"`
	IsAlarm     bool     `json:"isAlarm"`
	Distance    *float64 `json:"distance,omitempty"`
	Approach    *string  `json:"approach,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// NewClipIndex builds a clip with IsAlarm derived from the category.
func NewClipIndex(index string, category Category) ClipIndex {
	return ClipIndex{Index: index, Category: category, IsAlarm: category.IsAlarm()}
}

// ClipsFiltering is the user-adjustable display filter for clips.
type ClipsFiltering struct {
	ShowAlarms        bool  `json:"showAlarms"`
	ShowNotAlarms     bool  `json:"showNotAlarms"`
	ShowOnlyWrongTopK []int `json:"showOnlyWrongTopK"`
}

// DefaultClipsFiltering shows every clip.
func DefaultClipsFiltering() ClipsFiltering {
	return ClipsFiltering{ShowAlarms: true, ShowNotAlarms: true, ShowOnlyWrongTopK: []int{}}
}
