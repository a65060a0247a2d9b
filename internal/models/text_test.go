package models

import (
	"reflect"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "a man", "a man"},
		{"uppercase", "A Man Climbing", "a man climbing"},
		{"trimmed", "  fence \t", "fence"},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTexts(t *testing.T) {
	in := []TextClassification{
		{Text: "Zebra", Classification: false},
		{Text: "a person", Classification: true},
		{Text: "  ", Classification: true},
		{Text: "A Person", Classification: false},
		{Text: "fence", Classification: true},
	}

	got := NormalizeTexts(in)
	want := []TextClassification{
		{Text: "a person", Classification: false},
		{Text: "fence", Classification: true},
		{Text: "zebra", Classification: false},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTexts() = %v, want %v", got, want)
	}

	if in[0].Text != "Zebra" {
		t.Errorf("input was modified: %v", in)
	}

	again := NormalizeTexts(got)
	if !reflect.DeepEqual(again, got) {
		t.Errorf("NormalizeTexts is not idempotent: %v vs %v", again, got)
	}
}

func TestIndexOfText(t *testing.T) {
	list := NormalizeTexts([]TextClassification{{Text: "b"}, {Text: "a"}, {Text: "c"}})

	if i := IndexOfText(list, " B "); i != 1 {
		t.Errorf("IndexOfText(b) = %d, want 1", i)
	}
	if i := IndexOfText(list, "d"); i != -1 {
		t.Errorf("IndexOfText(d) = %d, want -1", i)
	}
}

func TestLinearizeRoundTrip(t *testing.T) {
	list := []TextClassification{{Text: "a", Classification: true}, {Text: "b"}}
	lt := Linearize(list)

	if !reflect.DeepEqual(lt.Texts, []string{"a", "b"}) {
		t.Errorf("texts = %v", lt.Texts)
	}
	if !reflect.DeepEqual(lt.Classifications, []bool{true, false}) {
		t.Errorf("classifications = %v", lt.Classifications)
	}
	if got := Delinearize(lt.Texts, lt.Classifications); !reflect.DeepEqual(got, list) {
		t.Errorf("Delinearize() = %v, want %v", got, list)
	}
}

func TestSplitSubtractionTexts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"blank entries", " , ,", nil},
		{"trimmed", " a person ,fence", []string{"a person", "fence"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitSubtractionTexts(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitSubtractionTexts(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRocPoints(t *testing.T) {
	roc := RocResponse{
		FPR:        []float64{0, 0.5, 1},
		TPR:        []float64{0, 0.8, 1},
		Thresholds: []float64{1.9, 0.4, 0.1},
		AUC:        0.8,
	}
	points := roc.Points()
	if len(points) != 3 {
		t.Fatalf("len(points) = %d, want 3", len(points))
	}
	if points[1] != (RocPoint{FPR: 0.5, TPR: 0.8, Threshold: 0.4}) {
		t.Errorf("points[1] = %+v", points[1])
	}
}

func TestConfusionAccuracy(t *testing.T) {
	c := ConfusionTopK{TP: 2, FN: 1, FP: 0, TN: 3}
	if c.Total() != 6 {
		t.Errorf("Total() = %d, want 6", c.Total())
	}
	if got := c.Accuracy(); got != 5.0/6.0 {
		t.Errorf("Accuracy() = %v", got)
	}
	if (ConfusionTopK{}).Accuracy() != 0 {
		t.Errorf("empty matrix accuracy should be 0")
	}
}
