// Package models defines the data structures shared by the playground client.
package models

import (
	"errors"
	"slices"
	"strings"
)

// ErrEmptyText is returned when a text is empty after normalization.
var ErrEmptyText = errors.New("empty text")

// TextClassification is a user-labeled probe text.
// Classification true means the text describes an alarm.
type TextClassification struct {
	Text           string `json:"text" yaml:"text"`
	Classification bool   `json:"classification" yaml:"classification"`
}

// NormalizeText returns the canonical key for a text: trimmed and lowercased.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NormalizeTexts normalizes every entry, drops empty texts, removes duplicates
// (the last occurrence wins) and sorts ascending by text.
// The input slice is not modified.
func NormalizeTexts(list []TextClassification) []TextClassification {
	byText := make(map[string]bool, len(list))
	for _, t := range list {
		key := NormalizeText(t.Text)
		if key == "" {
			continue
		}
		byText[key] = t.Classification
	}

	out := make([]TextClassification, 0, len(byText))
	for text, classification := range byText {
		out = append(out, TextClassification{Text: text, Classification: classification})
	}
	slices.SortFunc(out, func(a, b TextClassification) int {
		return strings.Compare(a.Text, b.Text)
	})
	return out
}

// IndexOfText returns the position of the normalized text in a sorted list, or -1.
func IndexOfText(list []TextClassification, text string) int {
	key := NormalizeText(text)
	i, found := slices.BinarySearchFunc(list, key, func(t TextClassification, k string) int {
		return strings.Compare(t.Text, k)
	})
	if !found {
		return -1
	}
	return i
}

// LinearizedTexts holds texts and their classifications as parallel arrays,
// the shape expected by the remote service.
type LinearizedTexts struct {
	Texts           []string
	Classifications []bool
}

// Linearize splits a text list into parallel arrays.
func Linearize(list []TextClassification) LinearizedTexts {
	lt := LinearizedTexts{
		Texts:           make([]string, len(list)),
		Classifications: make([]bool, len(list)),
	}
	for i, t := range list {
		lt.Texts[i] = t.Text
		lt.Classifications[i] = t.Classification
	}
	return lt
}

// Delinearize zips parallel arrays back into a text list.
// Extra elements of the longer array are ignored.
func Delinearize(texts []string, classifications []bool) []TextClassification {
	n := min(len(texts), len(classifications))
	out := make([]TextClassification, n)
	for i := 0; i < n; i++ {
		out[i] = TextClassification{Text: texts[i], Classification: classifications[i]}
	}
	return out
}

// SplitSubtractionTexts parses a comma-separated list of texts to subtract.
// Entries are trimmed and empty ones dropped; nil is returned when nothing remains.
func SplitSubtractionTexts(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
