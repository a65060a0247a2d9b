// Package cache persists the user's last text set between sessions.
package cache

import (
	"context"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
)

// Key is the name under which the text set is stored.
const Key = "all-texts"

// TextCache is a single-value store holding the last known text list.
type TextCache interface {
	// Load returns the cached list, or nil when nothing was cached yet.
	Load(ctx context.Context) ([]models.TextClassification, error)
	// Save replaces the cached list.
	Save(ctx context.Context, texts []models.TextClassification) error
}
