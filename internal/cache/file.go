package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
	"gopkg.in/yaml.v3"
)

// FileCache stores the text list in a YAML file.
type FileCache struct {
	path string
}

// fileContent is the on-disk layout: one key holding the list.
type fileContent struct {
	Texts []models.TextClassification `yaml:"all-texts"`
}

// NewFileCache creates a cache backed by the YAML file at path.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Path returns the cache file location.
func (f *FileCache) Path() string {
	return f.path
}

// Load reads the list from the file. A missing file yields nil.
func (f *FileCache) Load(ctx context.Context) ([]models.TextClassification, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read text cache %s: %w", f.path, err)
	}

	var content fileContent
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("parse text cache %s: %w", f.path, err)
	}
	return content.Texts, nil
}

// Save writes the list, replacing the file atomically.
func (f *FileCache) Save(ctx context.Context, texts []models.TextClassification) error {
	if texts == nil {
		texts = []models.TextClassification{}
	}
	data, err := yaml.Marshal(fileContent{Texts: texts})
	if err != nil {
		return fmt.Errorf("marshal text cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".all-texts-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write text cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close text cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace text cache: %w", err)
	}
	return nil
}
