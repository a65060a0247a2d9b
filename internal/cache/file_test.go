package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/cache"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCacheInterface(t *testing.T) {
	var _ cache.TextCache = (*cache.FileCache)(nil)
}

func TestFileCacheMissing(t *testing.T) {
	c := cache.NewFileCache(filepath.Join(t.TempDir(), "nested", "all-texts.yaml"))

	texts, err := c.Load(context.Background())
	require.NoError(t, err, "missing file is not an error")
	assert.Nil(t, texts)
}

func TestFileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := cache.NewFileCache(filepath.Join(t.TempDir(), "nested", "all-texts.yaml"))

	want := []models.TextClassification{
		{Text: "a man climbing a fence", Classification: true},
		{Text: "a tree", Classification: false},
	}
	require.NoError(t, c.Save(ctx, want))

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, c.Save(ctx, nil))
	got, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	data, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), cache.Key)
}

func TestFileCacheCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all-texts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("all-texts: {not: [a list"), 0o644))

	_, err := cache.NewFileCache(path).Load(context.Background())
	assert.Error(t, err)
}
