//go:build integration

package cache_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/cache"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startSurrealDB starts a throwaway SurrealDB container and returns its RPC URL.
func startSurrealDB(t *testing.T) string {
	t.Helper()
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "should start SurrealDB container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	// testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	require.NoError(t, err)

	return fmt.Sprintf("ws://%s:%s/rpc", host, port.Port())
}

func TestSurrealCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	url := os.Getenv("SURREALDB_URL")
	if url == "" {
		url = startSurrealDB(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := cache.NewSurrealCache(ctx, cache.SurrealConfig{
		URL:       url,
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	require.NoError(t, err, "should connect to SurrealDB")
	defer c.Close(ctx)

	var _ cache.TextCache = c

	empty, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty, "nothing cached yet")

	want := []models.TextClassification{
		{Text: "a man climbing a fence", Classification: true},
		{Text: "a tree", Classification: false},
	}
	require.NoError(t, c.Save(ctx, want))

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, c.Save(ctx, want[:1]))
	got, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want[:1], got, "save replaces the list")
}
