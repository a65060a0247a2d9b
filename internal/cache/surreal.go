package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrade requires HTTP/1.1; keep ALPN from negotiating HTTP/2 over WSS.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

const (
	surrealTable  = "text_cache"
	surrealRecord = "all_texts"
)

const surrealSchemaSQL = `
DEFINE TABLE IF NOT EXISTS text_cache SCHEMALESS;
`

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// SurrealCache stores the text list in one SurrealDB record.
type SurrealCache struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	logger logger.Logger
}

// surrealTextSet is the stored record.
type surrealTextSet struct {
	Texts []models.TextClassification `json:"texts"`
}

// NewSurrealCache connects to SurrealDB with an auto-reconnecting WebSocket
// and makes sure the cache table exists.
func NewSurrealCache(ctx context.Context, cfg SurrealConfig, log *slog.Logger) (*SurrealCache, error) {
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())
	codec := surrealcbor.New()

	// gorillaws appends /rpc itself
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB text cache", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	auth := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == "database" {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	if _, err := surrealdb.Query[any](ctx, db, surrealSchemaSQL, nil); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SurrealCache{conn: conn, db: db, logger: sdkLogger}, nil
}

// Close closes the SurrealDB connection.
func (s *SurrealCache) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// Load reads the cached list. A missing record yields nil.
func (s *SurrealCache) Load(ctx context.Context) ([]models.TextClassification, error) {
	results, err := surrealdb.Query[[]surrealTextSet](ctx, s.db, `
		SELECT texts FROM type::record($tb, $id)
	`, map[string]any{"tb": surrealTable, "id": surrealRecord})
	if err != nil {
		return nil, fmt.Errorf("load text cache: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return (*results)[0].Result[0].Texts, nil
}

// Save replaces the cached list.
func (s *SurrealCache) Save(ctx context.Context, texts []models.TextClassification) error {
	if texts == nil {
		texts = []models.TextClassification{}
	}
	_, err := surrealdb.Query[any](ctx, s.db, `
		UPSERT type::record($tb, $id) CONTENT {
			texts: $texts,
			updated: time::now()
		}
	`, map[string]any{"tb": surrealTable, "id": surrealRecord, "texts": texts})
	if err != nil {
		return fmt.Errorf("save text cache: %w", err)
	}
	return nil
}
