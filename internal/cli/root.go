// Package cli provides the command-line interface for the playground client.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/cache"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/client"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/config"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/metrics"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string
	apiURL     string

	// Shared components, built in PersistentPreRunE
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func() error
	collector  *metrics.Collector
	apiClient  *client.Client
	textCache  cache.TextCache
	closeCache func(context.Context) error
	st         *store.Store
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "playground",
	Short: "Prompt-engineering playground for the iLIDS clip classifier",
	Long: `Playground is a client for the iLIDS prompt-engineering service.

Maintain a set of labeled probe texts, pick a model variation and a text
classification method, and inspect how well the texts separate alarm clips
from background ones: per-clip similarities, top-K confusion matrices,
ROC/AUC and t-SNE projections.

Texts are kept in sync with the service and cached locally.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// A missing .env file is fine
		_ = godotenv.Load()

		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.APIURL = apiURL
		}

		// The dashboard owns the terminal, everything else logs to stderr on -v
		quiet := !verbose || cmd.Name() == "dashboard"
		logger, closeLog = config.SetupLogger(cfg, quiet)
		slog.SetDefault(logger)

		collector = metrics.NewCollector()
		apiClient = client.New(cfg.APIURL, cfg.ClientTimeout,
			client.WithMetrics(collector),
			client.WithLogger(logger),
			client.WithSlowThreshold(cfg.SlowRequestThreshold),
		)

		textCache, closeCache, err = newTextCache(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		st = store.New(apiClient,
			store.WithCache(textCache),
			store.WithLogger(logger),
			store.WithMinTextsForTsne(cfg.MinTextsForTsne),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			st.Close()
		}
		if closeCache != nil {
			if err := closeCache(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close text cache: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// newTextCache opens the configured text cache backend.
func newTextCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.TextCache, func(context.Context) error, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendFile, "":
		return cache.NewFileCache(cfg.CachePath), nil, nil
	case config.CacheBackendSurrealDB:
		sc, err := cache.NewSurrealCache(ctx, cache.SurrealConfig{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open text cache: %w", err)
		}
		return sc, sc.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}

// initStore loads texts, options and clips, then waits for the analytics
// they trigger.
func initStore(ctx context.Context) error {
	if err := st.Init(ctx); err != nil {
		return err
	}
	st.Wait()
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $PLAYGROUND_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "service base URL (default $PLAYGROUND_API_URL)")

	// Add subcommands
	rootCmd.AddCommand(textsCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(clipsCmd)
	rootCmd.AddCommand(similaritiesCmd)
	rootCmd.AddCommand(confusionCmd)
	rootCmd.AddCommand(rocCmd)
	rootCmd.AddCommand(tsneCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(imageCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(dashboardCmd)
}
