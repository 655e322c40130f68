package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/postcodecheck/addresscleaner/internal/app"
	"github.com/postcodecheck/addresscleaner/internal/config"
	"github.com/postcodecheck/addresscleaner/internal/ingest"
	"github.com/postcodecheck/addresscleaner/internal/service"
	"github.com/postcodecheck/addresscleaner/pkg/logger"
)

var (
	// Global flags and configuration
	envFile    string
	logLevel   string
	references string

	cfg *config.Config
	log *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "addresscleaner",
		Short: "Dutch address resolution against a postcode reference corpus",
		Long: `Resolve free-form Dutch addresses to the authoritative postcode,
street and city of the reference corpus, and maintain that corpus.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(envFile)
			if err != nil {
				return err
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			log = logger.NewText(logLevel, os.Stderr)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to read before the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(createResolveCmd())
	rootCmd.AddCommand(createBatchCmd())
	rootCmd.AddCommand(createIndexCmd())
	rootCmd.AddCommand(createPublishCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// addReferencesFlag registers --references on commands that resolve.
func addReferencesFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&references, "references", "",
		"reference CSV to load into the engine first (needed with the memory engine)")
}

// newResolver builds the resolver from the configuration and loads the
// reference CSV given with --references.
func newResolver(ctx context.Context) (*service.Resolver, error) {
	eng, err := app.NewSearchEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	normalizer, err := app.NewNormalizer(cfg, log)
	if err != nil {
		return nil, err
	}

	if references != "" {
		n, err := service.NewReferenceService(eng, log).Import(ctx, ingest.NewCSVFile(references))
		if err != nil {
			return nil, err
		}
		log.Info("reference corpus loaded", slog.String("path", references), slog.Int("records", n))
	} else if cfg.SearchEngine == config.EngineMemory {
		log.Warn("memory engine without --references: nothing will match")
	}

	return service.NewResolver(normalizer, eng, app.ResolverConfig(cfg), log), nil
}
