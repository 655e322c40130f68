package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/postcodecheck/addresscleaner/internal/app"
	"github.com/postcodecheck/addresscleaner/internal/config"
	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/ingest"
	"github.com/postcodecheck/addresscleaner/internal/service"
	"github.com/postcodecheck/addresscleaner/pkg/database"
)

func createIndexCmd() *cobra.Command {
	var store bool

	cmd := &cobra.Command{
		Use:   "index [filename]",
		Short: "Index a reference CSV into the search engine",
		Long: `Read a ';' separated reference CSV and bulk index it into the configured
search engine. With --store the records are also written to Postgres.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src := ingest.NewCSVFile(args[0])

			if store {
				n, err := storeReferences(ctx, src)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %d reference records in Postgres.\n", n)
			}

			eng, err := app.NewSearchEngine(cfg, log)
			if err != nil {
				return err
			}
			if cfg.SearchEngine == config.EngineMemory {
				log.Warn("memory engine selected: the index only lives for this run")
			}

			start := time.Now()
			n, err := service.NewReferenceService(eng, log).Import(ctx, src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d reference records in %s.\n", n, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&store, "store", false, "also write the records to the Postgres reference table")
	return cmd
}

// storeReferences writes every record of src to Postgres in batches.
func storeReferences(ctx context.Context, src service.ReferenceSource) (int, error) {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return 0, fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if cfg.PostgresMigrate {
		if err := database.RunMigrations(ctx, pool, ingest.Migrations(), log); err != nil {
			return 0, fmt.Errorf("run migrations: %w", err)
		}
	}

	pg := ingest.NewPostgresSource(pool, database.QueryTracer{SlowThreshold: time.Second, Logger: log})
	total := 0
	err = eachBatch(ctx, src, service.ImportBatchSize, func(batch []domain.ReferenceRecord) error {
		n, err := pg.Store(ctx, batch)
		total += n
		return err
	})
	if err != nil {
		return total, err
	}
	log.Info("references stored", slog.Int("count", total))
	return total, nil
}

// eachBatch groups the records of src into slices of at most size and passes
// them to fn. The slice is reused between calls.
func eachBatch(ctx context.Context, src service.ReferenceSource, size int, fn func([]domain.ReferenceRecord) error) error {
	batch := make([]domain.ReferenceRecord, 0, size)
	err := src.Each(ctx, func(r domain.ReferenceRecord) error {
		batch = append(batch, r)
		if len(batch) < size {
			return nil
		}
		err := fn(batch)
		batch = batch[:0]
		return err
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", src.Name(), err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
