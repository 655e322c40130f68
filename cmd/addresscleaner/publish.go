package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/event"
	"github.com/postcodecheck/addresscleaner/internal/ingest"
	pkgkafka "github.com/postcodecheck/addresscleaner/pkg/kafka"
)

func createPublishCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "publish [filename]",
		Short: "Publish a reference CSV as reference.upserted events",
		Long: `Read a ';' separated reference CSV and publish every record to Kafka, so
that all running address cleaners index it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers); err != nil {
				return fmt.Errorf("kafka unreachable: %w", err)
			}

			kafkaProducer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
			defer kafkaProducer.Close()
			producer := event.NewProducer(kafkaProducer, log)

			total := 0
			err := eachBatch(ctx, ingest.NewCSVFile(args[0]), batchSize, func(batch []domain.ReferenceRecord) error {
				if err := producer.PublishRecordsUpserted(ctx, batch); err != nil {
					return err
				}
				total += len(batch)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d reference events to %s.\n", total, event.TopicReferenceUpserted)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "events per Kafka write")
	return cmd
}
