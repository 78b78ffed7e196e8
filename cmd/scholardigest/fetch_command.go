package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"scholardigest/internal/config"
	"scholardigest/internal/pipeline"
	"scholardigest/internal/services"
	"scholardigest/internal/storage"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var sinceFlag string
	var noReport bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch new alerts, score and enrich them, and write a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := optionalTimestamp("since", sinceFlag)
			if err != nil {
				return err
			}
			return ctx.withLockedStore(cmd, func(cfg *config.Config, logger *slog.Logger, store *storage.Store) error {
				runCtx := commandCtx(cmd)
				mail, err := newMailSource(runCtx, cfg, logger)
				if err != nil {
					return err
				}
				runner, err := buildRunner(cfg, logger, store, mail)
				if err != nil {
					return err
				}
				summary, err := runner.Run(runCtx, pipeline.RunOptions{Since: since, SkipReport: noReport})
				if err != nil {
					if pipeline.IsCancelled(err) {
						return err
					}
					return fmt.Errorf("run %s failed (%s): %w", summary.RunID, services.FailureKind(err), err)
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sinceFlag, "since", "", "Fetch messages from this time instead of the stored watermark")
	cmd.Flags().BoolVar(&noReport, "no-report", false, "Stop after enrichment without writing a report")
	return cmd
}

func printSummary(out io.Writer, summary pipeline.Summary) {
	fmt.Fprintf(out, "Run %s\n", summary.RunID)
	fmt.Fprintf(out, "Since: %s\n", formatTimestamp(summary.Since))
	fmt.Fprintf(out, "Messages: %d (extraction failures: %d)\n", summary.Messages, summary.ExtractFailures)
	fmt.Fprintf(out, "Articles: %d new of %d (duplicates: %d, invalid: %d)\n",
		summary.Ingest.Inserted, summary.Ingest.Received, summary.Ingest.Duplicates, summary.Ingest.Invalid)
	fmt.Fprintf(out, "Scored: %d (failed: %d, excluded: %d)\n",
		summary.Scoring.Scored, summary.Scoring.Failed, summary.Scoring.Excluded)
	if summary.Enrichment.Disabled {
		fmt.Fprintln(out, "Enrichment: disabled")
	} else {
		fmt.Fprintf(out, "Enriched: %d (failed: %d, empty: %d)\n",
			summary.Enrichment.Enriched, summary.Enrichment.Failed, summary.Enrichment.Empty)
	}
	if summary.WatermarkAdvanced {
		fmt.Fprintf(out, "Watermark: %s\n", formatTimestamp(summary.Watermark))
	} else {
		fmt.Fprintln(out, "Watermark: unchanged")
	}
	if summary.Report != nil {
		fmt.Fprintf(out, "Report: %s (%d articles)\n", summary.Report.Path, summary.Report.Articles)
	}
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var sinceFlag string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a report from stored articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := optionalTimestamp("since", sinceFlag)
			if err != nil {
				return err
			}
			return ctx.withLockedStore(cmd, func(cfg *config.Config, logger *slog.Logger, store *storage.Store) error {
				runner, err := buildRunner(cfg, logger, store, nil)
				if err != nil {
					return err
				}
				result, err := runner.Report(commandCtx(cmd), since)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report: %s (%d articles)\n", result.Path, result.Articles)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sinceFlag, "since", "", "Only include articles received at or after this time")
	return cmd
}

func newUpdateTimestampCommand(ctx *commandContext) *cobra.Command {
	var valueFlag string

	cmd := &cobra.Command{
		Use:   "update-ts",
		Short: "Set the last-run watermark (defaults to now)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := time.Now()
			if valueFlag != "" {
				parsed, err := parseTimestamp(valueFlag)
				if err != nil {
					return fmt.Errorf("--value: %w", err)
				}
				ts = parsed
			}
			return ctx.withLock(func(cfg *config.Config, logger *slog.Logger) error {
				if err := newWatermark(cfg, logger).Set(ts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watermark set to %s\n", formatTimestamp(&ts))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&valueFlag, "value", "", "Timestamp to store (Unix seconds, RFC 3339, or YYYY-MM-DD[ HH:MM[:SS]])")
	return cmd
}
