package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
	"scholardigest/internal/enrichment"
	"scholardigest/internal/report"
	"scholardigest/internal/scoring"
	"scholardigest/internal/services/gmail"
	"scholardigest/internal/storage"
)

const unscoredLabel = "Unscored"

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the watermark and stored article counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cfg *config.Config, logger *slog.Logger, store *storage.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				mark, err := newWatermark(cfg, logger).Get()
				if err != nil {
					return err
				}
				records, err := store.LoadAll(commandCtx(cmd))
				if err != nil {
					return err
				}

				lines := renderSectionHeader("Pipeline", colorize)
				if mark != nil {
					lines = append(lines, renderStatusLine("Watermark", statusOK, formatTimestamp(mark), colorize))
				} else {
					lines = append(lines, renderStatusLine("Watermark", statusWarn, "never run; next fetch is unbounded", colorize))
				}
				lines = append(lines, tokenStatusLine(cfg, colorize))
				lines = append(lines, renderStatusLine("Scorer", statusInfo, cfg.LLM.Provider+" "+cfg.LLM.Model, colorize))
				lines = append(lines, renderStatusLine("Enrichment", statusInfo, enabledLabel(cfg.Enrichment.EnableWebArticle), colorize))
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Articles", colorize)...)
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}

				fmt.Fprintln(out, renderTierCounts(cfg, records))
				pendingScore := len(scoring.Eligible(records, cfg.Scoring.RetryErrors))
				fmt.Fprintln(out, renderStatusLine("Pending scoring", pendingKind(pendingScore), strconv.Itoa(pendingScore), colorize))
				if cfg.Enrichment.EnableWebArticle {
					pending := len(enrichment.Eligible(records, cfg.EnrichmentTiers()))
					fmt.Fprintln(out, renderStatusLine("Pending enrichment", pendingKind(pending), strconv.Itoa(pending), colorize))
				}
				return nil
			})
		},
	}
}

func tokenStatusLine(cfg *config.Config, colorize bool) string {
	_, err := gmail.LoadToken(cfg.Paths.TokenFile)
	switch {
	case err == nil:
		return renderStatusLine("Gmail token", statusOK, cfg.Paths.TokenFile, colorize)
	case errors.Is(err, gmail.ErrTokenMissing):
		return renderStatusLine("Gmail token", statusWarn, "missing; run 'scholardigest auth'", colorize)
	default:
		return renderStatusLine("Gmail token", statusWarn, err.Error(), colorize)
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func pendingKind(count int) statusKind {
	if count > 0 {
		return statusInfo
	}
	return statusOK
}

// renderTierCounts tabulates records per relevance label, configured tiers
// first, then any other stored labels.
func renderTierCounts(cfg *config.Config, records []article.Record) string {
	counts := map[string]int{}
	for _, rec := range records {
		label := unscoredLabel
		if rec.Relevance != nil {
			label = string(*rec.Relevance)
		}
		counts[label]++
	}
	order := []string{}
	for _, tier := range append(cfg.ScoreTiers(), article.TierError) {
		order = append(order, string(tier))
	}
	order = append(order, unscoredLabel)
	known := map[string]bool{}
	for _, label := range order {
		known[label] = true
	}
	for label := range counts {
		if !known[label] {
			order = append(order, label)
		}
	}

	rows := make([][]string, 0, len(order))
	for _, label := range order {
		rows = append(rows, []string{label, strconv.Itoa(counts[label])})
	}
	return renderTable(tierCountColumns, rows, []string{"Total", strconv.Itoa(len(records))})
}

func newArticlesCommand(ctx *commandContext) *cobra.Command {
	articlesCmd := &cobra.Command{
		Use:   "articles",
		Short: "Inspect stored articles",
	}
	articlesCmd.AddCommand(newArticlesListCommand(ctx))
	return articlesCmd
}

func newArticlesListCommand(ctx *commandContext) *cobra.Command {
	var tierFlag string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored articles in report order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			return ctx.withStore(cmd, func(cfg *config.Config, _ *slog.Logger, store *storage.Store) error {
				records, err := store.LoadAll(commandCtx(cmd))
				if err != nil {
					return err
				}
				tiers := cfg.ReportTiers()
				if strings.TrimSpace(tierFlag) != "" {
					tiers = []article.Tier{resolveTier(cfg, tierFlag)}
				}
				selected := report.Select(records, report.Criteria{Tiers: tiers})
				out := cmd.OutOrStdout()
				if len(selected) == 0 {
					fmt.Fprintln(out, "No articles found")
					return nil
				}
				total := len(selected)
				if limit > 0 && len(selected) > limit {
					selected = selected[:limit]
				}
				rows := make([][]string, 0, len(selected))
				for i, rec := range selected {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						string(*rec.Relevance),
						report.FormatDate(rec),
						rec.Title,
						yesNo(rec.Enriched()),
					})
				}
				fmt.Fprintln(out, renderTable(articleListColumns, rows, nil))
				if len(selected) < total {
					fmt.Fprintf(out, "Showing %d of %d articles\n", len(selected), total)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tierFlag, "tier", "", "Only list articles in this relevance tier")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of articles to list (0 for all)")
	return cmd
}

// resolveTier maps a user-supplied label onto the configured spelling.
func resolveTier(cfg *config.Config, label string) article.Tier {
	candidates := append(cfg.ScoreTiers(), article.TierError)
	if tier, ok := article.ParseTier(label, candidates...); ok {
		return tier
	}
	return article.Tier(strings.TrimSpace(label))
}

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Record store maintenance",
	}
	dbCmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Mirror the CSV article table into SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedStore(cmd, func(_ *config.Config, _ *slog.Logger, store *storage.Store) error {
				if err := store.EnsureSchema(commandCtx(cmd)); err != nil {
					return err
				}
				result, err := store.Sync(commandCtx(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced %d records (%d inserted, %d updated)\n",
					result.Records, result.Inserted, result.Updated)
				return nil
			})
		},
	})
	return dbCmd
}
