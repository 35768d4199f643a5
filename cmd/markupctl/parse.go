package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"prom-markup/internal/catalog"
	"prom-markup/internal/domain"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var parseOutput string

var parseCmd = &cobra.Command{
	Use:   "parse <file-or-url>",
	Short: "Parse a catalog feed and print its statistics",
	Long: `Parse a YML catalog feed from a local file or an http(s) URL, aggregate the
offer counts of its category tree and print the result.`,
	Example: `  markupctl parse ./feed.xml
  markupctl parse https://example.com/feed.xml --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parseOutput, "output", "table", "Output format: table or json")
}

type parseReport struct {
	Source     string              `json:"source"`
	Stats      domain.CatalogStats `json:"stats"`
	Categories []domain.Category   `json:"categories"`
}

func runParse(cmd *cobra.Command, args []string) error {
	source := args[0]

	snapshot, err := loadSnapshot(cmd.Context(), source)
	if err != nil {
		return err
	}

	categories, err := catalog.AggregateOfferCounts(snapshot.Categories, snapshot.Offers)
	if err != nil {
		return fmt.Errorf("failed to aggregate categories: %w", err)
	}

	report := parseReport{
		Source: source,
		Stats: domain.CatalogStats{
			NumberOfProducts:   len(snapshot.Offers),
			NumberOfCategories: len(categories),
		},
		Categories: categories,
	}

	switch strings.ToLower(parseOutput) {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "table":
		printParseTable(report)
		return nil
	default:
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", parseOutput)
	}
}

func loadSnapshot(ctx context.Context, source string) (*domain.CatalogSnapshot, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		log.Info("Downloading catalog", zap.String("url", source))
		return catalog.NewFetcher(cfg.Feed.Timeout).Fetch(ctx, source)
	}

	log.Info("Reading catalog file", zap.String("file", source))
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return catalog.ParseReader(f)
}

func printParseTable(report parseReport) {
	fmt.Printf("\nCatalog %s\n", report.Source)
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Offers:     %d\n", report.Stats.NumberOfProducts)
	fmt.Printf("Categories: %d\n\n", report.Stats.NumberOfCategories)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tPARENT\tNAME\tOFFERS")
	for _, c := range report.Categories {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.ID, c.ParentID, c.Name, c.NumberOfOffers)
	}
	w.Flush()
}
