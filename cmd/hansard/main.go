package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/hansardgest/internal/config"
	"github.com/dgallion1/hansardgest/internal/extract"
	"github.com/dgallion1/hansardgest/internal/source"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hansard",
		Short: "Hansard transcript extraction",
		Long: `hansard turns parliamentary Hansard transcripts into structured,
speaker-attributed utterances.

Commands:
  extract  run the engine on one transcript and print JSON
  ingest   extract and store every transcript in a local archive
  index    list the transcripts advertised on a sitting index page`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(indexCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func extractCmd() *cobra.Command {
	var (
		dateHint  string
		house     string
		overrides string
		compact   bool
	)
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract utterances from one transcript",
		Long: `Extract utterances from one transcript and print the chamber results
as JSON on stdout.

Example:
  hansard extract senate/2001/20010305.xml
  hansard extract broken.sgm --date 1998-04-30 --overrides overrides.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(overrides)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if dateHint == "" {
				if d, ok := source.DateFromFilename(filepath.Base(args[0])); ok {
					dateHint = d.Format("2006-01-02")
				}
			}
			results, err := engine.Extract(extract.RawTranscript{
				Text:      string(raw),
				DateHint:  dateHint,
				HouseHint: house,
			})
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), results, !compact)
		},
	}
	cmd.Flags().StringVar(&dateHint, "date", "", "sitting date hint (YYYY-MM-DD); defaults to the date in the filename")
	cmd.Flags().StringVar(&house, "house", "", "house hint (hofreps or senate)")
	cmd.Flags().StringVar(&overrides, "overrides", os.Getenv("OVERRIDES_FILE"), "YAML date override file")
	cmd.Flags().BoolVar(&compact, "compact", false, "print JSON without indentation")
	return cmd
}

func indexCmd() *cobra.Command {
	var (
		baseURL string
		crawl   bool
		since   string
	)
	cmd := &cobra.Command{
		Use:   "index <file.html | url>",
		Short: "List transcripts on a sitting index page",
		Long: `List the transcripts advertised on a ParlInfo sitting index page.

With --crawl the argument is fetched as a URL and "previous sitting week"
links are followed back to --since.

Example:
  hansard index saved.html --base https://parlinfo.aph.gov.au/
  hansard index https://parlinfo.aph.gov.au/... --crawl --since 2024-01-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var listings []source.Listing
			if crawl {
				sinceDate, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
				}
				found, err := source.NewFetcher().Crawl(cmd.Context(), args[0], sinceDate)
				if err != nil && len(found) == 0 {
					return err
				}
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "crawl stopped early:", err)
				}
				listings = slices.Collect(maps.Values(found))
				sortListings(listings)
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				page, err := source.ParseSittingIndex(f, baseURL)
				if err != nil {
					return err
				}
				listings = page.Listings
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(listings)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base", "https://parlinfo.aph.gov.au/", "base URL for resolving relative links")
	cmd.Flags().BoolVar(&crawl, "crawl", false, "fetch the argument as a URL and follow previous-week links")
	cmd.Flags().StringVar(&since, "since", "", "oldest sitting date to include when crawling (YYYY-MM-DD)")
	return cmd
}

func newEngine(overridesPath string) (*extract.Engine, error) {
	if overridesPath == "" {
		return extract.New(), nil
	}
	o, err := config.LoadOverrides(overridesPath)
	if err != nil {
		return nil, err
	}
	return extract.New(extract.WithDateOverrides(o.DateOverrides)), nil
}

func writeResults(w io.Writer, results []extract.ChamberResult, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(results)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func sortListings(listings []source.Listing) {
	slices.SortFunc(listings, func(a, b source.Listing) int {
		return strings.Compare(a.Name, b.Name)
	})
}
