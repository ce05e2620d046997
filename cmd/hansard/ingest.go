package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/hansardgest/internal/extract"
	"github.com/dgallion1/hansardgest/internal/observe"
	"github.com/dgallion1/hansardgest/internal/source"
	"github.com/dgallion1/hansardgest/internal/store"
	"github.com/dgallion1/hansardgest/internal/store/postgres"
)

func ingestCmd() *cobra.Command {
	var (
		house       string
		jobs        int
		databaseURL string
		overrides   string
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Extract and store every transcript in an archive",
		Long: `Extract and store every transcript in a local archive laid out as
<dir>/<house>/<year>/<file>. Documents already stored are skipped; a
document that fails extraction is logged and the run continues.

Without --database-url (or DATABASE_URL) results are kept in memory and
only the summary is reported.

Example:
  hansard ingest ./hansard --house senate --jobs 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd.ErrOrStderr(), verbose)

			houses := source.Houses
			if house != "" {
				if !slices.Contains(source.Houses, house) {
					return fmt.Errorf("--house must be one of %v", source.Houses)
				}
				houses = []string{house}
			}

			engine, err := newEngine(overrides)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var st store.Store
			if databaseURL != "" {
				pg, err := postgres.NewStore(ctx, databaseURL)
				if err != nil {
					return err
				}
				st = pg
			} else {
				log.Warn("no database configured, results are not persisted")
				st = store.NewMemory()
			}
			defer st.Close()

			ing := &ingester{
				engine:  engine,
				store:   st,
				metrics: observe.DefaultMetrics(),
				log:     log,
			}
			start := time.Now()
			sum, err := ing.run(ctx, source.Dir{Root: args[0]}, houses, jobs)
			log.Info("ingest finished",
				"stored", sum.stored.Load(),
				"empty", sum.empty.Load(),
				"skipped", sum.skipped.Load(),
				"failed", sum.failed.Load(),
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
			return err
		},
	}
	cmd.Flags().StringVar(&house, "house", "", "only ingest this house (hofreps or senate)")
	cmd.Flags().IntVar(&jobs, "jobs", runtime.NumCPU(), "documents processed in parallel")
	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	cmd.Flags().StringVar(&overrides, "overrides", os.Getenv("OVERRIDES_FILE"), "YAML date override file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every document")
	return cmd
}

type ingestSummary struct {
	stored, empty, skipped, failed atomic.Int64
}

type ingester struct {
	engine  *extract.Engine
	store   store.Store
	metrics *observe.Metrics
	log     *slog.Logger
}

// run processes every entry of houses in dir with at most jobs documents in
// flight. Only listing errors and cancellation are returned; per-document
// failures are logged and counted.
func (ing *ingester) run(ctx context.Context, dir source.Dir, houses []string, jobs int) (*ingestSummary, error) {
	sum := &ingestSummary{}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))

	for _, house := range houses {
		entries, err := dir.List(house)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				ing.log.Warn("house directory missing", "house", house)
				continue
			}
			return sum, errors.Join(err, g.Wait())
		}
		ing.log.Info("ingesting house", "house", house, "documents", len(entries))
		for _, e := range entries {
			if gCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				ing.one(gCtx, dir, e, sum)
				return gCtx.Err()
			})
		}
	}
	return sum, g.Wait()
}

func (ing *ingester) one(ctx context.Context, dir source.Dir, e source.Entry, sum *ingestSummary) {
	log := ing.log.With("document", e.Name)

	exists, err := ing.store.HasDocument(ctx, e.Name)
	if err != nil {
		log.Warn("dedup check failed, proceeding", "error", err)
	} else if exists {
		log.Debug("already stored, skipping")
		sum.skipped.Add(1)
		ing.metrics.RecordDocument(ctx, "duplicate_skipped")
		return
	}

	text, err := dir.Read(e)
	if err != nil {
		ing.fail(ctx, log, sum, "read", err)
		return
	}

	start := time.Now()
	results, err := ing.engine.Extract(extract.RawTranscript{
		Text:      text,
		DateHint:  e.DateHint(),
		HouseHint: e.House,
	})
	ing.metrics.RecordExtraction(ctx, time.Since(start), results, err)
	if err != nil {
		ing.fail(ctx, log, sum, extract.FailureKind(err), err)
		return
	}

	n, err := ing.store.SaveDocument(ctx, store.Document{Name: e.Name, House: e.House, Text: text}, results)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		sum.skipped.Add(1)
		ing.metrics.RecordDocument(ctx, "duplicate_skipped")
	case err != nil:
		ing.fail(ctx, log, sum, "store", err)
	case n == 0:
		log.Info("no utterances found", "segments", len(results))
		sum.empty.Add(1)
		ing.metrics.RecordDocument(ctx, "empty")
	default:
		log.Debug("stored", "segments", len(results), "utterances", n)
		sum.stored.Add(1)
		ing.metrics.RecordDocument(ctx, "completed")
	}
}

func (ing *ingester) fail(ctx context.Context, log *slog.Logger, sum *ingestSummary, kind string, err error) {
	log.Error("document failed", "kind", kind, "error", err)
	sum.failed.Add(1)
	ing.metrics.RecordDocument(ctx, "failed")
}
