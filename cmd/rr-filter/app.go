package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/config"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/gateways/dnscheck"
	"github.com/haukened/rr-filter/internal/filter/gateways/fetch"
	"github.com/haukened/rr-filter/internal/filter/metrics"
	"github.com/haukened/rr-filter/internal/filter/output"
	"github.com/haukened/rr-filter/internal/filter/repos/bloom"
	"github.com/haukened/rr-filter/internal/filter/repos/history"
	historybolt "github.com/haukened/rr-filter/internal/filter/repos/history/bolt"
	"github.com/haukened/rr-filter/internal/filter/repos/validcache"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

var (
	// ErrNoSources is returned when neither sources nor sources_file name anything.
	ErrNoSources = errors.New("no sources configured")
	// ErrAllSourcesFailed is returned when every source failed to load.
	ErrAllSourcesFailed = errors.New("all sources failed")
	// ErrAllSourcesEmpty is returned when every retrieved source had no content.
	ErrAllSourcesEmpty = errors.New("all sources empty")
)

// Application holds all the components of one run
type Application struct {
	config    *config.AppConfig
	clock     clock.Clock
	logger    log.Logger
	metrics   *metrics.Metrics
	validator *cleaner.Validator
	engine    *cleaner.Engine
	fetcher   *fetch.Fetcher
	history   history.Store
}

// buildValidator wires the validation cache and the DNS gateway.
func buildValidator(cfg *config.AppConfig, logger log.Logger, rec cleaner.Recorder) (*cleaner.Validator, error) {
	cache, err := validcache.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation cache: %w", err)
	}

	lookup, err := dnscheck.NewResolver(dnscheck.Options{
		Servers:     cfg.Servers,
		Timeout:     cfg.DNSTimeout,
		DialTimeout: cfg.DNSDialTimeout,
		QueryRate:   cfg.QueryRate,
		Logger:      logger.With(map[string]any{"component": "dnscheck"}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DNS client: %w", err)
	}

	log.Info(map[string]any{
		"servers":    cfg.Servers,
		"timeout":    cfg.DNSTimeout.String(),
		"query_rate": cfg.QueryRate,
		"cache_size": cfg.CacheSize,
	}, "DNS validation configured")

	return cleaner.NewValidator(lookup, cache, logger.With(map[string]any{"component": "validator"}), rec), nil
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig, clk clock.Clock) (*Application, error) {
	logger := log.GetLogger()
	m := metrics.New()

	validator, err := buildValidator(cfg, logger, m)
	if err != nil {
		return nil, err
	}

	resolverOpts := cleaner.ResolverOptions{Logger: logger.With(map[string]any{"component": "resolver"})}
	if cfg.BloomFPRate > 0 {
		resolverOpts.Bloom = bloom.NewFactory()
		resolverOpts.FPRate = cfg.BloomFPRate
	}

	engine, err := cleaner.NewEngine(cleaner.Options{
		Validator: validator,
		Resolver:  cleaner.NewParentChildResolver(resolverOpts),
		Workers:   cfg.Workers,
		Logger:    logger.With(map[string]any{"component": "engine"}),
		Recorder:  m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	fetcher := fetch.NewFetcher(fetch.Options{
		Workers:  cfg.FetchWorkers,
		Timeout:  cfg.FetchTimeout,
		Logger:   logger.With(map[string]any{"component": "fetch"}),
		Observer: m,
	})

	var store history.Store
	if cfg.HistoryDB != "" {
		store, err = historybolt.New(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open history db %s: %w", cfg.HistoryDB, err)
		}
	}

	return &Application{
		config:    cfg,
		clock:     clk,
		logger:    logger,
		metrics:   m,
		validator: validator,
		engine:    engine,
		fetcher:   fetcher,
		history:   store,
	}, nil
}

// Close releases the history store.
func (app *Application) Close() error {
	if app.history != nil {
		return app.history.Close()
	}
	return nil
}

// sources merges the configured sources with the sources file.
func (app *Application) sources() ([]string, error) {
	out := append([]string(nil), app.config.Sources...)
	if app.config.SourcesFile != "" {
		fh, err := os.Open(app.config.SourcesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open sources file: %w", err)
		}
		defer fh.Close()
		listed, err := fetch.ReadSourceList(fh)
		if err != nil {
			return nil, fmt.Errorf("failed to read sources file: %w", err)
		}
		out = append(out, listed...)
	}
	if len(out) == 0 {
		return nil, ErrNoSources
	}
	return out, nil
}

// Run fetches every source, cleans the union and writes the outputs.
func (app *Application) Run(ctx context.Context) error {
	start := app.clock.Now()

	sources, err := app.sources()
	if err != nil {
		return err
	}

	results := app.fetcher.FetchAll(ctx, sources)
	failed := fetch.Failed(results)
	if len(failed) == len(results) {
		return fmt.Errorf("%w: %d of %d", ErrAllSourcesFailed, len(failed), len(results))
	}
	for i := range results {
		results[i].Lines = output.StripHeader(results[i].Lines)
	}
	if fetch.CountLines(results) == 0 {
		return fmt.Errorf("%w: %d sources", ErrAllSourcesEmpty, len(results)-len(failed))
	}

	res, err := app.engine.Aggregate(ctx, fetch.Lines(results))
	if err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}

	var prev *domain.RunRecord
	if app.history != nil {
		rec, ok, err := app.history.Latest()
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		if ok {
			prev = &rec
		}
	}

	lines := res.Lines()
	now := app.clock.Now()
	header := output.Header{
		UpdatedAt: now,
		Sources:   succeeded(results),
		Failed:    failed,
		Stats:     res.Stats,
		Previous:  prev,
		Checksum:  output.Checksum(lines),
	}

	if err := app.writeOutputs(header, res, results); err != nil {
		return err
	}

	record := domain.RunRecord{RuleCount: uint64(len(lines)), Checksum: header.Checksum, UpdatedAt: now}
	if app.history != nil {
		if record, err = app.history.Save(record); err != nil {
			return fmt.Errorf("failed to save history: %w", err)
		}
	}

	fields := map[string]any{
		"rules":    len(lines),
		"sources":  len(results),
		"failed":   len(failed),
		"checksum": fmt.Sprintf("%016x", header.Checksum),
		"elapsed":  app.clock.Now().Sub(start).String(),
	}
	if prev != nil {
		fields["delta"] = record.Delta(*prev)
	}
	app.logger.Info(fields, "run_complete")

	app.metrics.ObserveRun(len(lines), app.clock.Now().Sub(start), app.clock.Now())
	if app.config.MetricsFile != "" {
		if err := app.metrics.WriteTextfile(app.config.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func (app *Application) writeOutputs(h output.Header, res cleaner.Result, results []fetch.Result) error {
	lines := res.Lines()
	if err := output.WriteFile(app.config.OutputFile, func(w io.Writer) error {
		return output.WriteRules(w, h, lines)
	}); err != nil {
		return fmt.Errorf("failed to write rules: %w", err)
	}

	if app.config.DeletedLog != "" {
		if err := output.WriteFile(app.config.DeletedLog, func(w io.Writer) error {
			return output.WriteDeletions(w, res.Deletions)
		}); err != nil {
			return fmt.Errorf("failed to write deletion log: %w", err)
		}
	}

	if app.config.SummaryFile != "" {
		counts := make([]output.SourceCount, 0, len(results))
		for _, r := range results {
			counts = append(counts, output.SourceCount{Source: r.Source, Lines: len(r.Lines), Failed: r.Err != nil})
		}
		summary := output.NewSummary(h, res, counts, app.validator.Cache())
		if err := output.WriteFile(app.config.SummaryFile, func(w io.Writer) error {
			return output.WriteSummary(w, summary)
		}); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}

func succeeded(results []fetch.Result) []string {
	var out []string
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Source)
		}
	}
	return out
}
