package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"AccidentLoader/internal/ports"
	"AccidentLoader/internal/source"
)

// PipelineDeps wires all driven adapters into the load pipeline.
type PipelineDeps struct {
	// SourceName is the value stored in accidents.source (ARIA, EPICEA).
	SourceName  string
	Source      source.Source
	Normalizer  ports.RecordNormalizer
	Repository  ports.RecordRepository
	// Incremental resumes after the highest source id already stored.
	Incremental bool
	Logger      *slog.Logger
}

// Pipeline implements the fetch, normalize, persist workflow for one source.
type Pipeline struct {
	sourceName  string
	source      source.Source
	normalizer  ports.RecordNormalizer
	repository  ports.RecordRepository
	incremental bool
	logger      *slog.Logger
	now         func() time.Time
}

// Report summarises one pipeline run.
type Report struct {
	Source     string
	FromID     int
	Fetched    int
	Normalized int
	Saved      int
	// DryRun is set when no repository is wired; nothing was saved.
	DryRun     bool
	Duration   time.Duration
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		sourceName:  deps.SourceName,
		source:      deps.Source,
		normalizer:  deps.Normalizer,
		repository:  deps.Repository,
		incremental: deps.Incremental,
		logger:      logger,
		now:         time.Now,
	}
}

// Run fetches raw rows, normalizes them and saves the resulting records.
// An empty fetch is a no-op.
func (p *Pipeline) Run(ctx context.Context, req source.Request) (Report, error) {
	start := p.now()
	report := Report{Source: p.sourceName, DryRun: p.repository == nil}
	if p.source == nil || p.normalizer == nil {
		return report, nil
	}

	if p.incremental && req.FromID == 0 && p.repository != nil {
		from, err := p.resumePoint(ctx)
		if err != nil {
			return report, err
		}
		req.FromID = from
	}
	report.FromID = req.FromID

	rows, err := p.source.Fetch(ctx, req)
	if err != nil {
		return report, fmt.Errorf("fetch %s: %w", p.source.Name(), err)
	}
	report.Fetched = len(rows)
	if len(rows) == 0 {
		p.logger.Info("nothing to load", "source", p.sourceName, "from_id", req.FromID)
		report.Duration = p.now().Sub(start)
		return report, nil
	}

	records, err := p.normalizer.Normalize(ctx, rows)
	if err != nil {
		return report, fmt.Errorf("normalize %s: %w", p.sourceName, err)
	}

	report.Normalized = len(records)

	if p.repository != nil {
		if err := p.repository.SaveRecords(ctx, records); err != nil {
			return report, fmt.Errorf("persist %s: %w", p.sourceName, err)
		}
		report.Saved = len(records)
	}
	report.Duration = p.now().Sub(start)

	p.logger.Info("load finished",
		"source", p.sourceName,
		"fetched", report.Fetched,
		"normalized", report.Normalized,
		"saved", report.Saved,
		"dry_run", report.DryRun,
		"duration", report.Duration)
	return report, nil
}

func (p *Pipeline) resumePoint(ctx context.Context) (int, error) {
	last, err := p.repository.LastSourceID(ctx, p.sourceName)
	if err != nil {
		return 0, fmt.Errorf("load last %s id: %w", p.sourceName, err)
	}
	if last == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(last)
	if err != nil {
		p.logger.Warn("last source id is not numeric, loading everything", "source", p.sourceName, "last", last)
		return 0, nil
	}
	return n + 1, nil
}
