package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/metrics"
	"github.com/nidhogg/holiday-agent/internal/offer"
	"github.com/nidhogg/holiday-agent/internal/processor"
	"github.com/nidhogg/holiday-agent/internal/report"
	"github.com/nidhogg/holiday-agent/internal/source"
	"go.uber.org/zap"
)

// ConfigError means the request could not be turned into a search config.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "config: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// ProcessingError means offer processing or report rendering failed.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Result is a completed pipeline run.
type Result struct {
	Config   *criteria.AgentConfig
	Offers   []offer.RankedOffer
	Stats    processor.Stats
	Report   *report.Report
	Warnings []string
}

// OfferProcessor turns raw offers into ranked ones.
type OfferProcessor interface {
	Process(raw []offer.RawOffer, cfg *criteria.AgentConfig) ([]offer.RankedOffer, processor.Stats, error)
}

// Renderer renders the final report.
type Renderer interface {
	Render(cfg *criteria.AgentConfig, offers []offer.RankedOffer) *report.Report
}

// Orchestrator runs config building, fetching, processing and reporting
// in order for one request.
type Orchestrator struct {
	builder   *criteria.Builder
	source    source.Source
	processor OfferProcessor
	reports   Renderer
	logger    *zap.Logger
}

// New creates an Orchestrator.
func New(b *criteria.Builder, src source.Source, p OfferProcessor, r Renderer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		builder:   b,
		source:    src,
		processor: p,
		reports:   r,
		logger:    logger,
	}
}

// Run executes the pipeline. It stops at the first failing stage and checks
// ctx between stages.
func (o *Orchestrator) Run(ctx context.Context, req criteria.Request) (*Result, error) {
	res := &Result{}

	start := time.Now()
	cfg, err := o.builder.FromRequest(req)
	if err != nil {
		metrics.RecordStage("config", "error", time.Since(start))
		return nil, &ConfigError{Err: err}
	}
	metrics.RecordStage("config", "ok", time.Since(start))
	res.Config = cfg

	if err := ctx.Err(); err != nil {
		return nil, &source.Error{Source: o.source.Name(), Err: err}
	}

	raw, err := o.fetch(ctx, cfg)
	if err != nil {
		var serr *source.Error
		if !errors.As(err, &serr) {
			serr = &source.Error{Source: o.source.Name(), Err: err}
		}
		if ctx.Err() != nil {
			metrics.IncrementSourceFailure(serr.Source, true)
			return nil, serr
		}
		metrics.IncrementSourceFailure(serr.Source, false)
		o.logger.Warn("offer source failed, continuing without offers",
			zap.String("source", serr.Source),
			zap.Error(serr.Err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("Angebotsquelle %s nicht erreichbar: %v", serr.Source, serr.Err))
		raw = nil
	}

	if err := ctx.Err(); err != nil {
		return nil, &source.Error{Source: o.source.Name(), Err: err}
	}

	if err := o.guard("process", func() error {
		offers, stats, err := o.processor.Process(raw, cfg)
		res.Offers, res.Stats = offers, stats
		return err
	}); err != nil {
		return nil, err
	}
	recordStats(res.Stats)

	if err := ctx.Err(); err != nil {
		return nil, &ProcessingError{Stage: "report", Err: err}
	}

	if err := o.guard("report", func() error {
		res.Report = o.reports.Render(cfg, res.Offers)
		return nil
	}); err != nil {
		return nil, err
	}

	o.logger.Info("search finished",
		zap.String("destination", cfg.Destination),
		zap.Int("offers", len(res.Offers)),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

func (o *Orchestrator) fetch(ctx context.Context, cfg *criteria.AgentConfig) (offers []offer.RawOffer, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordStage("fetch", status, time.Since(start))
	}()
	return o.source.Fetch(ctx, cfg)
}

// guard runs one stage, converting failures and panics to ProcessingError.
func (o *Orchestrator) guard(stage string, fn func() error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("stage panicked", zap.String("stage", stage), zap.Any("panic", r))
			err = &ProcessingError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordStage(stage, status, time.Since(start))
	}()
	if err := fn(); err != nil {
		return &ProcessingError{Stage: stage, Err: err}
	}
	return nil
}

func recordStats(s processor.Stats) {
	metrics.AddOffers("received", s.Received)
	metrics.AddOffers("unpriced", s.Unpriced)
	metrics.AddOffers("duplicate", s.Duplicates)
	metrics.AddOffers("filtered", s.OverBudget+s.BelowStars+s.BelowRecommendation)
	metrics.AddOffers("ranked", s.Ranked)
}
