// Package engine implements the adaptive collection loop: fetch from each
// configured source, validate and score the merged batch, update running
// statistics, consult the pacing strategy, sleep, and repeat until the record
// target is reached. The engine is the sole owner of the dataset and stats.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/tidemark/harvest/pkg/quality"
	"github.com/tidemark/harvest/pkg/report"
	"github.com/tidemark/harvest/pkg/sources"
	"github.com/tidemark/harvest/pkg/storage"
	"github.com/tidemark/harvest/pkg/strategy"
)

// Config holds the engine's collection parameters.
type Config struct {
	// Run names this collection run in artifacts and snapshots.
	Run string

	// MaxRecords is the record target; the loop terminates once the dataset
	// reaches it. Zero is legal and collects nothing.
	MaxRecords int

	// BaseDelay is the unscaled pause between cycles. Defaults to 1s.
	BaseDelay time.Duration

	// MaxRecordAge bounds the timeliness score; records older than this score
	// zero. Zero uses the scorer default.
	MaxRecordAge time.Duration

	// FallbackAfter is the number of consecutive failed fetches after which a
	// source is benched in favor of the remaining alternates. Zero means the
	// default of 3; negative disables fallback.
	FallbackAfter int
}

// Stats are the run counters, owned and mutated exclusively by the engine.
// Snapshot copies are handed to hooks and the reporter.
type Stats struct {
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	QualityHistory     []float64
	DelayMultiplier    float64
	StartedAt          time.Time
}

// SuccessRate is successful/total, defined as 1.0 before the first request so
// the strategy starts optimistic.
func (s Stats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 1.0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests)
}

func (s Stats) snapshot() Stats {
	out := s
	out.QualityHistory = append([]float64(nil), s.QualityHistory...)
	return out
}

// Hooks are optional instrumentation callbacks. All fields may be nil.
type Hooks struct {
	// OnFetch fires after every source invocation, successful or not.
	OnFetch func(source string, records int, duration time.Duration, err error)
	// OnCycle fires after each completed cycle with a stats snapshot, the
	// batch score, and the strategy's decision.
	OnCycle func(stats Stats, batchScore float64, action strategy.Action)
	// OnTighten fires when the strategy requests a validation review.
	OnTighten func(stats Stats)
	// OnFallback fires when a persistently failing source is benched in
	// favor of the remaining alternates.
	OnFallback func(source string, stats Stats)
}

// Engine orchestrates the collection loop and the single unconditional
// finalization that follows it.
type Engine struct {
	cfg      Config
	sources  []sources.Source
	rules    quality.Rules
	scorer   *quality.Scorer
	policy   strategy.Policy
	reporter report.Reporter
	store    storage.Store
	logger   *slog.Logger
	hooks    Hooks

	dataset []sources.Record
	stats   Stats

	// Per-source consecutive failure streaks and bench flags, indexed in
	// step with sources.
	streaks []int
	benched []bool

	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Engine. reporter is required; store may be nil to skip
// snapshot persistence. A nil logger falls back to slog.Default().
func New(
	cfg Config,
	srcs []sources.Source,
	rules quality.Rules,
	policy strategy.Policy,
	reporter report.Reporter,
	store storage.Store,
	logger *slog.Logger,
	hooks Hooks,
) (*Engine, error) {
	if cfg.MaxRecords < 0 {
		return nil, fmt.Errorf("engine: MaxRecords must be >= 0, got %d", cfg.MaxRecords)
	}
	if reporter == nil {
		return nil, fmt.Errorf("engine: reporter is required")
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.FallbackAfter == 0 {
		cfg.FallbackAfter = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg:      cfg,
		sources:  srcs,
		rules:    rules,
		scorer:   &quality.Scorer{Rules: rules, MaxAge: cfg.MaxRecordAge},
		policy:   policy,
		reporter: reporter,
		store:    store,
		logger:   logger,
		hooks:    hooks,
		streaks:  make([]int, len(srcs)),
		benched:  make([]bool, len(srcs)),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepCtx,
	}, nil
}

// Run executes the collection loop until the record target is reached, the
// context is canceled, or a fatal error occurs. Finalization (summary stats,
// the reporter call, best-effort snapshot persistence) runs exactly once on
// every path. A run that collects nothing because every source failed is a
// successful run; only fatal faults and finalization failures return errors.
func (e *Engine) Run(ctx context.Context) (report.Summary, error) {
	e.stats.StartedAt = time.Now()
	e.stats.DelayMultiplier = 1.0

	e.logger.Info("starting collection run",
		"run", e.cfg.Run,
		"max_records", e.cfg.MaxRecords,
		"sources", len(e.sources),
		"base_delay", e.cfg.BaseDelay,
	)

	var fatal error
	canceled := false

	for len(e.dataset) < e.cfg.MaxRecords {
		if err := ctx.Err(); err != nil {
			canceled = true
			break
		}

		stop, err := e.cycle(ctx)
		if err != nil {
			fatal = err
			break
		}
		if stop {
			canceled = true
			break
		}
	}

	summary, reportErr := e.finalize(ctx, fatal)

	switch {
	case fatal != nil && reportErr != nil:
		return summary, fmt.Errorf("%w (finalization also failed: %v)", fatal, reportErr)
	case fatal != nil:
		return summary, fatal
	case reportErr != nil:
		return summary, fmt.Errorf("finalize: %w", reportErr)
	case canceled:
		return summary, ctx.Err()
	default:
		return summary, nil
	}
}

// cycle performs one collection pass. It returns stop=true when the context
// was canceled during the paced sleep, and a non-nil error only for fatal
// faults (a source panicking outside its error channel).
func (e *Engine) cycle(ctx context.Context) (stop bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collection cycle panicked: %v", r)
		}
	}()

	start := time.Now()
	merged := &sources.Batch{}

	for i, src := range e.sources {
		if e.benched[i] {
			continue
		}

		batch, dur, fetchErr := e.fetch(ctx, src)
		e.stats.TotalRequests++

		records := 0
		if fetchErr != nil {
			e.stats.FailedRequests++
			e.streaks[i]++
			e.logger.Warn("source fetch failed",
				"source", src.Name(),
				"consecutive_failures", e.streaks[i],
				"error", fetchErr,
			)
		} else {
			e.stats.SuccessfulRequests++
			e.streaks[i] = 0
			records = len(batch.Records)
			merged.Records = append(merged.Records, batch.Records...)
		}

		if e.hooks.OnFetch != nil {
			e.hooks.OnFetch(src.Name(), records, dur, fetchErr)
		}
	}

	e.applyFallback()

	valid := quality.Validate(merged, e.rules)
	dropped := len(merged.Records) - len(valid.Records)
	score := e.scorer.Score(valid)
	e.stats.QualityHistory = append(e.stats.QualityHistory, score)

	for _, rec := range valid.Records {
		stored := rec.Clone()
		stored[sources.FieldQuality] = score
		e.dataset = append(e.dataset, stored)
	}

	decision := strategy.Decide(e.stats.SuccessRate(), e.datasetQuality(), e.stats.DelayMultiplier, e.policy)
	e.stats.DelayMultiplier = decision.Multiplier

	if decision.Action == strategy.Tighten {
		e.logger.Warn("quality below threshold, validation rules should be reviewed",
			"quality", e.datasetQuality(),
		)
		if e.hooks.OnTighten != nil {
			e.hooks.OnTighten(e.stats.snapshot())
		}
	}

	e.logger.Info("collection cycle complete",
		"run", e.cfg.Run,
		"fetched", len(merged.Records),
		"dropped", dropped,
		"stored", len(e.dataset),
		"batch_score", score,
		"success_rate", e.stats.SuccessRate(),
		"action", decision.Action.String(),
		"delay_multiplier", e.stats.DelayMultiplier,
		"cycle_ms", time.Since(start).Milliseconds(),
	)

	if e.hooks.OnCycle != nil {
		e.hooks.OnCycle(e.stats.snapshot(), score, decision.Action)
	}

	if len(e.dataset) >= e.cfg.MaxRecords {
		return false, nil
	}

	delay := strategy.Delay(e.cfg.BaseDelay, e.stats.DelayMultiplier, e.rng)
	if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
		return true, nil
	}
	return false, nil
}

// applyFallback benches any source whose failure streak reached the
// threshold, provided at least one other active source is healthier. When
// every remaining source is failing equally there is nothing to fall back to
// and all stay active.
func (e *Engine) applyFallback() {
	if e.cfg.FallbackAfter < 0 {
		return
	}
	for i := range e.sources {
		if e.benched[i] || e.streaks[i] < e.cfg.FallbackAfter {
			continue
		}
		if !e.hasHealthierAlternate(i) {
			continue
		}

		e.benched[i] = true
		e.logger.Warn("source failing persistently, falling back to alternate sources",
			"source", e.sources[i].Name(),
			"consecutive_failures", e.streaks[i],
		)
		if e.hooks.OnFallback != nil {
			e.hooks.OnFallback(e.sources[i].Name(), e.stats.snapshot())
		}
	}
}

// hasHealthierAlternate reports whether some other active source has a
// failure streak below the fallback threshold.
func (e *Engine) hasHealthierAlternate(i int) bool {
	for j := range e.sources {
		if j == i || e.benched[j] {
			continue
		}
		if e.streaks[j] < e.cfg.FallbackAfter {
			return true
		}
	}
	return false
}

// fetch invokes one source, converting a panic into an error so the caller
// can distinguish the expected failure channel from a fatal fault.
func (e *Engine) fetch(ctx context.Context, src sources.Source) (batch *sources.Batch, dur time.Duration, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			panic(fmt.Sprintf("source %s: %v", src.Name(), r))
		}
	}()

	batch, err = src.Fetch(ctx)
	if err == nil && batch == nil {
		batch = &sources.Batch{}
	}
	return batch, time.Since(start), err
}

// finalize computes the summary, hands dataset and stats to the reporter, and
// persists a run snapshot. It never panics and runs exactly once per Run.
func (e *Engine) finalize(ctx context.Context, fatal error) (report.Summary, error) {
	finished := time.Now()

	summary := report.Summary{
		Run:                e.cfg.Run,
		StartedAt:          e.stats.StartedAt,
		FinishedAt:         finished,
		Duration:           finished.Sub(e.stats.StartedAt).Round(time.Millisecond).String(),
		TotalRequests:      e.stats.TotalRequests,
		SuccessfulRequests: e.stats.SuccessfulRequests,
		FailedRequests:     e.stats.FailedRequests,
		SuccessRate:        e.stats.SuccessRate(),
		MeanQuality:        e.datasetQuality(),
		RecordsCollected:   len(e.dataset),
		DelayMultiplier:    e.stats.DelayMultiplier,
		QualityHistory:     append([]float64(nil), e.stats.QualityHistory...),
	}
	if fatal != nil {
		summary.Aborted = true
		summary.AbortCause = fatal.Error()
	}

	e.logger.Info("finalizing collection run",
		"run", e.cfg.Run,
		"records", summary.RecordsCollected,
		"success_rate", summary.SuccessRate,
		"mean_quality", summary.MeanQuality,
		"duration", summary.Duration,
		"aborted", summary.Aborted,
	)

	// Finalization must not be skipped by cancellation.
	finalCtx := context.WithoutCancel(ctx)

	if e.store != nil {
		snap := storage.Snapshot{
			Run:             summary.Run,
			GeneratedAt:     finished,
			Records:         summary.RecordsCollected,
			TotalRequests:   summary.TotalRequests,
			SuccessRate:     summary.SuccessRate,
			MeanQuality:     summary.MeanQuality,
			DelayMultiplier: summary.DelayMultiplier,
			QualityHistory:  summary.QualityHistory,
			Aborted:         summary.Aborted,
		}
		if err := e.store.Put(snap); err != nil {
			// Persistence is best-effort; the report is the artifact of record.
			e.logger.Warn("failed to store run snapshot", "error", err)
		}
	}

	dataset := append([]sources.Record(nil), e.dataset...)
	if err := e.reporter.Report(finalCtx, dataset, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// datasetQuality is the mean of the per-record quality scores attached at
// storage time, or 0 for an empty dataset.
func (e *Engine) datasetQuality() float64 {
	if len(e.dataset) == 0 {
		return 0
	}
	var sum float64
	for _, rec := range e.dataset {
		if v, ok := rec[sources.FieldQuality].(float64); ok {
			sum += v
		}
	}
	return sum / float64(len(e.dataset))
}

// Dataset returns a copy of the accumulated validated records.
func (e *Engine) Dataset() []sources.Record {
	return append([]sources.Record(nil), e.dataset...)
}

// StatsSnapshot returns a read-only copy of the run counters.
func (e *Engine) StatsSnapshot() Stats {
	return e.stats.snapshot()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
