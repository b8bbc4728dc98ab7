package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/api"
	"github.com/JakeFAU/music-crawler/internal/clock/system"
	"github.com/JakeFAU/music-crawler/internal/crawler"
	"github.com/JakeFAU/music-crawler/internal/ledger"
)

const tracerName = "github.com/JakeFAU/music-crawler/internal/app"

// Clock supplies run timestamps.
type Clock interface {
	Now() time.Time
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RunSummary is published when a run ends.
type RunSummary struct {
	RunID      string              `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Canceled   bool                `json:"canceled"`
	Profiles   []api.ProfileStatus `json:"profiles"`
	Summary    ledger.Summary      `json:"summary"`
	Failures   []ledger.Entry      `json:"failures,omitempty"`
}

// RunnerConfig controls the stop policy of a run.
type RunnerConfig struct {
	Profiles []string
	// FailureThreshold stops a profile's listing after this many consecutive
	// failed pages.
	FailureThreshold int
	// Topic is passed to the publisher with the run summary.
	Topic string
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithPublisher publishes the run summary to p when the run ends.
func WithPublisher(p Publisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithCrawlerFactory replaces how listing crawlers are built.
func WithCrawlerFactory(f func(deps crawler.Deps, profile string) *crawler.PaginatedCrawler) RunnerOption {
	return func(r *Runner) { r.newCrawler = f }
}

// Runner crawls each configured profile: the profile page first, then its
// rating listing page by page until the failure threshold is reached. It
// implements api.Source so a status server can observe it.
type Runner struct {
	deps       crawler.Deps
	cfg        RunnerConfig
	runID      string
	publisher  Publisher
	clock      Clock
	newCrawler func(deps crawler.Deps, profile string) *crawler.PaginatedCrawler
	logger     *zap.Logger

	mu        sync.RWMutex
	startedAt time.Time
	// segments holds one ledger per profile scrape and per listing crawl, in
	// run order.
	segments []*ledger.Ledger
	progress []api.ProfileStatus
}

// NewRunner builds a Runner.
func NewRunner(deps crawler.Deps, cfg RunnerConfig, runID string, opts ...RunnerOption) *Runner {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		deps:       deps,
		cfg:        cfg,
		runID:      runID,
		clock:      system.New(),
		newCrawler: crawler.NewReviewCrawler,
		logger:     logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run crawls every profile and returns the merged run ledger. Cancellation
// stops the run between pages; the summary is still produced and published.
// The returned error is non-nil only when ctx was canceled.
func (r *Runner) Run(ctx context.Context) (*ledger.Ledger, RunSummary, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "crawl run",
		trace.WithAttributes(attribute.String("run_id", r.runID)))
	defer span.End()

	r.mu.Lock()
	r.startedAt = r.clock.Now()
	r.mu.Unlock()

	r.logger.Info("run started", zap.Strings("profiles", r.cfg.Profiles), zap.Int("failure_threshold", r.cfg.FailureThreshold))

	for _, name := range r.cfg.Profiles {
		if ctx.Err() != nil {
			break
		}
		r.crawlProfile(ctx, name)
	}

	runLedger := ledger.New()
	for _, seg := range r.snapshotSegments() {
		runLedger.Merge(seg)
	}
	summary := r.summarize(runLedger, ctx.Err() != nil)
	span.SetAttributes(
		attribute.Int("ledger.total", summary.Summary.Total),
		attribute.Int("ledger.failed", summary.Summary.Failed),
	)
	r.publish(ctx, summary)

	r.logger.Info("run finished",
		zap.Int("entries", summary.Summary.Total),
		zap.Int("failed", summary.Summary.Failed),
		zap.Bool("canceled", summary.Canceled),
	)
	if err := ctx.Err(); err != nil {
		return runLedger, summary, fmt.Errorf("run interrupted: %w", err)
	}
	return runLedger, summary, nil
}

func (r *Runner) crawlProfile(ctx context.Context, name string) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "crawl profile",
		trace.WithAttributes(attribute.String("profile", name)))
	defer span.End()

	logger := r.logger.With(zap.String("profile", name))
	idx := r.addProgress(name)

	profile := crawler.NewProfile(r.deps, name)
	err := crawler.Scrape(ctx, profile)
	r.addSegment(profile.State().Ledger)
	if err != nil {
		logger.Warn("profile failed; skipping its listing", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		r.updateProgress(idx, crawler.Cursor{}, true)
		return
	}
	crawler.PrintResult(logger, profile)

	pc := r.newCrawler(r.deps, name)
	r.addSegment(pc.Ledger())
	cursor := pc.Cursor()
	r.updateProgress(idx, cursor, false)
	for ctx.Err() == nil {
		cursor = pc.ScrapePage(ctx)
		r.updateProgress(idx, cursor, false)
		if cursor.ConsecutiveFailures >= r.cfg.FailureThreshold {
			logger.Info("failure threshold reached",
				zap.Int("page", cursor.Page),
				zap.Int("consecutive_failures", cursor.ConsecutiveFailures),
			)
			break
		}
	}
	span.SetAttributes(attribute.Int("pages", cursor.Page-1))
	r.updateProgress(idx, cursor, true)
}

func (r *Runner) publish(ctx context.Context, summary RunSummary) {
	if r.publisher == nil {
		return
	}
	// The run context may already be canceled; the summary still goes out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	id, err := r.publisher.Publish(pubCtx, r.cfg.Topic, summary)
	if err != nil {
		r.logger.Warn("publish run summary failed", zap.Error(err))
		return
	}
	r.logger.Info("run summary published", zap.String("message_id", id))
}

func (r *Runner) summarize(l *ledger.Ledger, canceled bool) RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profiles := make([]api.ProfileStatus, len(r.progress))
	copy(profiles, r.progress)
	return RunSummary{
		RunID:      r.runID,
		StartedAt:  r.startedAt,
		FinishedAt: r.clock.Now(),
		Canceled:   canceled,
		Profiles:   profiles,
		Summary:    l.Summarize(),
		Failures:   l.Failures(),
	}
}

// Status reports per-profile cursors and ledger counts so far.
func (r *Runner) Status() api.Status {
	var total ledger.Summary
	for _, seg := range r.snapshotSegments() {
		s := seg.Summarize()
		total.Total += s.Total
		total.Succeeded += s.Succeeded
		total.Failed += s.Failed
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	profiles := make([]api.ProfileStatus, len(r.progress))
	copy(profiles, r.progress)
	return api.Status{RunID: r.runID, StartedAt: r.startedAt, Profiles: profiles, Summary: total}
}

// Entries returns every ledger entry recorded so far, in run order.
func (r *Runner) Entries() []ledger.Entry {
	var out []ledger.Entry
	for _, seg := range r.snapshotSegments() {
		out = append(out, seg.Entries()...)
	}
	return out
}

func (r *Runner) snapshotSegments() []*ledger.Ledger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ledger.Ledger, len(r.segments))
	copy(out, r.segments)
	return out
}

func (r *Runner) addSegment(l *ledger.Ledger) {
	r.mu.Lock()
	r.segments = append(r.segments, l)
	r.mu.Unlock()
}

func (r *Runner) addProgress(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, api.ProfileStatus{Profile: name})
	return len(r.progress) - 1
}

func (r *Runner) updateProgress(idx int, c crawler.Cursor, done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[idx].Page = c.Page
	r.progress[idx].ConsecutiveFailures = c.ConsecutiveFailures
	r.progress[idx].Done = done
}

// ErrLedgerFailures is returned by callers that treat any failed ledger entry
// as a failed run.
var ErrLedgerFailures = errors.New("run ledger contains failures")
