package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"roster-bot/internal/metrics"
)

const DefaultFreshnessInterval = 15 * time.Second

// Refresher is the part of the roster store the job needs.
type Refresher interface {
	RefreshFreshness(ctx context.Context, sheetID string) error
}

// TabEnsurer refreshes a spreadsheet and creates the named tabs when missing.
type TabEnsurer interface {
	EnsureTabs(ctx context.Context, sheetID string, tabs []string) error
}

// FreshnessJob periodically asks the roster store to check every known
// spreadsheet. A failing cycle is logged and the loop goes on; the wait for
// the next cycle starts once the previous one has finished.
type FreshnessJob struct {
	store    Refresher
	sheetIDs []string
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	ensurer TabEnsurer
	tabs    func() map[string][]string

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

func NewFreshnessJob(store Refresher, sheetIDs []string, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *FreshnessJob {
	if interval <= 0 {
		interval = DefaultFreshnessInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FreshnessJob{
		store:    store,
		sheetIDs: dedupe(sheetIDs),
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

// WithTabs makes each cycle create the tabs returned by tabs, keyed by sheet
// id, instead of only refreshing those sheets. Call it before Start.
func (j *FreshnessJob) WithTabs(ensurer TabEnsurer, tabs func() map[string][]string) *FreshnessJob {
	j.ensurer = ensurer
	j.tabs = tabs
	return j
}

// Start runs the loop in the background until ctx is done or Stop is called.
func (j *FreshnessJob) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	stopCh := j.stopCh
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run(ctx, stopCh)
	j.logger.Info("freshness job started",
		slog.Duration("interval", j.interval),
		slog.Int("sheets", len(j.sheetIDs)),
	)
}

// Stop ends the loop and waits for the current cycle to finish.
func (j *FreshnessJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stopCh)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("freshness job stopped")
}

func (j *FreshnessJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *FreshnessJob) run(ctx context.Context, stopCh <-chan struct{}) {
	defer j.wg.Done()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-timer.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Warn("freshness cycle failed", slog.Any("error", err))
			}
			timer.Reset(j.interval)
		}
	}
}

// RunOnce refreshes every sheet once and reports all failures together.
func (j *FreshnessJob) RunOnce(ctx context.Context) error {
	var tabs map[string][]string
	if j.ensurer != nil && j.tabs != nil {
		tabs = j.tabs()
	}
	var errs []error
	for _, id := range j.sheetIDs {
		if err := j.refresh(ctx, id, tabs[id]); err != nil {
			errs = append(errs, fmt.Errorf("sheet %s: %w", id, err))
		}
	}
	err := errors.Join(errs...)
	j.metrics.FreshnessCycle(err == nil)
	return err
}

func (j *FreshnessJob) refresh(ctx context.Context, sheetID string, tabs []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()
	if len(tabs) > 0 {
		return j.ensurer.EnsureTabs(ctx, sheetID, tabs)
	}
	return j.store.RefreshFreshness(ctx, sheetID)
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
