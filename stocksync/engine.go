package stocksync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"bitbucket.org/mmdatafocus/stockverify_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	defaultBatchSize   = 100
	defaultQtyInterval = 5 * time.Minute
	defaultChgInterval = 15 * time.Minute
	minIntervalSeconds = 10
	maxIntervalSeconds = 86400

	lockTTL = 10 * time.Minute

	// EMA smoothing for avg cycle duration.
	emaAlpha = 0.2
)

// Engine owns the two batch sync loops and the real-time refresh path. It is
// constructed explicitly in main and passed where needed; there is no global
// engine instance.
type Engine struct {
	source ErpSource
	items  ItemStore
	meta   MetaStore
	events EventPublisher // optional
	locker CycleLocker    // optional
	cache  ResultCache    // optional
	logger *logrus.Logger

	batchSize int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	qty loopState
	chg loopState
}

type loopState struct {
	syncType string
	enabled  bool
	interval time.Duration

	lastSync  *time.Time
	nextRunAt time.Time

	totalSyncs      int64
	successfulSyncs int64
	failedSyncs     int64
	itemsChecked    int64
	itemsUpdated    int64
	avgCycleMs      float64
	lastError       string
}

// Config carries the collaborators and tuning for NewEngine. Zero intervals
// and batch size fall back to defaults.
type Config struct {
	Source ErpSource
	Items  ItemStore
	Meta   MetaStore
	Events EventPublisher
	Locker CycleLocker
	Cache  ResultCache
	Logger *logrus.Logger

	BatchSize               int
	QuantityInterval        time.Duration
	ChangeDetectionInterval time.Duration
}

func NewEngine(cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.QuantityInterval <= 0 {
		cfg.QuantityInterval = defaultQtyInterval
	}
	if cfg.ChangeDetectionInterval <= 0 {
		cfg.ChangeDetectionInterval = defaultChgInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Engine{
		source:    cfg.Source,
		items:     cfg.Items,
		meta:      cfg.Meta,
		events:    cfg.Events,
		locker:    cfg.Locker,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
		batchSize: cfg.BatchSize,
		qty: loopState{
			syncType: models.SyncTypeQuantity,
			enabled:  true,
			interval: cfg.QuantityInterval,
		},
		chg: loopState{
			syncType: models.SyncTypeChangeDetection,
			enabled:  true,
			interval: cfg.ChangeDetectionInterval,
		},
	}
}

// Start launches both loops. Idempotent while running.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	e.mu.Unlock()

	e.wg.Add(2)
	go e.runLoop(ctx, stopCh, &e.qty)
	go e.runLoop(ctx, stopCh, &e.chg)

	e.logger.WithFields(logrus.Fields{"module": "stocksync"}).Info("sync engine started")
}

// Stop signals both loops to exit and waits for them. A loop exits at a cycle
// boundary only; an in-flight cycle always completes, so the change-detection
// watermark is never advanced by a half-applied cycle.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.WithFields(logrus.Fields{"module": "stocksync"}).Info("sync engine stopped")
}

func (e *Engine) runLoop(ctx context.Context, stopCh <-chan struct{}, state *loopState) {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		interval := state.interval
		state.nextRunAt = time.Now().Add(interval)
		e.mu.Unlock()

		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		e.mu.Lock()
		enabled := state.enabled
		e.mu.Unlock()
		if !enabled {
			continue
		}

		e.runCycle(ctx, state)
	}
}

// runCycle executes one guarded cycle of the given loop and records its stats.
func (e *Engine) runCycle(ctx context.Context, state *loopState) {
	if e.locker != nil {
		release, obtained, err := e.locker.Obtain(ctx, "stocksync:"+state.syncType, lockTTL)
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"module":    "stocksync",
				"sync_type": state.syncType,
			}).Warnf("cycle lock error: %v", err)
			return
		}
		if !obtained {
			// Another replica is running this cycle.
			return
		}
		defer release()
	}

	start := time.Now()
	var (
		checked, updated int
		stats            any
		err              error
	)
	switch state.syncType {
	case models.SyncTypeQuantity:
		var s models.QuantitySyncStats
		s, err = e.syncQuantities(ctx)
		checked, updated, stats = s.ItemsChecked, s.QtyUpdated, s
	case models.SyncTypeChangeDetection:
		var s models.ChangeSyncStats
		s, err = e.syncChanges(ctx)
		checked, updated, stats = s.ItemsChecked, int(s.Modified), s
	}
	e.recordCycle(ctx, state, models.SyncTriggeredSystem, start, checked, updated, stats, err)
}

func (e *Engine) recordCycle(ctx context.Context, state *loopState, trigger string, start time.Time, checked, updated int, stats any, err error) {
	durMs := time.Since(start).Milliseconds()

	e.mu.Lock()
	state.totalSyncs++
	if err != nil {
		state.failedSyncs++
		state.lastError = err.Error()
	} else {
		state.successfulSyncs++
		state.lastError = ""
		now := time.Now()
		state.lastSync = &now
		state.itemsChecked += int64(checked)
		state.itemsUpdated += int64(updated)
	}
	if state.avgCycleMs == 0 {
		state.avgCycleMs = float64(durMs)
	} else {
		state.avgCycleMs = state.avgCycleMs*(1-emaAlpha) + float64(durMs)*emaAlpha
	}
	e.mu.Unlock()

	logSyncCycle(e.logger, state.syncType, durMs, stats, err)

	// Quantity cycles publish only when something moved; change-detection
	// cycles publish on every success so consumers can track the watermark.
	publish := updated > 0 || state.syncType == models.SyncTypeChangeDetection
	if err == nil && e.events != nil && publish {
		ev := StockSyncEvent{
			SyncType:    state.syncType,
			TriggeredBy: trigger,
			Stats:       stats,
			FinishedAt:  time.Now(),
		}
		// The publish context is detached from the triggering request so a
		// finished admin call cannot cancel the publish, but the correlation
		// id still travels with the event.
		if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
			ev.CorrelationId = cid
		}
		pubCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if pubErr := e.events.PublishSyncEvent(pubCtx, ev); pubErr != nil {
			e.logger.WithFields(logrus.Fields{
				"module":    "stocksync",
				"sync_type": state.syncType,
			}).Warnf("failed to publish sync event: %v", pubErr)
		}
		cancel()
	}
}

func logSyncCycle(logger *logrus.Logger, syncType string, durMs int64, stats any, err error) {
	fields := logrus.Fields{
		"module":      "stocksync",
		"sync_type":   syncType,
		"duration_ms": durMs,
		"stats":       stats,
	}
	if err != nil {
		logger.WithFields(fields).Error(err.Error())
		return
	}
	logger.WithFields(fields).Info("sync cycle completed")
}

// SyncNow runs one quantity cycle out of schedule. Used by admin tooling.
func (e *Engine) SyncNow(ctx context.Context) (models.QuantitySyncStats, error) {
	start := time.Now()
	stats, err := e.syncQuantities(ctx)
	e.recordCycle(ctx, &e.qty, models.SyncTriggeredManual, start, stats.ItemsChecked, stats.QtyUpdated, stats, err)
	return stats, err
}

// SyncChangesNow runs one change-detection cycle out of schedule.
func (e *Engine) SyncChangesNow(ctx context.Context) (models.ChangeSyncStats, error) {
	start := time.Now()
	stats, err := e.syncChanges(ctx)
	e.recordCycle(ctx, &e.chg, models.SyncTriggeredManual, start, stats.ItemsChecked, int(stats.Modified), stats, err)
	return stats, err
}

func (e *Engine) loopFor(syncType string) (*loopState, error) {
	switch syncType {
	case models.SyncTypeQuantity:
		return &e.qty, nil
	case models.SyncTypeChangeDetection:
		return &e.chg, nil
	default:
		return nil, fmt.Errorf("unknown sync type %q", syncType)
	}
}

// SetInterval adjusts a loop's cadence. Takes effect from the next tick.
func (e *Engine) SetInterval(syncType string, seconds int) error {
	if seconds < minIntervalSeconds || seconds > maxIntervalSeconds {
		return fmt.Errorf("interval must be between %d and %d seconds", minIntervalSeconds, maxIntervalSeconds)
	}
	state, err := e.loopFor(syncType)
	if err != nil {
		return err
	}
	e.mu.Lock()
	state.interval = time.Duration(seconds) * time.Second
	e.mu.Unlock()
	return nil
}

func (e *Engine) Enable(syncType string) error {
	return e.setEnabled(syncType, true)
}

func (e *Engine) Disable(syncType string) error {
	return e.setEnabled(syncType, false)
}

func (e *Engine) setEnabled(syncType string, enabled bool) error {
	state, err := e.loopFor(syncType)
	if err != nil {
		return err
	}
	e.mu.Lock()
	state.enabled = enabled
	e.mu.Unlock()
	return nil
}

// GetStatus returns an operator snapshot of both loops.
func (e *Engine) GetStatus() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStatus{
		Running:         e.running,
		ChangeTracking:  e.source != nil && e.source.ChangeTrackingConfigured(),
		Quantity:        e.qty.snapshot(),
		ChangeDetection: e.chg.snapshot(),
	}
}

func (s *loopState) snapshot() LoopStatus {
	nextIn := 0
	if until := time.Until(s.nextRunAt); until > 0 {
		nextIn = int(until.Seconds())
	}
	return LoopStatus{
		Enabled:         s.enabled,
		IntervalSeconds: int(s.interval.Seconds()),
		LastSync:        s.lastSync,
		NextSyncInSecs:  nextIn,
		TotalSyncs:      s.totalSyncs,
		SuccessfulSyncs: s.successfulSyncs,
		FailedSyncs:     s.failedSyncs,
		ItemsChecked:    s.itemsChecked,
		ItemsUpdated:    s.itemsUpdated,
		AvgCycleMs:      s.avgCycleMs,
		LastError:       s.lastError,
	}
}
