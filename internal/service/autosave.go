package service

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/metrics"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

const (
	defaultSaveWriteTimeout = 10 * time.Second
	defaultSaveIdleTTL      = 10 * time.Minute
)

// SaveStatus describes the background saves of one session.
type SaveStatus struct {
	Pending     bool      `json:"pending"`
	LastSavedAt time.Time `json:"lastSavedAt,omitempty"`
	// Failure is set once after a snapshot could not be written, then cleared.
	Failure string `json:"failure,omitempty"`
}

type AutoSaverParams struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// WriteTimeout bounds a single write attempt. Zero means 10s.
	WriteTimeout time.Duration
	// IdleTTL is how long the status of a finished session is kept. Zero means 10m.
	IdleTTL time.Duration
}

// AutoSaver writes table snapshots in the background. Snapshots of one
// session are coalesced: only the newest pending one is written.
type AutoSaver struct {
	sessions SessionService
	params   AutoSaverParams
	metrics  *metrics.Manager

	// ctx only bounds retry waits; writes run detached from it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	slots     map[slotKey]*saveSlot
	lastSweep time.Time
}

type slotKey struct {
	userID    string
	sessionID string
}

type saveSlot struct {
	table   domain.Table
	dirty   bool // a snapshot arrived that is not written yet
	running bool
	idle    chan struct{} // closed when the running writer exits
	touched time.Time
	savedAt time.Time
	failure error
}

func NewAutoSaver(sessions SessionService, params AutoSaverParams, metricsManager *metrics.Manager) *AutoSaver {
	if params.WriteTimeout <= 0 {
		params.WriteTimeout = defaultSaveWriteTimeout
	}
	if params.IdleTTL <= 0 {
		params.IdleTTL = defaultSaveIdleTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AutoSaver{
		sessions:  sessions,
		params:    params,
		metrics:   metricsManager,
		ctx:       ctx,
		cancel:    cancel,
		slots:     make(map[slotKey]*saveSlot),
		lastSweep: time.Now(),
	}
}

// Submit queues a snapshot and returns immediately.
func (a *AutoSaver) Submit(userID, sessionID string, table domain.Table) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if sessionID == "" {
		return invalidArgument("session id is required")
	}
	table, err := normalizeTable(table)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx.Err() != nil {
		return errors.New("auto saver closed")
	}

	now := time.Now()
	a.sweepLocked(now)

	key := slotKey{userID: userID, sessionID: sessionID}
	slot, ok := a.slots[key]
	if !ok {
		slot = &saveSlot{}
		a.slots[key] = slot
	}
	slot.table = table
	slot.dirty = true
	slot.touched = now
	if !slot.running {
		slot.running = true
		slot.idle = make(chan struct{})
		a.metrics.GaugePendingSaves.Inc()
		a.wg.Add(1)
		go a.run(key, slot)
	}
	return nil
}

// Flush waits until no snapshot of the session is queued or being written.
// It returns the last write failure, unless the session rejected the write
// for good.
func (a *AutoSaver) Flush(ctx context.Context, userID, sessionID string) error {
	a.mu.Lock()
	slot, ok := a.slots[slotKey{userID: userID, sessionID: sessionID}]
	if !ok {
		a.mu.Unlock()
		return nil
	}
	idle := slot.idle
	running := slot.running
	a.mu.Unlock()

	if running {
		select {
		case <-idle:
		case <-ctx.Done():
			return fmt.Errorf("flush auto-save: %w: %w", ErrStoreFailure, ctx.Err())
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if slot.failure != nil && !isPermanentSaveError(slot.failure) {
		return slot.failure
	}
	return nil
}

// Status returns the save state of a session and clears a reported failure.
func (a *AutoSaver) Status(userID, sessionID string) SaveStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot, ok := a.slots[slotKey{userID: userID, sessionID: sessionID}]
	if !ok {
		return SaveStatus{}
	}
	status := SaveStatus{
		Pending:     slot.running,
		LastSavedAt: slot.savedAt,
	}
	if slot.failure != nil {
		status.Failure = slot.failure.Error()
		slot.failure = nil
	}
	return status
}

// Close stops retry waits and waits for the running writers. Each queued
// snapshot still gets one write attempt.
func (a *AutoSaver) Close() {
	a.mu.Lock()
	a.cancel()
	a.mu.Unlock()
	a.wg.Wait()
}

// sweepLocked drops finished slots untouched for IdleTTL. Runs at most once
// per IdleTTL.
func (a *AutoSaver) sweepLocked(now time.Time) {
	if now.Sub(a.lastSweep) < a.params.IdleTTL {
		return
	}
	a.lastSweep = now
	for key, slot := range a.slots {
		if !slot.running && now.Sub(slot.touched) >= a.params.IdleTTL {
			delete(a.slots, key)
		}
	}
}

func (a *AutoSaver) run(key slotKey, slot *saveSlot) {
	defer a.wg.Done()
	defer a.metrics.GaugePendingSaves.Dec()

	for {
		a.mu.Lock()
		if !slot.dirty {
			slot.running = false
			slot.touched = time.Now()
			close(slot.idle)
			a.mu.Unlock()
			return
		}
		table := slot.table
		slot.dirty = false
		a.mu.Unlock()

		err := a.save(key.userID, key.sessionID, table)

		a.mu.Lock()
		if err != nil {
			slot.failure = err
			// Later snapshots of a completed or missing session fail the same way.
			if isPermanentSaveError(err) {
				slot.dirty = false
			}
		} else {
			slot.failure = nil
			slot.savedAt = time.Now().UTC()
		}
		a.mu.Unlock()
	}
}

func (a *AutoSaver) save(userID, sessionID string, table domain.Table) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.params.InitialBackoff
	policy.MaxInterval = a.params.MaxBackoff
	policy.MaxElapsedTime = 0

	operation := func() error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), a.params.WriteTimeout)
		defer cancel()
		err := a.sessions.AutoSave(ctx, userID, sessionID, table)
		if err != nil && isPermanentSaveError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		a.metrics.CounterAutoSaves.WithLabelValues("retry").Inc()
		log.WithError(err).WithFields(log.Fields{
			"sessionId": sessionID,
			"retryIn":   next,
		}).Warn("auto-save failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, a.params.MaxRetries), a.ctx)
	err := backoff.RetryNotify(operation, b, notify)
	if err != nil && a.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		err = fmt.Errorf("auto-save stopped: %w: %w", ErrStoreFailure, err)
	}
	switch {
	case err == nil:
		a.metrics.CounterAutoSaves.WithLabelValues("ok").Inc()
	case isPermanentSaveError(err):
		a.metrics.CounterAutoSaves.WithLabelValues("rejected").Inc()
		log.WithError(err).WithField("sessionId", sessionID).Info("auto-save rejected")
	default:
		a.metrics.CounterAutoSaves.WithLabelValues("failed").Inc()
		log.WithError(err).WithFields(log.Fields{
			"sessionId": sessionID,
			"userId":    userID,
		}).Error("auto-save gave up")
	}
	return err
}

func isPermanentSaveError(err error) bool {
	return errors.Is(err, ErrSessionCompleted) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrUnauthenticated)
}
