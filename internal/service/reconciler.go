package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

type syncTransport interface {
	Pull(ctx context.Context, rawURL string, force bool) (*models.Snapshot, error)
	Push(ctx context.Context, rawURL string, payload models.SyncPayload) error
}

type outboxWriter interface {
	Enqueue(ctx context.Context, queue models.OutboxQueue, payload models.SyncPayload, cause error) error
	RequestReplay()
	Depth(ctx context.Context) int
}

// ReconcilerConfig tunes confirmation pulls.
type ReconcilerConfig struct {
	ConfirmDelay time.Duration
	PullTimeout  time.Duration
}

// Reconciler keeps memory, the Local Store and the remote endpoint convergent.
// Remote snapshots always win once received.
type Reconciler struct {
	state    *StateStore
	client   syncTransport
	settings *SyncSettings
	outbox   outboxWriter
	logger   *zap.Logger
	cfg      ReconcilerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	timers     map[*time.Timer]struct{}
	closed     bool
	lastPullAt *time.Time
	lastErr    string
}

// NewReconciler constructs the engine. outbox may be nil.
func NewReconciler(state *StateStore, client syncTransport, settings *SyncSettings, outbox outboxWriter, logger *zap.Logger, cfg ReconcilerConfig) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConfirmDelay < 0 {
		cfg.ConfirmDelay = 0
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		state:    state,
		client:   client,
		settings: settings,
		outbox:   outbox,
		logger:   logger,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		timers:   make(map[*time.Timer]struct{}),
	}
}

// Pull fetches a snapshot and applies it. On any failure local state is left unchanged.
func (r *Reconciler) Pull(ctx context.Context, force bool) error {
	url := r.settings.URL()
	if url == "" {
		return appErrors.ErrInvalidSyncURL
	}
	snapshot, err := r.client.Pull(ctx, url, force)
	if err != nil {
		r.recordPull(err)
		return err
	}
	version, err := r.state.ApplySnapshot(ctx, snapshot)
	if err != nil {
		r.logger.Error("apply snapshot failed", zap.Error(err))
		r.recordPull(err)
		return err
	}
	r.recordPull(nil)
	r.logger.Debug("snapshot applied", zap.Bool("force", force), zap.Uint64("data_version", version))
	if r.outbox != nil {
		r.outbox.RequestReplay()
	}
	return nil
}

// Dispatch pushes a mutation that has already been persisted locally. Failed or deferred
// pushes land in the outbox; DispatchDropped means the outbox could not take them either.
func (r *Reconciler) Dispatch(ctx context.Context, payload models.SyncPayload) models.DispatchOutcome {
	url := r.settings.URL()
	if url == "" {
		return r.enqueue(ctx, models.OutboxOffline, payload, appErrors.ErrInvalidSyncURL)
	}
	if err := r.client.Push(ctx, url, payload); err != nil {
		return r.enqueue(ctx, models.OutboxRetry, payload, err)
	}
	r.ScheduleConfirm()
	return models.DispatchSent
}

// Confirm is the post-mutation forced pull. If the remote has not applied the mutation yet,
// the optimistic local change is reverted; callers needing stronger guarantees retry.
func (r *Reconciler) Confirm(ctx context.Context) error {
	return r.Pull(ctx, true)
}

// Correct resynchronises after a failed multi-step mutation.
func (r *Reconciler) Correct(ctx context.Context, cause error) {
	r.logger.Warn("mutation failed, pulling remote state", zap.Error(cause))
	if err := r.Pull(ctx, true); err != nil && !errors.Is(err, appErrors.ErrInvalidSyncURL) {
		r.logger.Warn("corrective pull failed", zap.Error(err))
	}
}

// ScheduleConfirm runs Confirm after the configured delay on the reconciler's own context.
func (r *Reconciler) ScheduleConfirm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(r.cfg.ConfirmDelay, func() {
		defer r.wg.Done()
		r.mu.Lock()
		delete(r.timers, timer)
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return
		}
		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.PullTimeout)
		defer cancel()
		if err := r.Confirm(ctx); err != nil && !errors.Is(err, appErrors.ErrInvalidSyncURL) {
			r.logger.Debug("confirmation pull failed", zap.Error(err))
		}
	})
	r.timers[timer] = struct{}{}
}

// Status summarises the sync state.
func (r *Reconciler) Status(ctx context.Context) models.SyncStatus {
	r.mu.Lock()
	status := models.SyncStatus{
		URL:           r.settings.URL(),
		LastPullError: r.lastErr,
	}
	if r.lastPullAt != nil {
		at := *r.lastPullAt
		status.LastPullAt = &at
	}
	r.mu.Unlock()
	status.Configured = status.URL != ""
	status.DataVersion = r.state.Version()
	if r.outbox != nil {
		status.PendingWrites = r.outbox.Depth(ctx)
	}
	return status
}

// Close cancels pending confirmation pulls and waits for running ones.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for timer := range r.timers {
		if timer.Stop() {
			r.wg.Done()
		}
		delete(r.timers, timer)
	}
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}

func (r *Reconciler) enqueue(ctx context.Context, queue models.OutboxQueue, payload models.SyncPayload, cause error) models.DispatchOutcome {
	if r.outbox == nil {
		r.logger.Warn("no outbox configured, write lost", zap.String("action", string(payload.Action)))
		return models.DispatchDropped
	}
	if err := r.outbox.Enqueue(ctx, queue, payload, cause); err != nil {
		r.logger.Error("outbox enqueue failed", zap.String("action", string(payload.Action)), zap.Error(err))
		return models.DispatchDropped
	}
	return models.DispatchQueued
}

func (r *Reconciler) recordPull(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.lastErr = err.Error()
		return
	}
	now := time.Now().UTC()
	r.lastPullAt = &now
	r.lastErr = ""
}
