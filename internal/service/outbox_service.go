package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/jobs"
)

// JobTypeOutboxReplay is the queue job type for replays.
const JobTypeOutboxReplay = "outbox_replay"

type rawPusher interface {
	PushRaw(ctx context.Context, rawURL string, action models.SyncAction, body []byte) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type confirmScheduler interface {
	ScheduleConfirm()
}

// ReplayResult reports the outcome of one replay pass.
type ReplayResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Dropped int `json:"dropped"`
}

// OutboxService persists writes that could not be pushed and replays them verbatim.
type OutboxService struct {
	cache       *LocalCache
	client      rawPusher
	settings    *SyncSettings
	metrics     *MetricsService
	logger      *zap.Logger
	maxAttempts int

	mu      sync.Mutex
	replay  sync.Mutex
	queue   jobDispatcher
	confirm confirmScheduler
	now     func() time.Time
}

// NewOutboxService constructs the outbox.
func NewOutboxService(cache *LocalCache, client rawPusher, settings *SyncSettings, metrics *MetricsService, logger *zap.Logger, maxAttempts int) *OutboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &OutboxService{
		cache:       cache,
		client:      client,
		settings:    settings,
		metrics:     metrics,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// AttachQueue wires the background worker used by RequestReplay.
func (s *OutboxService) AttachQueue(queue jobDispatcher) {
	s.mu.Lock()
	s.queue = queue
	s.mu.Unlock()
}

// AttachConfirmer wires the confirmation pull scheduled after replayed writes are sent.
func (s *OutboxService) AttachConfirmer(confirm confirmScheduler) {
	s.mu.Lock()
	s.confirm = confirm
	s.mu.Unlock()
}

// HandleJob is the jobs.Handler for replay jobs. Returning an error lets the queue retry.
func (s *OutboxService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeOutboxReplay {
		return fmt.Errorf("unexpected job type %s", job.Type)
	}
	result, err := s.Replay(ctx)
	if err != nil {
		if errors.Is(err, appErrors.ErrInvalidSyncURL) {
			return nil
		}
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d outbox entries still failing", result.Failed)
	}
	return nil
}

// RequestReplay schedules a replay on the worker queue when there is anything to send.
func (s *OutboxService) RequestReplay() {
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue == nil {
		return
	}
	if s.Depth(context.Background()) == 0 {
		return
	}
	if err := queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeOutboxReplay}); err != nil {
		s.logger.Warn("failed to schedule outbox replay", zap.Error(err))
	}
}

// Enqueue appends a payload to the named queue.
func (s *OutboxService) Enqueue(ctx context.Context, queue models.OutboxQueue, payload models.SyncPayload, cause error) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	entry := models.OutboxEntry{
		ID:       uuid.NewString(),
		Queue:    queue,
		Action:   payload.Action,
		Payload:  body,
		QueuedAt: s.now().UTC(),
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx, queue)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if err := s.cache.Save(ctx, OutboxKey(queue), entries); err != nil {
		return err
	}
	s.metrics.SetOutboxDepth(string(queue), len(entries))
	s.logger.Info("write queued for replay", zap.String("queue", string(queue)), zap.String("action", string(payload.Action)))
	return nil
}

// Pending lists entries from both queues, offline first.
func (s *OutboxService) Pending(ctx context.Context) ([]models.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.OutboxEntry, 0)
	for _, queue := range []models.OutboxQueue{models.OutboxOffline, models.OutboxRetry} {
		entries, err := s.load(ctx, queue)
		if err != nil {
			return nil, err
		}
		result = append(result, entries...)
	}
	return result, nil
}

// Depth returns the number of pending entries, zero when the store is unreadable.
func (s *OutboxService) Depth(ctx context.Context) int {
	entries, err := s.Pending(ctx)
	if err != nil {
		return 0
	}
	return len(entries)
}

// Replay re-pushes pending entries in order, stopping a queue at its first failure so later
// writes never overtake earlier ones. Acknowledged entries are removed; the failing one keeps its
// place with an incremented attempt count until maxAttempts is reached. Sent writes are followed
// by a confirmation pull.
func (s *OutboxService) Replay(ctx context.Context) (ReplayResult, error) {
	url := s.settings.URL()
	if url == "" {
		return ReplayResult{}, appErrors.ErrInvalidSyncURL
	}

	s.replay.Lock()
	defer s.replay.Unlock()

	var result ReplayResult
	for _, queue := range []models.OutboxQueue{models.OutboxOffline, models.OutboxRetry} {
		s.mu.Lock()
		entries, err := s.load(ctx, queue)
		s.mu.Unlock()
		if err != nil {
			return result, err
		}
		if len(entries) == 0 {
			continue
		}

		sent := make(map[string]struct{})
		failed := make(map[string]string)
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				break
			}
			if err := s.client.PushRaw(ctx, url, entry.Action, entry.Payload); err != nil {
				failed[entry.ID] = err.Error()
				break
			}
			sent[entry.ID] = struct{}{}
		}

		dropped, err := s.settle(ctx, queue, sent, failed)
		if err != nil {
			return result, err
		}
		result.Sent += len(sent)
		result.Failed += len(failed) - dropped
		result.Dropped += dropped
	}

	if result.Sent > 0 || result.Failed > 0 || result.Dropped > 0 {
		s.logger.Info("outbox replayed", zap.Int("sent", result.Sent), zap.Int("failed", result.Failed), zap.Int("dropped", result.Dropped))
	}
	if result.Sent > 0 {
		s.mu.Lock()
		confirm := s.confirm
		s.mu.Unlock()
		if confirm != nil {
			confirm.ScheduleConfirm()
		}
	}
	return result, nil
}

// settle reloads the queue so entries appended during the replay survive, then applies outcomes.
func (s *OutboxService) settle(ctx context.Context, queue models.OutboxQueue, sent map[string]struct{}, failed map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx, queue)
	if err != nil {
		return 0, err
	}
	dropped := 0
	remaining := make([]models.OutboxEntry, 0, len(entries))
	for _, entry := range entries {
		if _, ok := sent[entry.ID]; ok {
			continue
		}
		if cause, ok := failed[entry.ID]; ok {
			entry.Attempts++
			entry.LastError = cause
			if entry.Attempts >= s.maxAttempts {
				dropped++
				s.logger.Error("dropping outbox entry after max attempts",
					zap.String("id", entry.ID), zap.String("action", string(entry.Action)), zap.Int("attempts", entry.Attempts))
				continue
			}
		}
		remaining = append(remaining, entry)
	}
	if err := s.cache.Save(ctx, OutboxKey(queue), remaining); err != nil {
		return 0, err
	}
	s.metrics.SetOutboxDepth(string(queue), len(remaining))
	return dropped, nil
}

func (s *OutboxService) load(ctx context.Context, queue models.OutboxQueue) ([]models.OutboxEntry, error) {
	var entries []models.OutboxEntry
	if _, err := s.cache.Load(ctx, OutboxKey(queue), &entries); err != nil {
		return nil, err
	}
	return nonNil(entries), nil
}
