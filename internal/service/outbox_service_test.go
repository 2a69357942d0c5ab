package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/jobs"
)

type scriptedPusher struct {
	mu      sync.Mutex
	failOn  map[models.SyncAction]bool
	sent    []models.SyncAction
	bodies  [][]byte
	urlSeen string
}

func (p *scriptedPusher) PushRaw(_ context.Context, rawURL string, action models.SyncAction, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urlSeen = rawURL
	if p.failOn[action] {
		return errors.New("network unreachable")
	}
	p.sent = append(p.sent, action)
	p.bodies = append(p.bodies, body)
	return nil
}

type capturingQueue struct {
	jobs []jobs.Job
}

func (q *capturingQueue) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type countingConfirmer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingConfirmer) ScheduleConfirm() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingConfirmer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newOutboxForTest(t *testing.T, pusher *scriptedPusher, maxAttempts int) (*OutboxService, *SyncSettings) {
	t.Helper()
	cache, _ := newTestCache(t)
	settings := NewSyncSettings(cache, "", nil)
	return NewOutboxService(cache, pusher, settings, nil, nil, maxAttempts), settings
}

func TestOutboxReplaySendsInOrderAndClears(t *testing.T) {
	ctx := context.Background()
	pusher := &scriptedPusher{}
	outbox, settings := newOutboxForTest(t, pusher, 3)

	first := models.NewSyncPayload(models.ActionSubmitPlan, map[string]interface{}{"submission": "a"})
	first.DataVersion = 4
	require.NoError(t, outbox.Enqueue(ctx, models.OutboxRetry, first, errors.New("timeout")))
	require.NoError(t, outbox.Enqueue(ctx, models.OutboxOffline, models.NewSyncPayload(models.ActionSyncRegistry, nil), nil))
	require.NoError(t, outbox.Enqueue(ctx, models.OutboxRetry, models.NewSyncPayload(models.ActionResetSubmission, nil), nil))

	_, err := outbox.Replay(ctx)
	require.ErrorIs(t, err, appErrors.ErrInvalidSyncURL)
	assert.Equal(t, 3, outbox.Depth(ctx))

	require.NoError(t, settings.Set(ctx, "https://sync.example.com/exec"))
	result, err := outbox.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReplayResult{Sent: 3}, result)
	assert.Equal(t, []models.SyncAction{models.ActionSyncRegistry, models.ActionSubmitPlan, models.ActionResetSubmission}, pusher.sent)
	assert.Equal(t, 0, outbox.Depth(ctx))

	var replayed map[string]interface{}
	require.NoError(t, json.Unmarshal(pusher.bodies[1], &replayed))
	assert.Equal(t, "SUBMIT_PLAN", replayed["action"])
	assert.Equal(t, float64(4), replayed["_dataVersion"])
}

func TestOutboxReplayStopsQueueAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	pusher := &scriptedPusher{failOn: map[models.SyncAction]bool{models.ActionApproveResubmit: true}}
	outbox, settings := newOutboxForTest(t, pusher, 2)
	require.NoError(t, settings.Set(ctx, "https://sync.example.com/exec"))

	for _, action := range []models.SyncAction{models.ActionSubmitPlan, models.ActionApproveResubmit, models.ActionSyncRegistry} {
		require.NoError(t, outbox.Enqueue(ctx, models.OutboxRetry, models.NewSyncPayload(action, nil), nil))
	}

	result, err := outbox.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReplayResult{Sent: 1, Failed: 1}, result)

	pending, err := outbox.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, models.ActionApproveResubmit, pending[0].Action)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "network unreachable", pending[0].LastError)
	assert.Equal(t, models.ActionSyncRegistry, pending[1].Action)
	assert.Equal(t, 0, pending[1].Attempts)

	result, err = outbox.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReplayResult{Dropped: 1}, result)

	pending, err = outbox.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.ActionSyncRegistry, pending[0].Action)
}

func TestOutboxReplaySchedulesConfirmationAfterSend(t *testing.T) {
	ctx := context.Background()
	pusher := &scriptedPusher{failOn: map[models.SyncAction]bool{models.ActionSendWarnings: true}}
	outbox, settings := newOutboxForTest(t, pusher, 5)
	confirmer := &countingConfirmer{}
	outbox.AttachConfirmer(confirmer)
	require.NoError(t, settings.Set(ctx, "https://sync.example.com/exec"))

	_, err := outbox.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, confirmer.count(), "empty outbox")

	require.NoError(t, outbox.Enqueue(ctx, models.OutboxOffline, models.NewSyncPayload(models.ActionSendWarnings, nil), nil))
	result, err := outbox.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, confirmer.count(), "nothing sent")

	pusher.mu.Lock()
	pusher.failOn = nil
	pusher.mu.Unlock()
	result, err = outbox.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, confirmer.count())
}

func TestOutboxHandleJobReportsFailures(t *testing.T) {
	ctx := context.Background()
	pusher := &scriptedPusher{failOn: map[models.SyncAction]bool{models.ActionSendWarnings: true}}
	outbox, settings := newOutboxForTest(t, pusher, 5)

	require.NoError(t, outbox.HandleJob(ctx, jobs.Job{Type: JobTypeOutboxReplay}))
	require.Error(t, outbox.HandleJob(ctx, jobs.Job{Type: "other"}))

	require.NoError(t, settings.Set(ctx, "https://sync.example.com/exec"))
	require.NoError(t, outbox.Enqueue(ctx, models.OutboxOffline, models.NewSyncPayload(models.ActionSendWarnings, nil), nil))
	require.Error(t, outbox.HandleJob(ctx, jobs.Job{Type: JobTypeOutboxReplay}))
}

func TestOutboxRequestReplayOnlyWhenPending(t *testing.T) {
	ctx := context.Background()
	outbox, _ := newOutboxForTest(t, &scriptedPusher{}, 3)
	queue := &capturingQueue{}

	outbox.RequestReplay()
	outbox.AttachQueue(queue)
	outbox.RequestReplay()
	assert.Empty(t, queue.jobs)

	require.NoError(t, outbox.Enqueue(ctx, models.OutboxOffline, models.NewSyncPayload(models.ActionSyncRegistry, nil), nil))
	outbox.RequestReplay()
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeOutboxReplay, queue.jobs[0].Type)
}
