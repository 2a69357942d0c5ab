package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

type portalHarness struct {
	svc        *PortalService
	state      *StateStore
	cache      *LocalCache
	dispatcher *recordingDispatcher
}

func newPortalHarness(t *testing.T) *portalHarness {
	t.Helper()
	cache, _ := newTestCache(t)
	return newPortalHarnessWithCache(t, cache)
}

func newPortalHarnessWithCache(t *testing.T, cache *LocalCache) *portalHarness {
	t.Helper()
	state := newSeededState(t, cache)
	dispatcher := &recordingDispatcher{outcome: models.DispatchSent}
	svc := NewPortalService(state, cache, dispatcher, nil, nil)
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC) }
	return &portalHarness{svc: svc, state: state, cache: cache, dispatcher: dispatcher}
}

// assertCacheMatchesMemory checks that every collection in the Local Store equals memory.
func assertCacheMatchesMemory(t *testing.T, h *portalHarness) {
	t.Helper()
	ctx := context.Background()
	current := h.state.State()

	var teachers []models.Teacher
	_, err := h.cache.Load(ctx, KeyTeachers, &teachers)
	require.NoError(t, err)
	assert.Equal(t, len(current.Teachers), len(teachers))

	var submissions []models.WeeklySubmission
	_, err = h.cache.Load(ctx, KeySubmissions, &submissions)
	require.NoError(t, err)
	require.Equal(t, len(current.Submissions), len(submissions))
	for i := range submissions {
		assert.Equal(t, current.Submissions[i].ID, submissions[i].ID)
		assert.Equal(t, current.Submissions[i].Key(), submissions[i].Key())
	}

	var requests []models.ResubmitRequest
	_, err = h.cache.Load(ctx, KeyRequests, &requests)
	require.NoError(t, err)
	require.Equal(t, len(current.Requests), len(requests))
	for i := range requests {
		assert.Equal(t, current.Requests[i].ID, requests[i].ID)
		assert.Equal(t, current.Requests[i].Status, requests[i].Status)
	}
}

func countActive(submissions []models.WeeklySubmission, teacherID, week string) int {
	count := 0
	for _, submission := range submissions {
		if submission.Matches(teacherID, week) {
			count++
		}
	}
	return count
}

func TestSubmitPlanFirstTime(t *testing.T) {
	h := newPortalHarness(t)
	receipt, err := h.svc.SubmitPlan(context.Background(), "t-1", fixtureWeek, fixturePlans())
	require.NoError(t, err)

	assert.True(t, receipt.Dispatched)
	assert.Equal(t, models.ActionSubmitPlan, receipt.Action)
	current := h.state.State()
	require.Len(t, current.Submissions, 1)
	submission := current.Submissions[0]
	assert.Equal(t, "Ana Wijaya", submission.TeacherName)
	assert.Equal(t, "ana@school.test", submission.TeacherEmail)
	assert.Equal(t, current.DataVersion, receipt.DataVersion)

	payload := h.dispatcher.last()
	assert.Equal(t, models.ActionSubmitPlan, payload.Action)
	assert.Equal(t, receipt.DataVersion, payload.DataVersion)
	assert.Equal(t, submission, payload.Fields["submission"])
	assertCacheMatchesMemory(t, h)
}

func TestSubmitPlanValidation(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	_, err := h.svc.SubmitPlan(ctx, "t-1", "2024-03-05", fixturePlans())
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, nil)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, []models.PlanEntry{{ClassLevel: "X"}})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = h.svc.SubmitPlan(ctx, "ghost", fixtureWeek, fixturePlans())
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	assert.Empty(t, h.state.State().Submissions)
	assert.Equal(t, 0, h.dispatcher.count())
}

func TestSubmitPlanKeepsOneActiveSubmissionPerWeek(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, fixturePlans())
		require.NoError(t, err)
	}
	_, err := h.svc.SubmitPlan(ctx, "t-2", fixtureWeek, fixturePlans())
	require.NoError(t, err)
	_, err = h.svc.SubmitPlan(ctx, "t-1", "2024-03-11", fixturePlans())
	require.NoError(t, err)

	current := h.state.State()
	assert.Equal(t, 1, countActive(current.Submissions, "t-1", fixtureWeek))
	assert.Equal(t, 1, countActive(current.Submissions, "t-2", fixtureWeek))
	assert.Equal(t, 1, countActive(current.Submissions, "t-1", "2024-03-11"))
	assert.Len(t, current.Submissions, 3)
	assertCacheMatchesMemory(t, h)
}

func TestSubmitPlanWithOpenGateAcceptsOneConcurrentWriter(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, fixturePlans(), WithOpenGate())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, appErrors.ErrConflict)
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, h.dispatcher.count())
	assert.Equal(t, 1, countActive(h.state.State().Submissions, "t-1", fixtureWeek))

	_, err := h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, fixturePlans())
	require.NoError(t, err, "without the option the service replaces the submission")
	assert.Equal(t, 1, countActive(h.state.State().Submissions, "t-1", fixtureWeek))
}

func TestResubmitFlowApproveUnlocksWeek(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	_, err := h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, fixturePlans())
	require.NoError(t, err)
	gate := h.svc.SubmissionGate("t-1", fixtureWeek)
	assert.True(t, gate.Submitted)
	assert.False(t, gate.Allowed())

	receipt, err := h.svc.RequestResubmit(ctx, "t-1", fixtureWeek)
	require.NoError(t, err)
	request := receipt.Result.(models.ResubmitRequest)
	assert.Equal(t, models.ResubmitStatusPending, request.Status)
	assert.True(t, h.svc.SubmissionGate("t-1", fixtureWeek).PendingRequest)

	_, err = h.svc.RequestResubmit(ctx, "t-1", fixtureWeek)
	require.ErrorIs(t, err, appErrors.ErrConflict)

	receipt, err = h.svc.ApproveResubmit(ctx, request.ID)
	require.NoError(t, err)
	payload := h.dispatcher.last()
	assert.Equal(t, models.ActionApproveResubmit, payload.Action)
	assert.Equal(t, request.ID, payload.Fields["requestId"])
	assert.Equal(t, "t-1", payload.Fields["teacherId"])
	assert.Equal(t, fixtureWeek, payload.Fields["weekStarting"])

	current := h.state.State()
	assert.Equal(t, 0, countActive(current.Submissions, "t-1", fixtureWeek))
	assert.Empty(t, current.Requests)
	assert.Equal(t, current.DataVersion, receipt.DataVersion)
	assertCacheMatchesMemory(t, h)

	gate = h.svc.SubmissionGate("t-1", fixtureWeek)
	assert.True(t, gate.Allowed())
	_, err = h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, fixturePlans())
	require.NoError(t, err)
	assert.Equal(t, 1, countActive(h.state.State().Submissions, "t-1", fixtureWeek))
}

func TestApproveResubmitFailureTriggersCorrectivePull(t *testing.T) {
	h := newPortalHarness(t)
	_, err := h.svc.ApproveResubmit(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Len(t, h.dispatcher.corrections, 1)
	assert.Equal(t, 0, h.dispatcher.count())
}

func TestApproveResubmitPersistFailureIsAtomic(t *testing.T) {
	store := &failingStore{KeyValueStore: repository.NewMemoryStore()}
	h := newPortalHarnessWithCache(t, NewLocalCache(store, nil, nil))
	ctx := context.Background()

	_, err := h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, fixturePlans())
	require.NoError(t, err)
	receipt, err := h.svc.RequestResubmit(ctx, "t-1", fixtureWeek)
	require.NoError(t, err)
	before := h.state.State()

	store.failWrites = true
	_, err = h.svc.ApproveResubmit(ctx, receipt.Result.(models.ResubmitRequest).ID)
	require.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Equal(t, before, h.state.State())
	assert.Len(t, h.dispatcher.corrections, 1)
	assert.Equal(t, 2, h.dispatcher.count(), "no push after a failed approval")
}

func TestRejectResubmitKeepsSubmission(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	_, err := h.svc.SubmitPlan(ctx, "t-2", fixtureWeek, fixturePlans())
	require.NoError(t, err)
	receipt, err := h.svc.RequestResubmit(ctx, "t-2", fixtureWeek)
	require.NoError(t, err)
	requestID := receipt.Result.(models.ResubmitRequest).ID

	_, err = h.svc.RejectResubmit(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionRejectResubmit, h.dispatcher.last().Action)

	current := h.state.State()
	require.Len(t, current.Requests, 1)
	assert.Equal(t, models.ResubmitStatusRejected, current.Requests[0].Status)
	assert.Equal(t, 1, countActive(current.Submissions, "t-2", fixtureWeek))
	assert.False(t, h.svc.SubmissionGate("t-2", fixtureWeek).Allowed())

	_, err = h.svc.RejectResubmit(ctx, requestID)
	require.ErrorIs(t, err, appErrors.ErrConflict)
	assertCacheMatchesMemory(t, h)
}

func TestApproveResubmitRejectsSettledRequest(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	_, err := h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, fixturePlans())
	require.NoError(t, err)
	receipt, err := h.svc.RequestResubmit(ctx, "t-1", fixtureWeek)
	require.NoError(t, err)
	requestID := receipt.Result.(models.ResubmitRequest).ID
	_, err = h.svc.RejectResubmit(ctx, requestID)
	require.NoError(t, err)
	pushes := h.dispatcher.count()

	_, err = h.svc.ApproveResubmit(ctx, requestID)
	require.ErrorIs(t, err, appErrors.ErrConflict)

	current := h.state.State()
	assert.Equal(t, 1, countActive(current.Submissions, "t-1", fixtureWeek))
	require.Len(t, current.Requests, 1)
	assert.Equal(t, models.ResubmitStatusRejected, current.Requests[0].Status)
	assert.False(t, h.svc.SubmissionGate("t-1", fixtureWeek).Allowed())
	assert.Equal(t, pushes, h.dispatcher.count())
	assert.Len(t, h.dispatcher.corrections, 1)
	assertCacheMatchesMemory(t, h)
}

func TestForceReset(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	_, err := h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, fixturePlans())
	require.NoError(t, err)
	_, err = h.svc.ForceReset(ctx, "t-1", fixtureWeek)
	require.NoError(t, err)

	payload := h.dispatcher.last()
	assert.Equal(t, models.ActionResetSubmission, payload.Action)
	assert.Equal(t, "t-1", payload.Fields["teacherId"])
	assert.Empty(t, h.state.State().Submissions)
	assertCacheMatchesMemory(t, h)

	_, err = h.svc.ForceReset(ctx, "t-1", fixtureWeek)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Len(t, h.dispatcher.corrections, 1)
}

func TestUpdateRegistry(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	duplicate := append(fixtureTeachers(), models.Teacher{ID: "t-1", Email: "dup@school.test", Name: "Dup"})
	_, err := h.svc.UpdateRegistry(ctx, duplicate)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = h.svc.UpdateRegistry(ctx, []models.Teacher{{ID: "t-5", Email: "broken", Name: "Broken"}})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	registry := []models.Teacher{{ID: " t-7 ", Email: "dewi@school.test", Name: "Dewi"}}
	receipt, err := h.svc.UpdateRegistry(ctx, registry)
	require.NoError(t, err)
	assert.Equal(t, models.ActionSyncRegistry, receipt.Action)

	current := h.state.State()
	require.Len(t, current.Teachers, 1)
	assert.Equal(t, "t-7", current.Teachers[0].ID)
	assert.NotNil(t, current.Teachers[0].Assignments)
	assertCacheMatchesMemory(t, h)

	_, err = h.svc.FactoryResetRegistry(ctx)
	require.NoError(t, err)
	assert.Empty(t, h.state.State().Teachers)
	assert.Equal(t, []models.Teacher{}, h.dispatcher.last().Fields["teachers"])
}

func TestComplianceAndWarnings(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	_, err := h.svc.SubmitPlan(ctx, "t-1", fixtureWeek, fixturePlans())
	require.NoError(t, err)

	report, err := h.svc.Compliance(ctx, fixtureWeek)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Pending)

	receipt, err := h.svc.SendWarnings(ctx, fixtureWeek)
	require.NoError(t, err)
	assert.Equal(t, []string{"t-2"}, receipt.Result)
	payload := h.dispatcher.last()
	assert.Equal(t, models.ActionSendWarnings, payload.Action)
	assert.Equal(t, fixtureWeek, payload.Fields["weekStarting"])

	report, err = h.svc.Compliance(ctx, fixtureWeek)
	require.NoError(t, err)
	for _, entry := range report.Entries {
		assert.Equal(t, entry.TeacherID == "t-2", entry.Warned, entry.TeacherID)
	}

	pushes := h.dispatcher.count()
	receipt, err = h.svc.SendWarnings(ctx, fixtureWeek)
	require.NoError(t, err)
	assert.False(t, receipt.Dispatched)
	assert.Equal(t, pushes, h.dispatcher.count(), "already warned teachers are skipped")
}

func TestSendWarningsMarksOnlyRetainedPushes(t *testing.T) {
	h := newPortalHarness(t)
	ctx := context.Background()

	h.dispatcher.setOutcome(models.DispatchDropped)
	receipt, err := h.svc.SendWarnings(ctx, fixtureWeek)
	require.NoError(t, err)
	assert.False(t, receipt.Dispatched)
	assert.False(t, receipt.Queued)
	warned, err := h.cache.NotifiedTeachers(ctx, fixtureWeek)
	require.NoError(t, err)
	assert.Empty(t, warned)

	h.dispatcher.setOutcome(models.DispatchQueued)
	receipt, err = h.svc.SendWarnings(ctx, fixtureWeek)
	require.NoError(t, err)
	assert.True(t, receipt.Queued)
	assert.ElementsMatch(t, []string{"t-1", "t-2"}, receipt.Result)
	warned, err = h.cache.NotifiedTeachers(ctx, fixtureWeek)
	require.NoError(t, err)
	assert.Len(t, warned, 2)
}

func TestPortalWithRemoteScenarioA(t *testing.T) {
	h := newReconcilerHarness(t, time.Hour)
	h.connect(t)
	svc := NewPortalService(h.state, h.cache, h.reconciler, nil, nil)

	receipt, err := svc.SubmitPlan(context.Background(), "t-1", fixtureWeek, fixturePlans())
	require.NoError(t, err)
	assert.True(t, receipt.Dispatched)

	pushes := h.remote.pushed()
	require.Len(t, pushes, 1)
	assert.Equal(t, "SUBMIT_PLAN", pushes[0]["action"])
	assert.Equal(t, float64(receipt.DataVersion), pushes[0]["_dataVersion"])
	assert.Equal(t, 1, countActive(h.state.State().Submissions, "t-1", fixtureWeek))
}
