package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/repository"
)

func fixtureTeachers() []models.Teacher {
	return []models.Teacher{
		{
			ID:       "t-1",
			Email:    "ana@school.test",
			Name:     "Ana Wijaya",
			WhatsApp: "+62811000001",
			Assignments: []models.ClassAssignment{
				{ClassLevel: "X", Section: "A", Subject: "Mathematics"},
			},
			ClassTeacherOf: &models.ClassAssignment{ClassLevel: "X", Section: "A", Subject: "Mathematics"},
		},
		{
			ID:    "t-2",
			Email: "budi@school.test",
			Name:  "Budi Santoso",
			Assignments: []models.ClassAssignment{
				{ClassLevel: "XI", Section: "B", Subject: "Physics"},
			},
		},
	}
}

func fixturePlans() []models.PlanEntry {
	return []models.PlanEntry{
		{ClassLevel: "X", Section: "A", Subject: "Mathematics", Chapter: "Fractions", Topics: "Adding fractions", Homework: "Page 12"},
	}
}

const fixtureWeek = "2024-03-04"

func newTestCache(t *testing.T) (*LocalCache, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewLocalCache(store, nil, nil), store
}

func newSeededState(t *testing.T, cache *LocalCache) *StateStore {
	t.Helper()
	state := NewStateStore(cache, nil, nil)
	teachers := fixtureTeachers()
	_, err := state.Mutate(context.Background(), func(models.PortalState) (StateChange, error) {
		return StateChange{Teachers: &teachers}, nil
	})
	require.NoError(t, err)
	return state
}

// failingStore wraps a store and fails writes on demand.
type failingStore struct {
	KeyValueStore
	failWrites bool
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failWrites {
		return errDiskFull
	}
	return f.KeyValueStore.Set(ctx, key, value)
}

func (f *failingStore) SetMany(ctx context.Context, entries map[string][]byte) error {
	if f.failWrites {
		return errDiskFull
	}
	return f.KeyValueStore.SetMany(ctx, entries)
}

// fakeRemote is an httptest stand-in for the spreadsheet-backed endpoint.
type fakeRemote struct {
	server *httptest.Server

	mu       sync.Mutex
	snapshot interface{}
	status   int
	pulls    []*http.Request
	pushes   []map[string]interface{}
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()
	remote := &fakeRemote{
		status:   http.StatusOK,
		snapshot: map[string]interface{}{"result": "success"},
	}
	remote.server = httptest.NewServer(http.HandlerFunc(remote.serve))
	t.Cleanup(remote.server.Close)
	return remote
}

func (f *fakeRemote) URL() string {
	return f.server.URL + "/exec"
}

func (f *fakeRemote) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		f.pulls = append(f.pulls, r.Clone(context.Background()))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(f.snapshot)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload map[string]interface{}
		_ = json.Unmarshal([]byte(r.PostForm.Get("payload")), &payload)
		f.pushes = append(f.pushes, payload)
		w.WriteHeader(f.status)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeRemote) setSnapshot(snapshot interface{}) {
	f.mu.Lock()
	f.snapshot = snapshot
	f.mu.Unlock()
}

func (f *fakeRemote) setStatus(status int) {
	f.mu.Lock()
	f.status = status
	f.mu.Unlock()
}

func (f *fakeRemote) pullCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pulls)
}

func (f *fakeRemote) lastPull() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pulls) == 0 {
		return nil
	}
	return f.pulls[len(f.pulls)-1]
}

func (f *fakeRemote) pushed() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.pushes...)
}

// recordingDispatcher captures payloads without any network.
type recordingDispatcher struct {
	mu          sync.Mutex
	outcome     models.DispatchOutcome
	payloads    []models.SyncPayload
	corrections []error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, payload models.SyncPayload) models.DispatchOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, payload)
	return d.outcome
}

func (d *recordingDispatcher) setOutcome(outcome models.DispatchOutcome) {
	d.mu.Lock()
	d.outcome = outcome
	d.mu.Unlock()
}

func (d *recordingDispatcher) Correct(_ context.Context, cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.corrections = append(d.corrections, cause)
}

func (d *recordingDispatcher) last() models.SyncPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payloads[len(d.payloads)-1]
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.payloads)
}
