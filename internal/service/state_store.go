package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
)

// StateChange carries the next full value of each affected collection. Nil fields are left alone.
type StateChange struct {
	Teachers    *[]models.Teacher
	Submissions *[]models.WeeklySubmission
	Requests    *[]models.ResubmitRequest
}

// Empty reports whether the change touches nothing.
func (c StateChange) Empty() bool {
	return c.Teachers == nil && c.Submissions == nil && c.Requests == nil
}

// StateStore is the application-state container: in-memory collections mirrored to the Local Store.
type StateStore struct {
	cache   *LocalCache
	metrics *MetricsService
	logger  *zap.Logger

	mu          sync.Mutex
	teachers    []models.Teacher
	submissions []models.WeeklySubmission
	requests    []models.ResubmitRequest
	version     uint64
	changed     chan struct{}
}

// NewStateStore constructs an empty container. Call Load to hydrate from the Local Store.
func NewStateStore(cache *LocalCache, metrics *MetricsService, logger *zap.Logger) *StateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		teachers:    []models.Teacher{},
		submissions: []models.WeeklySubmission{},
		requests:    []models.ResubmitRequest{},
		changed:     make(chan struct{}),
	}
}

// Load re-derives the in-memory collections from the Local Store.
func (s *StateStore) Load(ctx context.Context) error {
	var (
		teachers    []models.Teacher
		submissions []models.WeeklySubmission
		requests    []models.ResubmitRequest
	)
	if _, err := s.cache.Load(ctx, KeyTeachers, &teachers); err != nil {
		return err
	}
	if _, err := s.cache.Load(ctx, KeySubmissions, &submissions); err != nil {
		return err
	}
	if _, err := s.cache.Load(ctx, KeyRequests, &requests); err != nil {
		return err
	}

	s.mu.Lock()
	s.teachers = nonNil(teachers)
	s.submissions = nonNil(submissions)
	s.requests = nonNil(requests)
	s.bumpLocked()
	s.mu.Unlock()

	s.logger.Info("local state loaded",
		zap.Int("teachers", len(teachers)),
		zap.Int("submissions", len(submissions)),
		zap.Int("requests", len(requests)))
	return nil
}

// State returns a copy of every collection plus the current data version.
func (s *StateStore) State() models.PortalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.PortalState{
		Teachers:    cloneTeachers(s.teachers),
		Submissions: cloneSubmissions(s.submissions),
		Requests:    cloneRequests(s.requests),
		DataVersion: s.version,
	}
}

// Version returns the local change counter.
func (s *StateStore) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// ApplySnapshot replaces every collection present in the snapshot verbatim.
func (s *StateStore) ApplySnapshot(ctx context.Context, snapshot *models.Snapshot) (uint64, error) {
	change := StateChange{}
	if snapshot != nil {
		change.Teachers = snapshot.Teachers
		change.Submissions = snapshot.Submissions
		change.Requests = snapshot.Requests
	}
	return s.Mutate(ctx, func(models.PortalState) (StateChange, error) {
		return change, nil
	})
}

// Mutate computes the next collections from the latest state under the lock, persists them in
// one atomic write, then swaps memory and bumps the data version. On error nothing changes.
func (s *StateStore) Mutate(ctx context.Context, fn func(current models.PortalState) (StateChange, error)) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := models.PortalState{
		Teachers:    cloneTeachers(s.teachers),
		Submissions: cloneSubmissions(s.submissions),
		Requests:    cloneRequests(s.requests),
		DataVersion: s.version,
	}
	change, err := fn(current)
	if err != nil {
		return s.version, err
	}

	values := make(map[string]interface{}, 3)
	if change.Teachers != nil {
		values[KeyTeachers] = nonNil(*change.Teachers)
	}
	if change.Submissions != nil {
		values[KeySubmissions] = nonNil(*change.Submissions)
	}
	if change.Requests != nil {
		values[KeyRequests] = nonNil(*change.Requests)
	}
	if len(values) > 0 {
		if err := s.cache.SaveAll(ctx, values); err != nil {
			return s.version, err
		}
	}

	if change.Teachers != nil {
		s.teachers = cloneTeachers(nonNil(*change.Teachers))
	}
	if change.Submissions != nil {
		s.submissions = cloneSubmissions(nonNil(*change.Submissions))
	}
	if change.Requests != nil {
		s.requests = cloneRequests(nonNil(*change.Requests))
	}
	s.bumpLocked()
	return s.version, nil
}

// Changed returns a channel closed at the next version bump.
func (s *StateStore) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// WaitForChange blocks until the version moves past since or ctx ends.
func (s *StateStore) WaitForChange(ctx context.Context, since uint64) (uint64, error) {
	for {
		s.mu.Lock()
		version, ch := s.version, s.changed
		s.mu.Unlock()
		if version > since {
			return version, nil
		}
		select {
		case <-ctx.Done():
			return version, ctx.Err()
		case <-ch:
		}
	}
}

func (s *StateStore) bumpLocked() {
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
	s.metrics.SetDataVersion(s.version)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func cloneTeachers(items []models.Teacher) []models.Teacher {
	out := make([]models.Teacher, len(items))
	for i, item := range items {
		item.Assignments = append([]models.ClassAssignment(nil), item.Assignments...)
		if item.ClassTeacherOf != nil {
			homeroom := *item.ClassTeacherOf
			item.ClassTeacherOf = &homeroom
		}
		out[i] = item
	}
	return out
}

func cloneSubmissions(items []models.WeeklySubmission) []models.WeeklySubmission {
	out := make([]models.WeeklySubmission, len(items))
	for i, item := range items {
		item.Plans = append([]models.PlanEntry(nil), item.Plans...)
		out[i] = item
	}
	return out
}

func cloneRequests(items []models.ResubmitRequest) []models.ResubmitRequest {
	return append(make([]models.ResubmitRequest, 0, len(items)), items...)
}
