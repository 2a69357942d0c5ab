package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

type mutationDispatcher interface {
	Dispatch(ctx context.Context, payload models.SyncPayload) models.DispatchOutcome
	Correct(ctx context.Context, cause error)
}

// PortalService implements the domain mutation handlers. Each handler mutates and persists local
// state first, then pushes the change and leaves confirmation to the reconciler.
type PortalService struct {
	state      *StateStore
	cache      *LocalCache
	dispatcher mutationDispatcher
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// NewPortalService constructs the handlers.
func NewPortalService(state *StateStore, cache *LocalCache, dispatcher mutationDispatcher, validate *validator.Validate, logger *zap.Logger) *PortalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PortalService{
		state:      state,
		cache:      cache,
		dispatcher: dispatcher,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// State returns the current in-memory collections.
func (s *PortalService) State() models.PortalState {
	return s.state.State()
}

// SubmitOptions tunes SubmitPlan.
type SubmitOptions struct {
	// RequireOpenGate refuses the submission with a conflict when the week is already locked.
	RequireOpenGate bool
}

// SubmitOption mutates SubmitOptions.
type SubmitOption func(*SubmitOptions)

// WithOpenGate checks the submission gate against the same state the submission is written to.
func WithOpenGate() SubmitOption {
	return func(o *SubmitOptions) { o.RequireOpenGate = true }
}

// SubmissionGate reports whether teacherID may submit for week.
func (s *PortalService) SubmissionGate(teacherID, week string) models.SubmissionGate {
	return gateFor(s.state.State(), teacherID, week)
}

func gateFor(state models.PortalState, teacherID, week string) models.SubmissionGate {
	gate := models.SubmissionGate{TeacherID: teacherID, WeekStarting: week}
	for _, submission := range state.Submissions {
		if submission.Matches(teacherID, week) {
			gate.Submitted = true
			break
		}
	}
	for _, request := range state.Requests {
		if !request.Matches(teacherID, week) {
			continue
		}
		switch request.Status {
		case models.ResubmitStatusApproved:
			gate.ResubmitAllowed = true
		case models.ResubmitStatusPending:
			gate.PendingRequest = true
		}
	}
	return gate
}

// SubmitPlan records a teacher's plan for a week, replacing any prior submission for the same week.
func (s *PortalService) SubmitPlan(ctx context.Context, teacherID, week string, plans []models.PlanEntry, opts ...SubmitOption) (*models.MutationReceipt, error) {
	var options SubmitOptions
	for _, opt := range opts {
		opt(&options)
	}
	if err := validateWeek(week); err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one plan entry is required")
	}
	for _, plan := range plans {
		if err := s.validator.Struct(plan); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan entry")
		}
	}

	var submission models.WeeklySubmission
	version, err := s.state.Mutate(ctx, func(current models.PortalState) (StateChange, error) {
		teacher, ok := models.FindTeacher(current.Teachers, teacherID)
		if !ok {
			return StateChange{}, appErrors.Clone(appErrors.ErrNotFound, "teacher not found in registry")
		}
		if options.RequireOpenGate && !gateFor(current, teacherID, week).Allowed() {
			return StateChange{}, appErrors.Clone(appErrors.ErrConflict, "plan already submitted for this week; request a resubmission")
		}
		submission = models.WeeklySubmission{
			ID:           s.newID(),
			TeacherID:    teacher.ID,
			TeacherName:  teacher.Name,
			TeacherEmail: teacher.Email,
			WeekStarting: week,
			Plans:        append([]models.PlanEntry(nil), plans...),
			SubmittedAt:  s.now().UTC(),
		}
		next := make([]models.WeeklySubmission, 0, len(current.Submissions)+1)
		for _, existing := range current.Submissions {
			if !existing.Matches(teacherID, week) {
				next = append(next, existing)
			}
		}
		next = append(next, submission)
		return StateChange{Submissions: &next}, nil
	})
	if err != nil {
		return nil, storeError(err, "failed to save submission")
	}

	s.logger.Info("plan submitted", zap.String("teacher_id", teacherID), zap.String("week", week))
	return s.dispatch(ctx, models.ActionSubmitPlan, version, map[string]interface{}{
		"submission": submission,
	}, submission), nil
}

// RequestResubmit opens a pending request to overwrite an existing submission.
func (s *PortalService) RequestResubmit(ctx context.Context, teacherID, week string) (*models.MutationReceipt, error) {
	if err := validateWeek(week); err != nil {
		return nil, err
	}

	var request models.ResubmitRequest
	version, err := s.state.Mutate(ctx, func(current models.PortalState) (StateChange, error) {
		teacher, ok := models.FindTeacher(current.Teachers, teacherID)
		if !ok {
			return StateChange{}, appErrors.Clone(appErrors.ErrNotFound, "teacher not found in registry")
		}
		submitted := false
		for _, submission := range current.Submissions {
			if submission.Matches(teacherID, week) {
				submitted = true
				break
			}
		}
		if !submitted {
			return StateChange{}, appErrors.Clone(appErrors.ErrNotFound, "no submission exists for this week")
		}
		for _, existing := range current.Requests {
			if existing.Matches(teacherID, week) && existing.Status == models.ResubmitStatusPending {
				return StateChange{}, appErrors.Clone(appErrors.ErrConflict, "a resubmission request is already pending")
			}
		}
		request = models.ResubmitRequest{
			ID:           s.newID(),
			TeacherID:    teacher.ID,
			TeacherName:  teacher.Name,
			TeacherEmail: teacher.Email,
			WeekStarting: week,
			Status:       models.ResubmitStatusPending,
			RequestedAt:  s.now().UTC(),
		}
		next := append(current.Requests, request)
		return StateChange{Requests: &next}, nil
	})
	if err != nil {
		return nil, storeError(err, "failed to save resubmission request")
	}

	s.logger.Info("resubmission requested", zap.String("teacher_id", teacherID), zap.String("week", week))
	return s.dispatch(ctx, models.ActionRequestResubmit, version, map[string]interface{}{
		"request": request,
	}, request), nil
}

// ApproveResubmit removes a pending request and the submission it targets in one write.
func (s *PortalService) ApproveResubmit(ctx context.Context, requestID string) (*models.MutationReceipt, error) {
	var request models.ResubmitRequest
	version, err := s.state.Mutate(ctx, func(current models.PortalState) (StateChange, error) {
		found := false
		requests := make([]models.ResubmitRequest, 0, len(current.Requests))
		for _, existing := range current.Requests {
			if existing.ID == requestID {
				request, found = existing, true
				continue
			}
			requests = append(requests, existing)
		}
		if !found {
			return StateChange{}, appErrors.Clone(appErrors.ErrNotFound, "resubmission request not found")
		}
		if request.Status != models.ResubmitStatusPending {
			return StateChange{}, appErrors.Clone(appErrors.ErrConflict, "resubmission request is not pending")
		}
		submissions := make([]models.WeeklySubmission, 0, len(current.Submissions))
		for _, existing := range current.Submissions {
			if !existing.Matches(request.TeacherID, request.WeekStarting) {
				submissions = append(submissions, existing)
			}
		}
		return StateChange{Requests: &requests, Submissions: &submissions}, nil
	})
	if err != nil {
		s.dispatcher.Correct(ctx, err)
		return nil, storeError(err, "failed to approve resubmission")
	}

	s.logger.Info("resubmission approved",
		zap.String("request_id", requestID),
		zap.String("teacher_id", request.TeacherID),
		zap.String("week", request.WeekStarting))
	return s.dispatch(ctx, models.ActionApproveResubmit, version, map[string]interface{}{
		"requestId":    request.ID,
		"teacherId":    request.TeacherID,
		"weekStarting": request.WeekStarting,
	}, request), nil
}

// RejectResubmit marks a pending request rejected and leaves the submission in place.
func (s *PortalService) RejectResubmit(ctx context.Context, requestID string) (*models.MutationReceipt, error) {
	var request models.ResubmitRequest
	version, err := s.state.Mutate(ctx, func(current models.PortalState) (StateChange, error) {
		requests := current.Requests
		for i := range requests {
			if requests[i].ID != requestID {
				continue
			}
			if requests[i].Status != models.ResubmitStatusPending {
				return StateChange{}, appErrors.Clone(appErrors.ErrConflict, "resubmission request is not pending")
			}
			requests[i].Status = models.ResubmitStatusRejected
			requests[i].TeacherNotified = false
			request = requests[i]
			return StateChange{Requests: &requests}, nil
		}
		return StateChange{}, appErrors.Clone(appErrors.ErrNotFound, "resubmission request not found")
	})
	if err != nil {
		return nil, storeError(err, "failed to reject resubmission")
	}

	s.logger.Info("resubmission rejected", zap.String("request_id", requestID))
	return s.dispatch(ctx, models.ActionRejectResubmit, version, map[string]interface{}{
		"requestId":    request.ID,
		"teacherId":    request.TeacherID,
		"weekStarting": request.WeekStarting,
	}, request), nil
}

// ForceReset deletes one submission so the teacher can submit again.
func (s *PortalService) ForceReset(ctx context.Context, teacherID, week string) (*models.MutationReceipt, error) {
	if err := validateWeek(week); err != nil {
		return nil, err
	}
	version, err := s.state.Mutate(ctx, func(current models.PortalState) (StateChange, error) {
		next := make([]models.WeeklySubmission, 0, len(current.Submissions))
		for _, existing := range current.Submissions {
			if !existing.Matches(teacherID, week) {
				next = append(next, existing)
			}
		}
		if len(next) == len(current.Submissions) {
			return StateChange{}, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return StateChange{Submissions: &next}, nil
	})
	if err != nil {
		s.dispatcher.Correct(ctx, err)
		return nil, storeError(err, "failed to reset submission")
	}

	s.logger.Info("submission reset", zap.String("teacher_id", teacherID), zap.String("week", week))
	return s.dispatch(ctx, models.ActionResetSubmission, version, map[string]interface{}{
		"teacherId":    teacherID,
		"weekStarting": week,
	}, nil), nil
}

// UpdateRegistry replaces the faculty registry.
func (s *PortalService) UpdateRegistry(ctx context.Context, teachers []models.Teacher) (*models.MutationReceipt, error) {
	seen := make(map[string]struct{}, len(teachers))
	normalized := make([]models.Teacher, 0, len(teachers))
	for _, teacher := range teachers {
		teacher.ID = strings.TrimSpace(teacher.ID)
		teacher.Email = strings.TrimSpace(teacher.Email)
		teacher.Name = strings.TrimSpace(teacher.Name)
		if err := s.validator.Struct(teacher); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid teacher %q", teacher.ID))
		}
		if _, dup := seen[teacher.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate teacher id %q", teacher.ID))
		}
		seen[teacher.ID] = struct{}{}
		if teacher.Assignments == nil {
			teacher.Assignments = []models.ClassAssignment{}
		}
		normalized = append(normalized, teacher)
	}
	return s.replaceRegistry(ctx, normalized)
}

// FactoryResetRegistry empties the faculty registry.
func (s *PortalService) FactoryResetRegistry(ctx context.Context) (*models.MutationReceipt, error) {
	s.logger.Warn("faculty registry factory reset")
	return s.replaceRegistry(ctx, []models.Teacher{})
}

func (s *PortalService) replaceRegistry(ctx context.Context, teachers []models.Teacher) (*models.MutationReceipt, error) {
	version, err := s.state.Mutate(ctx, func(models.PortalState) (StateChange, error) {
		return StateChange{Teachers: &teachers}, nil
	})
	if err != nil {
		return nil, storeError(err, "failed to save registry")
	}
	s.logger.Info("registry updated", zap.Int("teachers", len(teachers)))
	return s.dispatch(ctx, models.ActionSyncRegistry, version, map[string]interface{}{
		"teachers": teachers,
	}, map[string]int{"teachers": len(teachers)}), nil
}

// Compliance lists every registry teacher with their submission status for week.
func (s *PortalService) Compliance(ctx context.Context, week string) (*models.ComplianceReport, error) {
	if err := validateWeek(week); err != nil {
		return nil, err
	}
	warned, err := s.cache.NotifiedTeachers(ctx, week)
	if err != nil {
		return nil, storeError(err, "failed to read warning markers")
	}

	state := s.state.State()
	submittedAt := make(map[string]time.Time, len(state.Submissions))
	for _, submission := range state.Submissions {
		if submission.WeekStarting == week {
			submittedAt[submission.TeacherID] = submission.SubmittedAt
		}
	}

	report := &models.ComplianceReport{WeekStarting: week, Entries: make([]models.ComplianceEntry, 0, len(state.Teachers))}
	for _, teacher := range state.Teachers {
		entry := models.ComplianceEntry{TeacherID: teacher.ID, TeacherName: teacher.Name, Email: teacher.Email}
		if at, ok := submittedAt[teacher.ID]; ok {
			at := at
			entry.Submitted = true
			entry.SubmittedAt = &at
			report.Submitted++
		} else {
			report.Pending++
		}
		_, entry.Warned = warned[teacher.ID]
		report.Entries = append(report.Entries, entry)
	}
	report.Total = len(report.Entries)
	return report, nil
}

// SendWarnings pushes a reminder for teachers who have not submitted and were not warned yet.
// Markers are written only once the push is dispatched or queued, so a lost warning is retried on the next call.
func (s *PortalService) SendWarnings(ctx context.Context, week string) (*models.MutationReceipt, error) {
	report, err := s.Compliance(ctx, week)
	if err != nil {
		return nil, err
	}
	state := s.state.State()

	recipients := make([]map[string]string, 0)
	ids := make([]string, 0)
	for _, entry := range report.Entries {
		if entry.Submitted || entry.Warned {
			continue
		}
		teacher, _ := models.FindTeacher(state.Teachers, entry.TeacherID)
		recipients = append(recipients, map[string]string{
			"id":       teacher.ID,
			"name":     teacher.Name,
			"email":    teacher.Email,
			"whatsapp": teacher.WhatsApp,
		})
		ids = append(ids, teacher.ID)
	}
	if len(ids) == 0 {
		return &models.MutationReceipt{Action: models.ActionSendWarnings, DataVersion: state.DataVersion, Result: ids}, nil
	}

	receipt := s.dispatch(ctx, models.ActionSendWarnings, state.DataVersion, map[string]interface{}{
		"weekStarting": week,
		"teachers":     recipients,
	}, ids)

	if !receipt.Dispatched && !receipt.Queued {
		s.logger.Warn("warnings neither sent nor queued, markers not written", zap.String("week", week), zap.Int("teachers", len(ids)))
		return receipt, nil
	}
	at := s.now()
	for _, id := range ids {
		if err := s.cache.MarkNotified(ctx, id, week, at); err != nil {
			s.logger.Warn("failed to record warning marker", zap.String("teacher_id", id), zap.Error(err))
		}
	}
	s.logger.Info("warnings sent", zap.String("week", week), zap.Int("teachers", len(ids)), zap.Bool("dispatched", receipt.Dispatched))
	return receipt, nil
}

// dispatch pushes an action whose local effects are already persisted.
func (s *PortalService) dispatch(ctx context.Context, action models.SyncAction, version uint64, fields map[string]interface{}, result interface{}) *models.MutationReceipt {
	payload := models.NewSyncPayload(action, fields)
	payload.DataVersion = version
	return models.NewMutationReceipt(action, version, s.dispatcher.Dispatch(ctx, payload), result)
}

func validateWeek(week string) error {
	if _, err := models.ParseWeekStarting(week); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "weekStarting must be a Monday in YYYY-MM-DD form")
	}
	return nil
}

// storeError keeps typed domain errors and classifies the rest as internal.
func storeError(err error, message string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
