package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/middleware"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

type portalServiceMock struct {
	gate          models.SubmissionGate
	receipt       *models.MutationReceipt
	err           error
	report        *models.ComplianceReport
	lastTeacher   string
	lastWeek      string
	lastRequestID string
	lastTeachers  []models.Teacher
	lastOptions   service.SubmitOptions
	calls         map[string]int
}

func newPortalServiceMock() *portalServiceMock {
	return &portalServiceMock{
		receipt: &models.MutationReceipt{Action: models.ActionSubmitPlan, DataVersion: 1, Dispatched: true},
		calls:   map[string]int{},
	}
}

func (m *portalServiceMock) SubmissionGate(teacherID, week string) models.SubmissionGate {
	m.calls["gate"]++
	m.lastTeacher, m.lastWeek = teacherID, week
	gate := m.gate
	gate.TeacherID, gate.WeekStarting = teacherID, week
	return gate
}

func (m *portalServiceMock) SubmitPlan(ctx context.Context, teacherID, week string, plans []models.PlanEntry, opts ...service.SubmitOption) (*models.MutationReceipt, error) {
	m.calls["submit"]++
	m.lastTeacher, m.lastWeek = teacherID, week
	m.lastOptions = service.SubmitOptions{}
	for _, opt := range opts {
		opt(&m.lastOptions)
	}
	if m.lastOptions.RequireOpenGate && !m.gate.Allowed() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "plan already submitted for this week")
	}
	return m.receipt, m.err
}

func (m *portalServiceMock) RequestResubmit(ctx context.Context, teacherID, week string) (*models.MutationReceipt, error) {
	m.calls["request"]++
	m.lastTeacher, m.lastWeek = teacherID, week
	return m.receipt, m.err
}

func (m *portalServiceMock) ApproveResubmit(ctx context.Context, requestID string) (*models.MutationReceipt, error) {
	m.calls["approve"]++
	m.lastRequestID = requestID
	return m.receipt, m.err
}

func (m *portalServiceMock) RejectResubmit(ctx context.Context, requestID string) (*models.MutationReceipt, error) {
	m.calls["reject"]++
	m.lastRequestID = requestID
	return m.receipt, m.err
}

func (m *portalServiceMock) ForceReset(ctx context.Context, teacherID, week string) (*models.MutationReceipt, error) {
	m.calls["reset"]++
	m.lastTeacher, m.lastWeek = teacherID, week
	return m.receipt, m.err
}

func (m *portalServiceMock) UpdateRegistry(ctx context.Context, teachers []models.Teacher) (*models.MutationReceipt, error) {
	m.calls["registry"]++
	m.lastTeachers = teachers
	return m.receipt, m.err
}

func (m *portalServiceMock) FactoryResetRegistry(ctx context.Context) (*models.MutationReceipt, error) {
	m.calls["factory"]++
	return m.receipt, m.err
}

func (m *portalServiceMock) Compliance(ctx context.Context, week string) (*models.ComplianceReport, error) {
	m.calls["compliance"]++
	m.lastWeek = week
	return m.report, m.err
}

func (m *portalServiceMock) SendWarnings(ctx context.Context, week string) (*models.MutationReceipt, error) {
	m.calls["warnings"]++
	m.lastWeek = week
	return m.receipt, m.err
}

var (
	teacherClaims = &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher, SessionID: "s"}
	adminClaims   = &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin, SessionID: "s"}
)

const planBody = `{"weekStarting":"2024-03-04","plans":[{"classLevel":"X","section":"A","subject":"Math"}]}`

func portalContext(w *httptest.ResponseRecorder, req *http.Request, claims *models.JWTClaims) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c
}

func TestPortalHandlerSubmitPlanAsTeacher(t *testing.T) {
	mockSvc := newPortalServiceMock()
	handler := NewPortalHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.SubmitPlan(portalContext(w, jsonRequest(http.MethodPost, "/plans", planBody), teacherClaims))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, mockSvc.calls["submit"])
	assert.Equal(t, "t-1", mockSvc.lastTeacher)
	assert.Equal(t, "2024-03-04", mockSvc.lastWeek)
}

func TestPortalHandlerSubmitPlanGateClosed(t *testing.T) {
	mockSvc := newPortalServiceMock()
	mockSvc.gate = models.SubmissionGate{Submitted: true}
	handler := NewPortalHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.SubmitPlan(portalContext(w, jsonRequest(http.MethodPost, "/plans", planBody), teacherClaims))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))
	assert.True(t, mockSvc.lastOptions.RequireOpenGate)
	assert.Zero(t, mockSvc.calls["gate"], "gate is checked inside the write")

	mockSvc.gate.ResubmitAllowed = true
	w = httptest.NewRecorder()
	handler.SubmitPlan(portalContext(w, jsonRequest(http.MethodPost, "/plans", planBody), teacherClaims))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestPortalHandlerTeacherCannotActForOthers(t *testing.T) {
	mockSvc := newPortalServiceMock()
	handler := NewPortalHandler(mockSvc)

	w := httptest.NewRecorder()
	body := `{"teacherId":"t-2","weekStarting":"2024-03-04","plans":[{"classLevel":"X","section":"A","subject":"Math"}]}`
	handler.SubmitPlan(portalContext(w, jsonRequest(http.MethodPost, "/plans", body), teacherClaims))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	handler.SubmitPlan(portalContext(w, jsonRequest(http.MethodPost, "/plans", planBody), adminClaims))
	assert.Equal(t, http.StatusBadRequest, w.Code, "admins must name the teacher")

	w = httptest.NewRecorder()
	handler.SubmitPlan(portalContext(w, jsonRequest(http.MethodPost, "/plans", body), adminClaims))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t-2", mockSvc.lastTeacher)
}

func TestPortalHandlerSubmitPlanInvalidBody(t *testing.T) {
	mockSvc := newPortalServiceMock()
	handler := NewPortalHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.SubmitPlan(portalContext(w, jsonRequest(http.MethodPost, "/plans", `{"plans":[]}`), teacherClaims))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mockSvc.calls["gate"])
}

func TestPortalHandlerGateDefaultsToCurrentWeek(t *testing.T) {
	mockSvc := newPortalServiceMock()
	handler := NewPortalHandler(mockSvc)
	handler.now = func() time.Time { return time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC) }

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/plans/gate", nil)
	handler.Gate(portalContext(w, req, teacherClaims))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-04", mockSvc.lastWeek)
	meta := decodeEnvelope(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, true, meta["allowed"])
}

func TestPortalHandlerRequestResubmit(t *testing.T) {
	mockSvc := newPortalServiceMock()
	handler := NewPortalHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.RequestResubmit(portalContext(w, jsonRequest(http.MethodPost, "/resubmits", `{"weekStarting":"2024-03-04"}`), teacherClaims))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t-1", mockSvc.lastTeacher)

	mockSvc.err = appErrors.Clone(appErrors.ErrConflict, "request already pending")
	w = httptest.NewRecorder()
	handler.RequestResubmit(portalContext(w, jsonRequest(http.MethodPost, "/resubmits", `{"weekStarting":"2024-03-04"}`), teacherClaims))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPortalHandlerApproveAndReject(t *testing.T) {
	mockSvc := newPortalServiceMock()
	handler := NewPortalHandler(mockSvc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/resubmits/r-1/approve", nil)
	c := portalContext(w, req, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	handler.ApproveResubmit(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r-1", mockSvc.lastRequestID)

	mockSvc.err = appErrors.Clone(appErrors.ErrNotFound, "resubmit request not found")
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/resubmits/r-9/reject", nil)
	c = portalContext(w, req, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "r-9"}}
	handler.RejectResubmit(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, mockSvc.calls["reject"])
}

func TestPortalHandlerForceReset(t *testing.T) {
	mockSvc := newPortalServiceMock()
	handler := NewPortalHandler(mockSvc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/submissions/t-2/2024-03-04", nil)
	c := portalContext(w, req, adminClaims)
	c.Params = gin.Params{{Key: "teacherId", Value: "t-2"}, {Key: "week", Value: "2024-03-04"}}
	handler.ForceReset(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t-2", mockSvc.lastTeacher)
	assert.Equal(t, "2024-03-04", mockSvc.lastWeek)
}

func TestPortalHandlerRegistry(t *testing.T) {
	mockSvc := newPortalServiceMock()
	handler := NewPortalHandler(mockSvc)

	w := httptest.NewRecorder()
	body := `{"teachers":[{"id":"t-1","email":"ana@school.test","name":"Ana"}]}`
	handler.UpdateRegistry(portalContext(w, jsonRequest(http.MethodPut, "/registry", body), adminClaims))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mockSvc.lastTeachers, 1)
	assert.Equal(t, "Ana", mockSvc.lastTeachers[0].Name)

	w = httptest.NewRecorder()
	handler.FactoryReset(portalContext(w, jsonRequest(http.MethodPost, "/registry/factory-reset", `{"confirm":false}`), adminClaims))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mockSvc.calls["factory"])

	w = httptest.NewRecorder()
	handler.FactoryReset(portalContext(w, jsonRequest(http.MethodPost, "/registry/factory-reset", `{"confirm":true}`), adminClaims))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mockSvc.calls["factory"])
}

func TestPortalHandlerComplianceAndWarnings(t *testing.T) {
	mockSvc := newPortalServiceMock()
	mockSvc.report = &models.ComplianceReport{WeekStarting: "2024-03-04", Total: 2, Submitted: 1, Pending: 1}
	handler := NewPortalHandler(mockSvc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/compliance?week=2024-03-04", nil)
	handler.Compliance(portalContext(w, req, adminClaims))
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["pending"])

	w = httptest.NewRecorder()
	handler.SendWarnings(portalContext(w, jsonRequest(http.MethodPost, "/warnings", `{"weekStarting":"2024-03-11"}`), adminClaims))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-11", mockSvc.lastWeek)

	w = httptest.NewRecorder()
	handler.SendWarnings(portalContext(w, jsonRequest(http.MethodPost, "/warnings", `{}`), adminClaims))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
