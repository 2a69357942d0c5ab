package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

type exportServiceMock struct {
	receipt    *models.MutationReceipt
	err        error
	csv        []byte
	grant      storage.DownloadGrant
	grantErr   error
	dir        string
	lastWeek   string
	lastTarget string
}

func (m *exportServiceMock) SendCompiledPDF(ctx context.Context, week, recipient string) (*models.MutationReceipt, error) {
	m.lastWeek, m.lastTarget = week, recipient
	return m.receipt, m.err
}

func (m *exportServiceMock) ComplianceCSV(ctx context.Context, week string) ([]byte, string, error) {
	m.lastWeek = week
	return m.csv, "compliance_" + week + ".csv", m.err
}

func (m *exportServiceMock) DownloadURL(token string) string { return "/api/v1/exports/" + token }

func (m *exportServiceMock) ParseToken(token string) (storage.DownloadGrant, error) {
	return m.grant, m.grantErr
}

func (m *exportServiceMock) Open(relPath string) (*os.File, error) {
	return os.Open(filepath.Join(m.dir, relPath))
}

func TestExportHandlerCompiledPDFAddsDownloadURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{receipt: &models.MutationReceipt{
		Action:     models.ActionSendCompiledPDF,
		Dispatched: true,
		Result:     models.CompiledPDF{FileName: "lesson_plans.pdf", DownloadToken: "tok"},
	}}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/compiled-pdf", `{"weekStarting":"2024-03-04","recipient":"principal@school.test"}`)
	handler.CompiledPDF(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "principal@school.test", mockSvc.lastTarget)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	result := data["result"].(map[string]interface{})
	assert.Equal(t, "/api/v1/exports/tok", result["downloadUrl"])
	assert.Equal(t, "lesson_plans.pdf", result["fileName"])
}

func TestExportHandlerComplianceCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{csv: []byte("Teacher ID,Name\n")}
	handler := NewExportHandler(mockSvc)
	handler.now = func() time.Time { return time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC) }

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/compliance.csv", nil)
	handler.ComplianceCSV(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-04", mockSvc.lastWeek)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "compliance_2024-03-04.csv")
	assert.Equal(t, "Teacher ID,Name\n", w.Body.String())
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lesson_plans.pdf"), []byte("%PDF-1.3"), 0o644))
	mockSvc := &exportServiceMock{dir: dir, grant: storage.DownloadGrant{Scope: "2024-03-04", Path: "lesson_plans.pdf"}}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/exports/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())
}

func TestExportHandlerDownloadErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{dir: t.TempDir(), grantErr: storage.ErrTokenExpired}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/exports/old", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusGone, w.Code)

	mockSvc.grantErr = storage.ErrInvalidToken
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/exports/forged", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	mockSvc.grantErr = nil
	mockSvc.grant = storage.DownloadGrant{Path: "gone.pdf"}
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/exports/tok", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
