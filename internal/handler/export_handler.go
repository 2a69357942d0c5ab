package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/response"
	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

type exportService interface {
	SendCompiledPDF(ctx context.Context, week, recipient string) (*models.MutationReceipt, error)
	ComplianceCSV(ctx context.Context, week string) ([]byte, string, error)
	DownloadURL(token string) string
	ParseToken(token string) (storage.DownloadGrant, error)
	Open(relPath string) (*os.File, error)
}

// ExportHandler serves compiled PDFs and CSV reports.
type ExportHandler struct {
	exports exportService
	now     func() time.Time
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports, now: time.Now}
}

// CompiledPDF godoc
// @Summary Compile and send a week's lesson plans as PDF
// @Tags Exports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.CompiledPDFRequest true "Week and recipient"
// @Success 200 {object} response.Envelope
// @Router /compiled-pdf [post]
func (h *ExportHandler) CompiledPDF(c *gin.Context) {
	var req dto.CompiledPDFRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid compiled pdf payload"))
		return
	}
	receipt, err := h.exports.SendCompiledPDF(c.Request.Context(), req.WeekStarting, req.Recipient)
	if err != nil {
		response.Error(c, err)
		return
	}
	if compiled, ok := receipt.Result.(models.CompiledPDF); ok {
		link := dto.ExportLink{CompiledPDF: compiled}
		if compiled.DownloadToken != "" {
			link.DownloadURL = h.exports.DownloadURL(compiled.DownloadToken)
		}
		receipt.Result = link
	}
	response.JSON(c, http.StatusOK, receipt)
}

// ComplianceCSV godoc
// @Summary Download the compliance report as CSV
// @Tags Compliance
// @Security BearerAuth
// @Produce text/csv
// @Param week query string false "Week starting (defaults to the current week)"
// @Success 200 {file} file
// @Router /compliance.csv [get]
func (h *ExportHandler) ComplianceCSV(c *gin.Context) {
	week := c.Query("week")
	if week == "" {
		week = models.WeekStartingFor(h.now())
	}
	payload, name, err := h.exports.ComplianceCSV(c.Request.Context(), week)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}

// Download godoc
// @Summary Download a stored export via signed token
// @Tags Exports
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 410 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	grant, err := h.exports.ParseToken(c.Param("token"))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenExpired):
			response.Error(c, appErrors.Wrap(err, "EXPORT_EXPIRED", http.StatusGone, "download link expired"))
		default:
			response.Error(c, appErrors.Wrap(err, appErrors.ErrForbidden.Code, http.StatusForbidden, "invalid download link"))
		}
		return
	}
	file, err := h.exports.Open(grant.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export no longer available"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open export"))
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to stat export"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType(grant.Path), file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filepath.Base(grant.Path)),
		"Cache-Control":       "no-store",
	})
}

func contentType(path string) string {
	switch filepath.Ext(path) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
