package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

type portalService interface {
	SubmissionGate(teacherID, week string) models.SubmissionGate
	SubmitPlan(ctx context.Context, teacherID, week string, plans []models.PlanEntry, opts ...service.SubmitOption) (*models.MutationReceipt, error)
	RequestResubmit(ctx context.Context, teacherID, week string) (*models.MutationReceipt, error)
	ApproveResubmit(ctx context.Context, requestID string) (*models.MutationReceipt, error)
	RejectResubmit(ctx context.Context, requestID string) (*models.MutationReceipt, error)
	ForceReset(ctx context.Context, teacherID, week string) (*models.MutationReceipt, error)
	UpdateRegistry(ctx context.Context, teachers []models.Teacher) (*models.MutationReceipt, error)
	FactoryResetRegistry(ctx context.Context) (*models.MutationReceipt, error)
	Compliance(ctx context.Context, week string) (*models.ComplianceReport, error)
	SendWarnings(ctx context.Context, week string) (*models.MutationReceipt, error)
}

// PortalHandler exposes the lesson plan workflow.
type PortalHandler struct {
	portal portalService
	now    func() time.Time
}

// NewPortalHandler constructs a PortalHandler.
func NewPortalHandler(portal portalService) *PortalHandler {
	return &PortalHandler{portal: portal, now: time.Now}
}

// SubmitPlan godoc
// @Summary Submit a week of lesson plans
// @Tags Plans
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.SubmitPlanRequest true "Plans"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans [post]
func (h *PortalHandler) SubmitPlan(c *gin.Context) {
	var req dto.SubmitPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	teacherID, err := actingTeacher(c, req.TeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	receipt, err := h.portal.SubmitPlan(c.Request.Context(), teacherID, req.WeekStarting, req.Plans, service.WithOpenGate())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// Gate godoc
// @Summary Check whether a submission is accepted
// @Tags Plans
// @Security BearerAuth
// @Produce json
// @Param teacherId query string false "Teacher ID (admins only)"
// @Param week query string false "Week starting (defaults to the current week)"
// @Success 200 {object} response.Envelope
// @Router /plans/gate [get]
func (h *PortalHandler) Gate(c *gin.Context) {
	teacherID, err := actingTeacher(c, c.Query("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	gate := h.portal.SubmissionGate(teacherID, h.week(c))
	response.JSON(c, http.StatusOK, gate, map[string]interface{}{"allowed": gate.Allowed()})
}

// RequestResubmit godoc
// @Summary Ask to unlock a submitted week
// @Tags Resubmits
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.ResubmitRequest true "Request"
// @Success 201 {object} response.Envelope
// @Router /resubmits [post]
func (h *PortalHandler) RequestResubmit(c *gin.Context) {
	var req dto.ResubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resubmit payload"))
		return
	}
	teacherID, err := actingTeacher(c, req.TeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	receipt, err := h.portal.RequestResubmit(c.Request.Context(), teacherID, req.WeekStarting)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// ApproveResubmit godoc
// @Summary Approve a resubmission request
// @Tags Resubmits
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /resubmits/{id}/approve [post]
func (h *PortalHandler) ApproveResubmit(c *gin.Context) {
	receipt, err := h.portal.ApproveResubmit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt)
}

// RejectResubmit godoc
// @Summary Reject a resubmission request
// @Tags Resubmits
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /resubmits/{id}/reject [post]
func (h *PortalHandler) RejectResubmit(c *gin.Context) {
	receipt, err := h.portal.RejectResubmit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt)
}

// ForceReset godoc
// @Summary Delete a submission and its requests
// @Tags Submissions
// @Security BearerAuth
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param week path string true "Week starting"
// @Success 200 {object} response.Envelope
// @Router /submissions/{teacherId}/{week} [delete]
func (h *PortalHandler) ForceReset(c *gin.Context) {
	receipt, err := h.portal.ForceReset(c.Request.Context(), c.Param("teacherId"), c.Param("week"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt)
}

// UpdateRegistry godoc
// @Summary Replace the faculty registry
// @Tags Registry
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.UpdateRegistryRequest true "Teachers"
// @Success 200 {object} response.Envelope
// @Router /registry [put]
func (h *PortalHandler) UpdateRegistry(c *gin.Context) {
	var req dto.UpdateRegistryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registry payload"))
		return
	}
	receipt, err := h.portal.UpdateRegistry(c.Request.Context(), req.Teachers)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt)
}

// FactoryReset godoc
// @Summary Empty the faculty registry
// @Tags Registry
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.FactoryResetRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Router /registry/factory-reset [post]
func (h *PortalHandler) FactoryReset(c *gin.Context) {
	var req dto.FactoryResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid factory reset payload"))
		return
	}
	if !req.Confirm {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "factory reset requires confirm=true"))
		return
	}
	receipt, err := h.portal.FactoryResetRegistry(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt)
}

// Compliance godoc
// @Summary Weekly submission compliance
// @Tags Compliance
// @Security BearerAuth
// @Produce json
// @Param week query string false "Week starting (defaults to the current week)"
// @Success 200 {object} response.Envelope
// @Router /compliance [get]
func (h *PortalHandler) Compliance(c *gin.Context) {
	report, err := h.portal.Compliance(c.Request.Context(), h.week(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// SendWarnings godoc
// @Summary Warn teachers who have not submitted
// @Tags Compliance
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.WeekRequest true "Week"
// @Success 200 {object} response.Envelope
// @Router /warnings [post]
func (h *PortalHandler) SendWarnings(c *gin.Context) {
	var req dto.WeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid warnings payload"))
		return
	}
	receipt, err := h.portal.SendWarnings(c.Request.Context(), req.WeekStarting)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt)
}

func (h *PortalHandler) week(c *gin.Context) string {
	if week := c.Query("week"); week != "" {
		return week
	}
	return models.WeekStartingFor(h.now())
}
