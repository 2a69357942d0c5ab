package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	"github.com/noah-isme/syllabus-portal/internal/service"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
	"github.com/noah-isme/syllabus-portal/pkg/response"
)

const maxVersionWait = 55 * time.Second

type stateReader interface {
	State() models.PortalState
	WaitForChange(ctx context.Context, since uint64) (uint64, error)
}

type syncEngine interface {
	Pull(ctx context.Context, force bool) error
	Status(ctx context.Context) models.SyncStatus
}

type syncURLSettings interface {
	Set(ctx context.Context, raw string) error
	Clear(ctx context.Context) error
}

type outboxInspector interface {
	Pending(ctx context.Context) ([]models.OutboxEntry, error)
	Replay(ctx context.Context) (service.ReplayResult, error)
}

type pollingReporter interface {
	Polling() bool
}

// SyncHandler exposes in-memory state and the sync controls.
type SyncHandler struct {
	state    stateReader
	engine   syncEngine
	settings syncURLSettings
	outbox   outboxInspector
	polling  pollingReporter
}

// NewSyncHandler constructs a SyncHandler.
func NewSyncHandler(state stateReader, engine syncEngine, settings syncURLSettings, outbox outboxInspector, polling pollingReporter) *SyncHandler {
	return &SyncHandler{state: state, engine: engine, settings: settings, outbox: outbox, polling: polling}
}

// State godoc
// @Summary Current portal state
// @Tags State
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /state [get]
func (h *SyncHandler) State(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.state.State())
}

// Version godoc
// @Summary Long-poll the data version
// @Description Blocks up to wait (e.g. 25s) until dataVersion exceeds since.
// @Tags State
// @Security BearerAuth
// @Produce json
// @Param since query int false "Last seen data version"
// @Param wait query string false "Maximum wait duration"
// @Success 200 {object} response.Envelope
// @Router /state/version [get]
func (h *SyncHandler) Version(c *gin.Context) {
	var since uint64
	if raw := c.Query("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "since must be a non-negative integer"))
			return
		}
		since = parsed
	}
	var wait time.Duration
	if raw := c.Query("wait"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "wait must be a duration such as 25s"))
			return
		}
		wait = parsed
	}
	if wait > maxVersionWait {
		wait = maxVersionWait
	}

	ctx := c.Request.Context()
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	} else {
		// non-blocking read
		expired, cancel := context.WithCancel(ctx)
		cancel()
		ctx = expired
	}
	version, err := h.state.WaitForChange(ctx, since)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.StateVersionResponse{DataVersion: version, Changed: version > since})
}

// Pull godoc
// @Summary Pull the remote snapshot now
// @Tags Sync
// @Security BearerAuth
// @Produce json
// @Param force query bool false "Bypass intermediary caches"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /sync/pull [post]
func (h *SyncHandler) Pull(c *gin.Context) {
	force := true
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "force must be a boolean"))
			return
		}
		force = parsed
	}
	if err := h.engine.Pull(c.Request.Context(), force); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.status(c))
}

// Status godoc
// @Summary Sync status and configured URL
// @Tags Sync
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/url [get]
func (h *SyncHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.status(c))
}

// SetURL godoc
// @Summary Configure the remote endpoint
// @Tags Sync
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.SyncURLRequest true "Endpoint"
// @Success 200 {object} response.Envelope
// @Router /sync/url [put]
func (h *SyncHandler) SetURL(c *gin.Context) {
	var req dto.SyncURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sync url payload"))
		return
	}
	if err := h.settings.Set(c.Request.Context(), req.URL); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.status(c))
}

// ClearURL godoc
// @Summary Forget the remote endpoint and stop polling
// @Tags Sync
// @Security BearerAuth
// @Success 204
// @Router /sync/url [delete]
func (h *SyncHandler) ClearURL(c *gin.Context) {
	if err := h.settings.Clear(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Outbox godoc
// @Summary List writes awaiting replay
// @Tags Sync
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/outbox [get]
func (h *SyncHandler) Outbox(c *gin.Context) {
	entries, err := h.outbox.Pending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Replay godoc
// @Summary Replay queued writes now
// @Tags Sync
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/outbox/replay [post]
func (h *SyncHandler) Replay(c *gin.Context) {
	result, err := h.outbox.Replay(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func (h *SyncHandler) status(c *gin.Context) models.SyncStatus {
	status := h.engine.Status(c.Request.Context())
	if h.polling != nil {
		status.Polling = h.polling.Polling()
	}
	return status
}
