package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

const maxSnapshotBytes = 32 << 20

// SyncClient talks to the remote spreadsheet-backed endpoint.
type SyncClient struct {
	client  *http.Client
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewSyncClient constructs a client with the given request timeout.
func NewSyncClient(timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *SyncClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncClient{
		client:  &http.Client{Timeout: timeout},
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// ValidateSyncURL checks that raw is an absolute http(s) URL with a host.
func ValidateSyncURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, appErrors.ErrInvalidSyncURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidSyncURL.Code, appErrors.ErrInvalidSyncURL.Status, appErrors.ErrInvalidSyncURL.Message)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return nil, appErrors.ErrInvalidSyncURL
	}
	return parsed, nil
}

// Pull fetches the full remote snapshot. Forced pulls carry force=<ts>, routine ones t=<ts>.
func (c *SyncClient) Pull(ctx context.Context, rawURL string, force bool) (*models.Snapshot, error) {
	target, err := ValidateSyncURL(rawURL)
	if err != nil {
		return nil, err
	}

	query := target.Query()
	stamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	if force {
		query.Set("force", stamp)
	} else {
		query.Set("t", stamp)
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, c.pullFailure(force, time.Now(), err, "build request")
	}
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.pullFailure(force, start, err, "request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, c.pullFailure(force, start, fmt.Errorf("received status %d", resp.StatusCode), "status")
	}

	var snapshot models.Snapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes)).Decode(&snapshot); err != nil {
		return nil, c.pullFailure(force, start, err, "decode")
	}
	if !snapshot.Succeeded() {
		return nil, c.pullFailure(force, start, fmt.Errorf("result %q: %s", snapshot.Result, snapshot.Message), "result")
	}

	c.metrics.RecordPull(force, "ok", time.Since(start))
	return &snapshot, nil
}

func (c *SyncClient) pullFailure(force bool, start time.Time, cause error, stage string) error {
	c.metrics.RecordPull(force, stage, time.Since(start))
	c.logger.Warn("sync pull failed", zap.String("stage", stage), zap.Bool("force", force), zap.Error(cause))
	return appErrors.Wrap(cause, appErrors.ErrSyncFailed.Code, appErrors.ErrSyncFailed.Status, "pull "+stage+" failed")
}

// Push posts a mutation as a form-encoded payload field. The far end may answer opaquely,
// so only a transport error counts as failure; application must be confirmed by a later Pull.
func (c *SyncClient) Push(ctx context.Context, rawURL string, payload models.SyncPayload) error {
	target, err := ValidateSyncURL(rawURL)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", payload.Action, err)
	}
	return c.PushRaw(ctx, target.String(), payload.Action, body)
}

// PushRaw sends an already encoded payload, used by outbox replay.
func (c *SyncClient) PushRaw(ctx context.Context, rawURL string, action models.SyncAction, body []byte) error {
	target, err := ValidateSyncURL(rawURL)
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("payload", string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrSyncFailed.Code, appErrors.ErrSyncFailed.Status, "build push request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordPush(string(action), false, time.Since(start))
		c.logger.Warn("sync push failed", zap.String("action", string(action)), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrSyncFailed.Code, appErrors.ErrSyncFailed.Status, "push failed")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	c.metrics.RecordPush(string(action), true, time.Since(start))
	c.logger.Debug("sync push dispatched", zap.String("action", string(action)), zap.Int("status", resp.StatusCode))
	return nil
}
