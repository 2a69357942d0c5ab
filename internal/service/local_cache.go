package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

// Local Store keys.
const (
	KeyTeachers      = "portal:teachers"
	KeySubmissions   = "portal:submissions"
	KeyRequests      = "portal:requests"
	KeySyncURL       = "portal:sync_url"
	KeyOutboxOffline = "portal:outbox:offline"
	KeyOutboxRetry   = "portal:outbox:retry"
	notifiedPrefix   = "portal:notified:"
)

// KeyValueStore is the persistent byte store backing the portal cache.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// LocalCache layers typed JSON accessors over a KeyValueStore.
type LocalCache struct {
	store   KeyValueStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewLocalCache constructs the cache.
func NewLocalCache(store KeyValueStore, metrics *MetricsService, logger *zap.Logger) *LocalCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalCache{store: store, metrics: metrics, logger: logger}
}

// Load decodes the value under key into dest. It reports false when the key is absent.
func (c *LocalCache) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	start := time.Now()
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, appErrors.ErrStoreMiss) {
			c.metrics.RecordStoreOperation("get", true, time.Since(start))
			return false, nil
		}
		c.metrics.RecordStoreOperation("get", false, time.Since(start))
		return false, err
	}
	c.metrics.RecordStoreOperation("get", true, time.Since(start))
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("discarding undecodable local entry", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Save encodes value and stores it under key.
func (c *LocalCache) Save(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	start := time.Now()
	err = c.store.Set(ctx, key, payload)
	c.metrics.RecordStoreOperation("set", err == nil, time.Since(start))
	return err
}

// SaveAll encodes every value and stores them atomically.
func (c *LocalCache) SaveAll(ctx context.Context, values map[string]interface{}) error {
	entries := make(map[string][]byte, len(values))
	for key, value := range values {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		entries[key] = payload
	}
	start := time.Now()
	err := c.store.SetMany(ctx, entries)
	c.metrics.RecordStoreOperation("set_many", err == nil, time.Since(start))
	return err
}

// Remove deletes key.
func (c *LocalCache) Remove(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// LoadString returns a plain string value, empty when absent.
func (c *LocalCache) LoadString(ctx context.Context, key string) (string, error) {
	var value string
	if _, err := c.Load(ctx, key, &value); err != nil {
		return "", err
	}
	return value, nil
}

// MarkNotified records that a warning went out for the teacher and week.
func (c *LocalCache) MarkNotified(ctx context.Context, teacherID, week string, at time.Time) error {
	return c.Save(ctx, notifiedKey(teacherID, week), at.UTC())
}

// NotifiedTeachers returns the teacher ids already warned for week.
func (c *LocalCache) NotifiedTeachers(ctx context.Context, week string) (map[string]struct{}, error) {
	keys, err := c.store.Keys(ctx, notifiedPrefix)
	if err != nil {
		return nil, err
	}
	result := make(map[string]struct{})
	suffix := ":" + week
	for _, key := range keys {
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		teacherID := strings.TrimSuffix(strings.TrimPrefix(key, notifiedPrefix), suffix)
		if teacherID != "" {
			result[teacherID] = struct{}{}
		}
	}
	return result, nil
}

// OutboxKey maps an outbox queue to its store key.
func OutboxKey(queue models.OutboxQueue) string {
	if queue == models.OutboxOffline {
		return KeyOutboxOffline
	}
	return KeyOutboxRetry
}

func notifiedKey(teacherID, week string) string {
	return notifiedPrefix + teacherID + ":" + week
}
