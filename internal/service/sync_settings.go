package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// SyncSettings resolves and persists the remote endpoint URL.
type SyncSettings struct {
	cache      *LocalCache
	defaultURL string
	logger     *zap.Logger

	mu        sync.RWMutex
	current   string
	listeners []func(string)
}

// NewSyncSettings constructs settings with a hardcoded fallback URL.
func NewSyncSettings(cache *LocalCache, defaultURL string, logger *zap.Logger) *SyncSettings {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncSettings{cache: cache, defaultURL: strings.TrimSpace(defaultURL), logger: logger}
}

// Resolve picks override, then the persisted value, then the default, and persists the winner.
func (s *SyncSettings) Resolve(ctx context.Context, override string) (string, error) {
	resolved := ""
	source := ""
	if _, err := ValidateSyncURL(override); err == nil {
		resolved, source = strings.TrimSpace(override), "override"
	} else {
		persisted, err := s.cache.LoadString(ctx, KeySyncURL)
		if err != nil {
			return "", err
		}
		if _, err := ValidateSyncURL(persisted); err == nil {
			resolved, source = persisted, "persisted"
		} else if _, err := ValidateSyncURL(s.defaultURL); err == nil {
			resolved, source = s.defaultURL, "default"
		}
	}

	if resolved != "" {
		if err := s.cache.Save(ctx, KeySyncURL, resolved); err != nil {
			return "", err
		}
	}
	s.swap(resolved)
	s.logger.Info("sync url resolved", zap.String("source", source), zap.Bool("configured", resolved != ""))
	return resolved, nil
}

// URL returns the active sync URL, empty when unset.
func (s *SyncSettings) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set validates and persists a new URL.
func (s *SyncSettings) Set(ctx context.Context, raw string) error {
	parsed, err := ValidateSyncURL(raw)
	if err != nil {
		return err
	}
	value := parsed.String()
	if err := s.cache.Save(ctx, KeySyncURL, value); err != nil {
		return err
	}
	s.swap(value)
	return nil
}

// Clear forgets the URL; polling stops through the change listeners.
func (s *SyncSettings) Clear(ctx context.Context) error {
	if err := s.cache.Remove(ctx, KeySyncURL); err != nil {
		return err
	}
	s.swap("")
	return nil
}

// OnChange registers a listener invoked whenever the URL changes.
func (s *SyncSettings) OnChange(fn func(url string)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *SyncSettings) swap(value string) {
	s.mu.Lock()
	changed := s.current != value
	s.current = value
	listeners := append([]func(string){}, s.listeners...)
	s.mu.Unlock()
	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(value)
	}
}
