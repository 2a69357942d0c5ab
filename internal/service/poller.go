package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

type snapshotPuller interface {
	Pull(ctx context.Context, force bool) error
}

// Poller issues forced pulls on a fixed interval and when the client becomes visible again.
// Every pull runs on the poller's own goroutine, so pulls never overlap.
type Poller struct {
	puller   snapshotPuller
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	wake    chan struct{}
	visible bool
}

// NewPoller constructs a stopped poller.
func NewPoller(puller snapshotPuller, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		puller:   puller,
		interval: interval,
		timeout:  interval,
		logger:   logger,
		visible:  true,
	}
}

// Start pulls immediately and then every interval until Stop or ctx cancellation. Safe to call twice.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.wake = make(chan struct{}, 1)
	go p.loop(loopCtx, p.done, p.wake)
	p.logger.Info("polling started", zap.Duration("interval", p.interval))
}

// Stop cancels the timer and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done, p.wake = nil, nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("polling stopped")
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// SetVisible records client visibility; a hidden to visible transition triggers one pull.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	wasHidden := !p.visible
	p.visible = visible
	wake := p.wake
	p.mu.Unlock()
	if !visible || !wasHidden || wake == nil {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}, wake <-chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pull(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pull(ctx, "timer")
		case <-wake:
			p.pull(ctx, "visibility")
		}
	}
}

func (p *Poller) pull(ctx context.Context, trigger string) {
	pullCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.puller.Pull(pullCtx, true)
	if err == nil || errors.Is(err, appErrors.ErrInvalidSyncURL) || ctx.Err() != nil {
		return
	}
	p.logger.Debug("scheduled pull failed", zap.String("trigger", trigger), zap.Error(err))
}
