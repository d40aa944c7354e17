// Package poller keeps a claim view in step with the server while a
// background job owns the claim. It re-fetches on a fixed interval and
// never computes stages itself; the fetched claim decides whether polling
// continues.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/claimsync/internal/claims"
)

// Refresher fetches the claim and applies it to the view's model.
type Refresher interface {
	Refresh(ctx context.Context, id claims.ID) (*claims.Claim, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, id claims.ID) (*claims.Claim, error)

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context, id claims.ID) (*claims.Claim, error) {
	return f(ctx, id)
}

type handle struct {
	claimID claims.ID
	cancel  context.CancelFunc
}

// Poller owns at most one poll loop at a time.
type Poller struct {
	mu         sync.Mutex
	refresher  Refresher
	interval   time.Duration
	logger     *slog.Logger
	handle     *handle
	lastPolled time.Time
	wg         sync.WaitGroup
}

// New creates an idle Poller.
func New(refresher Refresher, cfg *Config, logger *slog.Logger) *Poller {
	return &Poller{
		refresher: refresher,
		interval:  cfg.Interval(),
		logger:    logger.With("system", "poller"),
	}
}

// Start begins polling id, first stopping any loop already running.
func (p *Poller) Start(ctx context.Context, id claims.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	h := &handle{claimID: id, cancel: cancel}
	p.handle = h

	p.wg.Go(func() { p.run(ctx, h) })
	p.logger.Debug("polling started", "claim_id", id, "interval", p.interval)
}

// Stop cancels the running loop, if any. It does not wait for the loop's
// goroutine to exit; use Wait for that. A loop also stops itself when its
// parent context ends.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Reconcile starts or stops polling for id to match stage. A loop already
// running for id is left alone; a loop for a different claim is stopped,
// then replaced when stage is a background one.
func (p *Poller) Reconcile(ctx context.Context, id claims.ID, stage claims.Stage) {
	if !stage.Background() {
		p.Stop()
		return
	}

	p.mu.Lock()
	running := p.handle != nil && p.handle.claimID == id
	p.mu.Unlock()
	if !running {
		p.Start(ctx, id)
	}
}

// Updating reports whether a poll loop is active.
func (p *Poller) Updating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle != nil
}

// ClaimID returns the claim being polled.
func (p *Poller) ClaimID() (claims.ID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return 0, false
	}
	return p.handle.claimID, true
}

// LastPolled returns when the most recent poll fetch completed.
func (p *Poller) LastPolled() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPolled
}

// Wait blocks until every loop goroutine has exited.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) stopLocked() {
	if p.handle == nil {
		return
	}
	p.handle.cancel()
	p.logger.Debug("polling stopped", "claim_id", p.handle.claimID)
	p.handle = nil
}

func (p *Poller) release(h *handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == h {
		p.stopLocked()
	}
}

func (p *Poller) run(ctx context.Context, h *handle) {
	defer p.release(h)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}

		c, err := p.refresher.Refresh(ctx, h.claimID)

		p.mu.Lock()
		p.lastPolled = time.Now()
		p.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("poll failed", "claim_id", h.claimID, "error", err)
			continue
		}

		if c == nil {
			continue
		}
		if !c.Status.Background() {
			p.logger.Info("background stage finished", "claim_id", h.claimID, "status", c.Status)
			return
		}
	}
}
