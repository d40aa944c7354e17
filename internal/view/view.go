// Package view is the scoped state of one open claim. A Scope owns the
// claim's model, its poll loop, and any review session, and tears them all
// down on Close. There is no process-wide claim state; every view opens its
// own Scope.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JaimeStill/claimsync/internal/activity"
	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/gate"
	"github.com/JaimeStill/claimsync/internal/poller"
	"github.com/JaimeStill/claimsync/internal/review"
	"github.com/JaimeStill/claimsync/internal/workflow"
	"github.com/JaimeStill/claimsync/pkg/lifecycle"
)

// Fetcher reads claims from the server. *api.Client satisfies it.
type Fetcher interface {
	GetClaim(ctx context.Context, id claims.ID) (*claims.Claim, error)
	AuditTrail(ctx context.Context, id claims.ID) (*activity.Trail, error)
}

// Deps are the collaborators a Scope is opened with.
type Deps struct {
	Fetcher  Fetcher
	Workflow workflow.System
	Poll     *poller.Config
	Logger   *slog.Logger
}

// Action invokes one workflow operation against the scope's model.
type Action func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error)

// Scope is one open claim view.
type Scope struct {
	id       claims.ID
	model    *claims.Model
	poller   *poller.Poller
	fetcher  Fetcher
	workflow workflow.System
	logger   *slog.Logger
	lc       *lifecycle.Coordinator
	group    singleflight.Group

	// issued numbers GETs as they are sent. applied is the number of the
	// newest GET whose response reached the model.
	issued  atomic.Uint64
	applyMu sync.Mutex
	applied uint64

	mu      sync.Mutex
	session *review.Session
	lastErr error
	deleted bool
}

// Open fetches the claim, applies it, and starts polling when the claim is
// in a background stage. The returned Scope must be closed.
func Open(ctx context.Context, deps Deps, id claims.ID) (*Scope, error) {
	s := &Scope{
		id:       id,
		model:    claims.NewModel(id),
		fetcher:  deps.Fetcher,
		workflow: deps.Workflow,
		logger:   deps.Logger.With("system", "view", "claim_id", id),
		lc:       lifecycle.New(context.WithoutCancel(ctx)),
	}
	s.poller = poller.New(poller.RefresherFunc(s.refresh), deps.Poll, deps.Logger)

	if _, err := s.fresh(ctx); err != nil {
		s.lc.Close()
		return nil, fmt.Errorf("open claim %s: %w", id, err)
	}

	unsubscribe := s.model.Subscribe(s.observe)

	s.lc.OnClose(func() {
		s.poller.Stop()
		s.poller.Wait()
	})
	s.lc.OnClose(unsubscribe)
	s.lc.OnClose(s.discardSession)

	s.poller.Reconcile(s.lc.Context(), id, s.model.Stage())
	s.logger.Info("claim opened", "status", s.model.Stage())
	return s, nil
}

// ID returns the claim id.
func (s *Scope) ID() claims.ID {
	return s.id
}

// Model returns the claim's state model.
func (s *Scope) Model() *claims.Model {
	return s.model
}

// Stage returns the last fetched stage.
func (s *Scope) Stage() claims.Stage {
	return s.model.Stage()
}

// Legal returns the actions enabled for the last fetched stage.
func (s *Scope) Legal() gate.Set {
	return gate.Legal(s.model.Stage())
}

// Progress returns the pipeline markers for the last fetched stage.
func (s *Scope) Progress() []claims.Marker {
	return s.model.Progress()
}

// Updating reports whether the claim is being auto-refreshed.
func (s *Scope) Updating() bool {
	return s.poller.Updating()
}

// Poller exposes the scope's poll loop status.
func (s *Scope) Poller() *poller.Poller {
	return s.poller
}

// Refresh fetches the claim and applies it. It only shares a request that
// was sent after the call began, so the result is never older than the
// call. On failure the model keeps its last snapshot.
func (s *Scope) Refresh(ctx context.Context) (*claims.Claim, error) {
	c, err := s.fresh(ctx)
	if err != nil {
		s.fail(err)
	}
	return c, err
}

// Review re-fetches the claim and loads a fresh review session for kind
// from its committed text, discarding any previous session and its unsaved
// edits. When the fetch fails the last snapshot seeds the session.
func (s *Scope) Review(ctx context.Context, kind claims.ReviewKind) (*review.Session, error) {
	if s.lc.Closed() {
		return nil, ErrClosed
	}
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh before review failed", "kind", kind, "error", err)
	}

	c := s.model.Claim()
	session, err := review.Load(c, kind, s.workflow.Committer(s.model), s.logger)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	prev := s.session
	s.session = session
	s.mu.Unlock()

	if prev != nil && prev.Dirty() {
		s.logger.Info("unsaved edits discarded", "kind", prev.Kind(), "documents", len(prev.Pending()))
	}
	return session, nil
}

// Session returns the open review session, if any.
func (s *Scope) Session() *review.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// LeaveReview drops the review session without saving.
func (s *Scope) LeaveReview() {
	s.discardSession()
}

// Do runs a workflow operation and, when the server accepts it, refreshes
// the claim to learn the stage the server moved it to. A failed refresh is
// recorded but does not fail the operation.
func (s *Scope) Do(ctx context.Context, action Action) (*workflow.Receipt, error) {
	if s.lc.Closed() {
		return nil, ErrClosed
	}

	receipt, err := action(ctx, s.workflow, s.model)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	if receipt.Operation == workflow.OpDeleteClaim {
		s.mu.Lock()
		s.deleted = true
		s.mu.Unlock()
		s.poller.Stop()
		return receipt, nil
	}

	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after action failed", "operation", receipt.Operation, "error", err)
	}
	return receipt, nil
}

// Activity fetches the claim's audit trail as a display timeline.
func (s *Scope) Activity(ctx context.Context) ([]activity.Entry, error) {
	trail, err := s.fetcher.AuditTrail(ctx, s.id)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	return activity.Build(*trail, time.Local), nil
}

// Deleted reports whether the claim was deleted through this scope.
func (s *Scope) Deleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}

// Err returns the last operation error, until dismissed.
func (s *Scope) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Notice returns the user-visible text of the last error, or "".
func (s *Scope) Notice() string {
	return workflow.Message(s.Err())
}

// Dismiss clears the last error.
func (s *Scope) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Close stops polling and discards the review session without saving.
func (s *Scope) Close() {
	if s.lc.Closed() {
		return
	}
	s.lc.Close()
	s.logger.Info("claim closed")
}

type fetched struct {
	claim *claims.Claim
	seq   uint64
}

// refresh is the poll tick path. It joins any GET already in flight.
func (s *Scope) refresh(ctx context.Context, id claims.ID) (*claims.Claim, error) {
	f, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return f.claim, nil
}

// fresh fetches with a GET sent no earlier than the call. When the shared
// call predates it, the call is forgotten and a new GET is issued.
func (s *Scope) fresh(ctx context.Context) (*claims.Claim, error) {
	after := s.issued.Load()
	f, err := s.fetch(ctx, s.id)
	if err == nil && f.seq <= after {
		s.group.Forget(s.id.String())
		f, err = s.fetch(ctx, s.id)
	}
	if err != nil {
		return nil, err
	}
	return f.claim, nil
}

func (s *Scope) fetch(ctx context.Context, id claims.ID) (fetched, error) {
	v, err, _ := s.group.Do(id.String(), func() (any, error) {
		seq := s.issued.Add(1)
		c, err := s.fetcher.GetClaim(ctx, id)
		if err != nil {
			return nil, err
		}
		c, err = s.apply(seq, c)
		if err != nil {
			return nil, err
		}
		return fetched{claim: c, seq: seq}, nil
	})
	if err != nil {
		return fetched{}, err
	}
	return v.(fetched), nil
}

// apply hands c to the model unless a response to a later GET is already
// applied, in which case the model's snapshot is returned unchanged.
func (s *Scope) apply(seq uint64, c *claims.Claim) (*claims.Claim, error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if seq < s.applied {
		s.logger.Debug("stale response dropped", "status", c.Status, "request", seq, "applied", s.applied)
		return s.model.Claim(), nil
	}
	if err := s.model.Apply(c); err != nil {
		return nil, err
	}
	s.applied = seq
	return c, nil
}

// observe follows every applied snapshot with the poll loop and rebases
// the open review session's committed text.
func (s *Scope) observe(snap claims.Snapshot) {
	if s.lc.Closed() || s.Deleted() {
		return
	}
	s.poller.Reconcile(s.lc.Context(), s.id, snap.Claim.Status)

	if session := s.Session(); session != nil {
		if err := session.Rebase(snap.Claim); err != nil {
			s.logger.Warn("rebase failed", "error", err)
		}
	}
}

func (s *Scope) fail(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Scope) discardSession() {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session != nil && session.Dirty() {
		s.logger.Info("unsaved edits discarded", "kind", session.Kind(), "documents", len(session.Pending()))
	}
}
