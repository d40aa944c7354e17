package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/gate"
	"github.com/JaimeStill/claimsync/internal/review"
)

type flight struct {
	claimID claims.ID
	op      Operation
}

type client struct {
	remote Remote
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[flight]struct{}
}

// New creates a workflow System issuing requests through remote.
func New(remote Remote, logger *slog.Logger) System {
	return &client{
		remote:   remote,
		logger:   logger.With("system", "workflow"),
		inflight: make(map[flight]struct{}),
	}
}

func (c *client) ApproveOCR(ctx context.Context, s Subject) (*Receipt, error) {
	return c.approve(ctx, s, claims.ReviewOCR)
}

func (c *client) ApproveAnonymization(ctx context.Context, s Subject) (*Receipt, error) {
	return c.approve(ctx, s, claims.ReviewAnonymization)
}

func (c *client) EditOCR(ctx context.Context, s Subject, edits map[claims.ID]string) (*Receipt, error) {
	return c.edit(ctx, s, claims.ReviewOCR, edits)
}

func (c *client) EditAnonymization(ctx context.Context, s Subject, edits map[claims.ID]string) (*Receipt, error) {
	return c.edit(ctx, s, claims.ReviewAnonymization, edits)
}

func (c *client) PreviewCleaning(ctx context.Context, s Subject) (*Receipt, error) {
	return c.run(ctx, s, OpPreviewCleaning, func(ctx context.Context, r *Receipt) error {
		preview, err := c.remote.PreviewCleaning(ctx, s.ID())
		if err != nil {
			return err
		}
		r.Preview = preview
		r.Message = fmt.Sprintf("Cleaning preview for %d documents", len(preview.Documents))
		return nil
	})
}

func (c *client) StartAnalysis(ctx context.Context, s Subject, promptID string) (*Receipt, error) {
	if promptID == "" {
		promptID = DefaultPromptID
	}
	return c.run(ctx, s, OpStartAnalysis, func(ctx context.Context, r *Receipt) error {
		msg, err := c.remote.StartAnalysis(ctx, s.ID(), promptID)
		if err != nil {
			return err
		}
		r.Message = msg.Message
		return nil
	})
}

func (c *client) RetryAnonymization(ctx context.Context, s Subject) (*Receipt, error) {
	return c.run(ctx, s, OpRetryAnonymization, func(ctx context.Context, r *Receipt) error {
		result, err := c.remote.RetryAnonymization(ctx, s.ID())
		if err != nil {
			return err
		}
		r.Retry = result
		r.Message = result.Message
		return nil
	})
}

func (c *client) ReClean(ctx context.Context, s Subject) (*Receipt, error) {
	return c.run(ctx, s, OpReClean, func(ctx context.Context, r *Receipt) error {
		msg, err := c.remote.ReClean(ctx, s.ID())
		if err != nil {
			return err
		}
		r.Message = msg.Message
		return nil
	})
}

func (c *client) ResetStatus(ctx context.Context, s Subject) (*Receipt, error) {
	return c.run(ctx, s, OpResetStatus, func(ctx context.Context, r *Receipt) error {
		result, err := c.remote.ResetStatus(ctx, s.ID())
		if err != nil {
			return err
		}
		r.Reset = result
		r.Message = result.Message
		return nil
	})
}

func (c *client) DeleteClaim(ctx context.Context, s Subject) (*Receipt, error) {
	return c.run(ctx, s, OpDeleteClaim, func(ctx context.Context, r *Receipt) error {
		return c.remote.DeleteClaim(ctx, s.ID())
	})
}

func (c *client) InFlight(id claims.ID, op Operation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[flight{claimID: id, op: op}]
	return ok
}

func (c *client) Committer(s Subject) review.Committer {
	return &committer{client: c, subject: s}
}

func (c *client) approve(ctx context.Context, s Subject, kind claims.ReviewKind) (*Receipt, error) {
	return c.run(ctx, s, approveOperation(kind), func(ctx context.Context, r *Receipt) error {
		msg, err := c.remote.Approve(ctx, s.ID(), kind)
		if err != nil {
			return err
		}
		r.Message = msg.Message
		return nil
	})
}

func (c *client) edit(ctx context.Context, s Subject, kind claims.ReviewKind, edits map[claims.ID]string) (*Receipt, error) {
	op := editOperation(kind)
	if len(edits) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoEdits)
	}
	return c.run(ctx, s, op, func(ctx context.Context, r *Receipt) error {
		msg, err := c.remote.EditText(ctx, s.ID(), kind, edits)
		if err != nil {
			return err
		}
		r.Message = msg.Message
		return nil
	})
}

// run gates op against the subject's current stage, claims the in-flight
// slot, and issues call. Nothing is sent when the gate or the slot refuses.
func (c *client) run(
	ctx context.Context,
	s Subject,
	op Operation,
	call func(context.Context, *Receipt) error,
) (*Receipt, error) {
	id := s.ID()
	stage := s.Stage()

	if err := gate.Check(stage, op.Action()); err != nil {
		c.logger.Info("operation refused", "claim_id", id, "operation", op, "status", stage)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	key := flight{claimID: id, op: op}
	c.mu.Lock()
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, ErrInFlight)
	}
	c.inflight[key] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}()

	r := &Receipt{Operation: op, ClaimID: id}
	if err := call(ctx, r); err != nil {
		c.logger.Warn("operation failed", "claim_id", id, "operation", op, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.At = time.Now()

	c.logger.Info("operation accepted", "claim_id", id, "operation", op)
	return r, nil
}

type committer struct {
	client  *client
	subject Subject
}

func (c *committer) CommitEdits(ctx context.Context, id claims.ID, kind claims.ReviewKind, edits map[claims.ID]string) error {
	if id != c.subject.ID() {
		return fmt.Errorf("%w: bound to %s, got %s", claims.ErrClaimMismatch, c.subject.ID(), id)
	}
	_, err := c.client.edit(ctx, c.subject, kind, edits)
	return err
}

func (c *committer) CommitApproval(ctx context.Context, id claims.ID, kind claims.ReviewKind) error {
	if id != c.subject.ID() {
		return fmt.Errorf("%w: bound to %s, got %s", claims.ErrClaimMismatch, c.subject.ID(), id)
	}
	_, err := c.client.approve(ctx, c.subject, kind)
	return err
}
