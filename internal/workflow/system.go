// Package workflow issues the named claim transitions against the remote
// API. Every operation is checked against the action gate for the claim's
// current stage before any request is sent, and a second call of the same
// operation on the same claim is refused while the first is outstanding.
// A successful call means the server accepted the request; the new stage is
// learned by refreshing.
package workflow

import (
	"context"

	"github.com/JaimeStill/claimsync/internal/api"
	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/review"
)

// DefaultPromptID is the analysis prompt used when none is chosen.
const DefaultPromptID = "default"

// Subject is the claim an operation targets, as last seen by the caller.
// *claims.Model satisfies it.
type Subject interface {
	ID() claims.ID
	Stage() claims.Stage
}

// System defines the public contract for claim workflow transitions.
type System interface {
	ApproveOCR(ctx context.Context, s Subject) (*Receipt, error)
	ApproveAnonymization(ctx context.Context, s Subject) (*Receipt, error)
	EditOCR(ctx context.Context, s Subject, edits map[claims.ID]string) (*Receipt, error)
	EditAnonymization(ctx context.Context, s Subject, edits map[claims.ID]string) (*Receipt, error)
	PreviewCleaning(ctx context.Context, s Subject) (*Receipt, error)
	StartAnalysis(ctx context.Context, s Subject, promptID string) (*Receipt, error)
	RetryAnonymization(ctx context.Context, s Subject) (*Receipt, error)
	ReClean(ctx context.Context, s Subject) (*Receipt, error)
	ResetStatus(ctx context.Context, s Subject) (*Receipt, error)
	DeleteClaim(ctx context.Context, s Subject) (*Receipt, error)

	// InFlight reports whether op is outstanding for the claim.
	InFlight(id claims.ID, op Operation) bool

	// Committer binds review saves and approvals to s.
	Committer(s Subject) review.Committer
}

// Remote is the subset of the API client the workflow issues requests with.
// *api.Client satisfies it.
type Remote interface {
	EditText(ctx context.Context, id claims.ID, kind claims.ReviewKind, edits map[claims.ID]string) (*api.Message, error)
	Approve(ctx context.Context, id claims.ID, kind claims.ReviewKind) (*api.Message, error)
	PreviewCleaning(ctx context.Context, id claims.ID) (*api.CleaningPreview, error)
	RetryAnonymization(ctx context.Context, id claims.ID) (*api.RetryResult, error)
	ReClean(ctx context.Context, id claims.ID) (*api.Message, error)
	ResetStatus(ctx context.Context, id claims.ID) (*api.StatusReset, error)
	StartAnalysis(ctx context.Context, id claims.ID, promptID string) (*api.Message, error)
	DeleteClaim(ctx context.Context, id claims.ID) error
}
