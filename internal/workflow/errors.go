package workflow

import (
	"errors"

	"github.com/JaimeStill/claimsync/internal/api"
	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/gate"
	"github.com/JaimeStill/claimsync/internal/review"
)

var (
	ErrInFlight = errors.New("operation already in progress")
	ErrNoEdits  = errors.New("no edits to submit")
)

// Kind groups operation failures by how a view should present them.
type Kind int

const (
	KindNone Kind = iota
	// KindValidation failures were decided locally. Nothing was sent.
	KindValidation
	// KindTransport failures did not reach a server answer. Retrying is safe.
	KindTransport
	// KindRejected failures carry the server's reason. Stale-gate races,
	// where the stage moved before the request landed, end up here.
	KindRejected
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Retryable reports whether repeating the operation may succeed without
// the user changing anything.
func (k Kind) Retryable() bool {
	return k == KindTransport || k == KindRejected
}

// Classify returns the failure kind of err.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, api.ErrTransport):
		return KindTransport
	case errors.Is(err, api.ErrRejected):
		return KindRejected
	case errors.Is(err, gate.ErrInvalidForStage),
		errors.Is(err, ErrInFlight),
		errors.Is(err, ErrNoEdits),
		errors.Is(err, review.ErrSaveInFlight),
		errors.Is(err, review.ErrUnknownDocument),
		errors.Is(err, claims.ErrClaimMismatch):
		return KindValidation
	default:
		return KindUnknown
	}
}

// Message returns the user-visible text for err. Server rejections show
// the server's reason verbatim.
func Message(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindTransport:
		return "Could not reach the claim service. Try again."
	case KindRejected:
		if reason, ok := api.Reason(err); ok {
			return reason
		}
		return err.Error()
	case KindValidation:
		switch {
		case errors.Is(err, gate.ErrInvalidForStage):
			return "This action is not available for the claim's current state."
		case errors.Is(err, ErrInFlight), errors.Is(err, review.ErrSaveInFlight):
			return "Please wait for the previous request to finish."
		}
		return err.Error()
	default:
		return err.Error()
	}
}
