package workflow

import (
	"time"

	"github.com/JaimeStill/claimsync/internal/api"
	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/gate"
)

// Operation names a remote workflow transition.
type Operation string

const (
	OpApproveOCR           Operation = "approveOcr"
	OpApproveAnonymization Operation = "approveAnonymization"
	OpEditOCR              Operation = "editOcr"
	OpEditAnonymization    Operation = "editAnonymization"
	OpPreviewCleaning      Operation = "previewCleaning"
	OpStartAnalysis        Operation = "startAnalysis"
	OpRetryAnonymization   Operation = "retryAnonymization"
	OpReClean              Operation = "reClean"
	OpResetStatus          Operation = "resetStatus"
	OpDeleteClaim          Operation = "deleteClaim"
)

// Operations lists every operation in display order.
var Operations = []Operation{
	OpEditOCR,
	OpPreviewCleaning,
	OpApproveOCR,
	OpEditAnonymization,
	OpApproveAnonymization,
	OpRetryAnonymization,
	OpReClean,
	OpStartAnalysis,
	OpResetStatus,
	OpDeleteClaim,
}

// Edits and previews are only meaningful while their review stage is open,
// so they share the approval's gate entry.
var operations = map[Operation]gate.Action{
	OpApproveOCR:           gate.ApproveOCR,
	OpApproveAnonymization: gate.ApproveAnon,
	OpEditOCR:              gate.ApproveOCR,
	OpEditAnonymization:    gate.ApproveAnon,
	OpPreviewCleaning:      gate.ApproveOCR,
	OpStartAnalysis:        gate.StartAnalysis,
	OpRetryAnonymization:   gate.RetryAnonymization,
	OpReClean:              gate.ReClean,
	OpResetStatus:          gate.ResetStatus,
	OpDeleteClaim:          gate.Delete,
}

// Action returns the gate action that must be legal for the operation.
func (o Operation) Action() gate.Action {
	return operations[o]
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	_, ok := operations[o]
	return ok
}

func (o Operation) String() string {
	return string(o)
}

func editOperation(kind claims.ReviewKind) Operation {
	if kind == claims.ReviewAnonymization {
		return OpEditAnonymization
	}
	return OpEditOCR
}

func approveOperation(kind claims.ReviewKind) Operation {
	if kind == claims.ReviewAnonymization {
		return OpApproveAnonymization
	}
	return OpApproveOCR
}

// Receipt acknowledges that the server accepted an operation. It does not
// report the claim's new stage; callers refresh to learn it.
type Receipt struct {
	Operation Operation `json:"operation"`
	ClaimID   claims.ID `json:"claim_id"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`

	Preview *api.CleaningPreview `json:"preview,omitempty"`
	Retry   *api.RetryResult     `json:"retry,omitempty"`
	Reset   *api.StatusReset     `json:"reset,omitempty"`
}
