// Package activity projects a claim's append-only audit log into a
// display-ready timeline. It never writes to the log.
package activity

import "github.com/JaimeStill/claimsync/internal/claims"

// Event is one audit log record as returned by the server.
type Event struct {
	ID         int64             `json:"id"`
	User       string            `json:"user"`
	Action     string            `json:"action"`
	EntityType string            `json:"entity_type"`
	EntityID   claims.ID         `json:"entity_id"`
	Changes    map[string]any    `json:"changes,omitempty"`
	Timestamp  *claims.Timestamp `json:"timestamp,omitempty"`
}

// Trail is the complete audit record of one claim.
type Trail struct {
	ClaimID     claims.ID `json:"claim_id"`
	Events      []Event   `json:"events"`
	TotalEvents int       `json:"total_events"`
}

// Audit action names recorded by the backend.
const (
	ActionClaimCreated       = "CLAIM_CREATED"
	ActionClaimDeleted       = "CLAIM_DELETED"
	ActionClaimStatusChanged = "CLAIM_STATUS_CHANGED"
	ActionOCREdited          = "OCR_EDITED"
	ActionOCRApproved        = "OCR_APPROVED"
	ActionCleaningCompleted  = "CLEANING_COMPLETED"
	ActionAnonEdited         = "ANON_EDITED"
	ActionAnonApproved       = "ANON_APPROVED"
	ActionAnalysisStarted    = "ANALYSIS_STARTED"
	ActionAnalysisCompleted  = "ANALYSIS_COMPLETED"
	ActionReportGenerated    = "REPORT_GENERATED"
	ActionReClean            = "RE_CLEAN"
	ActionAnonymizationRetry = "ANONYMIZATION_RETRY"
	ActionCleaningRetry      = "CLEANING_RETRY"
	ActionStatusReset        = "STATUS_RESET"
)
