package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JaimeStill/claimsync/internal/activity"
	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/pkg/pagination"
)

// CleaningStats summarizes how much text cleaning removed from a document.
type CleaningStats struct {
	OriginalLength    int     `json:"original_length"`
	CleanedLength     int     `json:"cleaned_length"`
	CharactersRemoved int     `json:"characters_removed"`
	ReductionPercent  float64 `json:"reduction_percent"`
	OriginalLines     int     `json:"original_lines"`
	CleanedLines      int     `json:"cleaned_lines"`
}

// CleaningPreviewDocument is the would-be cleaned text of one document.
type CleaningPreviewDocument struct {
	ID           claims.ID     `json:"id"`
	Filename     string        `json:"filename"`
	OriginalText string        `json:"original_text"`
	CleanedText  string        `json:"cleaned_text"`
	Stats        CleaningStats `json:"stats"`
}

// CleaningPreview is the server's dry-run of cleaning for a claim. Nothing
// is persisted by requesting it.
type CleaningPreview struct {
	ClaimID    claims.ID                 `json:"claim_id"`
	Documents  []CleaningPreviewDocument `json:"documents"`
	TotalStats map[string]float64        `json:"total_stats"`
}

// RetryResult reports how many documents a retry re-queued.
type RetryResult struct {
	Message string       `json:"message"`
	Count   int          `json:"count"`
	ClaimID claims.ID    `json:"claim_id"`
	Status  claims.Stage `json:"status"`
}

// StatusReset reports the stage change a reset requested.
type StatusReset struct {
	Message   string       `json:"message"`
	OldStatus claims.Stage `json:"old_status"`
	NewStatus claims.Stage `json:"new_status"`
}

// Prompt describes an analysis prompt template.
type Prompt struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	LLMModel    string  `json:"llm_model"`
}

// PromptList is the catalogue of analysis prompts and the default choice.
type PromptList struct {
	Prompts []Prompt `json:"prompts"`
	Default string   `json:"default"`
}

type editRequest struct {
	Edits map[string]string `json:"edits"`
}

type analyzeRequest struct {
	PromptID string `json:"prompt_id"`
}

func claimPath(id claims.ID, parts ...string) string {
	return "/" + strings.Join(append([]string{id.String()}, parts...), "/")
}

// GetClaim fetches the full claim with its documents.
func (c *Client) GetClaim(ctx context.Context, id claims.ID) (*claims.Claim, error) {
	var claim claims.Claim
	if err := c.do(ctx, http.MethodGet, "/claims"+claimPath(id), nil, nil, &claim); err != nil {
		return nil, err
	}
	if claim.ID != id {
		return nil, fmt.Errorf("%w: requested claim %s, got %s", ErrDecode, id, claim.ID)
	}
	return &claim, nil
}

// ListClaims fetches a page of claim summaries, optionally filtered by stage.
func (c *Client) ListClaims(
	ctx context.Context,
	page pagination.PageRequest,
	status *claims.Stage,
) (*pagination.PageResult[claims.Summary], error) {
	q := url.Values{}
	page.Encode(q)
	if status != nil {
		q.Set("status_filter", status.String())
	}

	var result pagination.PageResult[claims.Summary]
	if err := c.do(ctx, http.MethodGet, "/claims", q, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteClaim removes the claim.
func (c *Client) DeleteClaim(ctx context.Context, id claims.ID) error {
	return c.do(ctx, http.MethodDelete, "/claims"+claimPath(id), nil, nil, nil)
}

// EditText submits replacement text for the review kind, keyed by document.
func (c *Client) EditText(
	ctx context.Context,
	id claims.ID,
	kind claims.ReviewKind,
	edits map[claims.ID]string,
) (*Message, error) {
	body := editRequest{Edits: make(map[string]string, len(edits))}
	for docID, text := range edits {
		body.Edits[docID.String()] = text
	}

	var msg Message
	if err := c.do(ctx, http.MethodPost, "/claims"+claimPath(id, string(kind), "edit"), nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Approve requests that the server advance past the review kind's stage.
func (c *Client) Approve(ctx context.Context, id claims.ID, kind claims.ReviewKind) (*Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/claims"+claimPath(id, string(kind), "approve"), nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// PreviewCleaning asks the server what cleaning would produce.
func (c *Client) PreviewCleaning(ctx context.Context, id claims.ID) (*CleaningPreview, error) {
	var preview CleaningPreview
	if err := c.do(ctx, http.MethodPost, "/claims"+claimPath(id, "ocr", "preview-cleaning"), nil, nil, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// RetryAnonymization re-queues stuck cleaning or anonymization jobs.
func (c *Client) RetryAnonymization(ctx context.Context, id claims.ID) (*RetryResult, error) {
	var result RetryResult
	if err := c.do(ctx, http.MethodPost, "/claims"+claimPath(id, "anon", "retry"), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReClean discards cleaned and anonymized text and restarts cleaning.
func (c *Client) ReClean(ctx context.Context, id claims.ID) (*Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/claims"+claimPath(id, "anon", "re-clean"), nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ResetStatus asks the server to return the claim to READY_FOR_ANALYSIS.
func (c *Client) ResetStatus(ctx context.Context, id claims.ID) (*StatusReset, error) {
	var result StatusReset
	if err := c.do(ctx, http.MethodPost, "/claims"+claimPath(id, "anon", "reset-status"), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartAnalysis queues AI analysis using the given prompt template.
func (c *Client) StartAnalysis(ctx context.Context, id claims.ID, promptID string) (*Message, error) {
	var msg Message
	body := analyzeRequest{PromptID: promptID}
	if err := c.do(ctx, http.MethodPost, "/claims"+claimPath(id, "analysis", "start"), nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AuditTrail fetches the claim's audit events.
func (c *Client) AuditTrail(ctx context.Context, id claims.ID) (*activity.Trail, error) {
	var trail activity.Trail
	if err := c.do(ctx, http.MethodGet, "/audit/claims"+claimPath(id), nil, nil, &trail); err != nil {
		return nil, err
	}
	return &trail, nil
}

// Prompts fetches the analysis prompt catalogue.
func (c *Client) Prompts(ctx context.Context) (*PromptList, error) {
	var list PromptList
	if err := c.do(ctx, http.MethodGet, "/prompts", nil, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}
