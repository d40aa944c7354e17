// Package claims implements the client-side claim state model.
// It provides the claim and document types decoded from the remote API,
// the lifecycle stage enumeration with its display ordering, and the
// Model snapshot holder that views read gate and progress decisions from.
package claims

import (
	"encoding/json"
	"strconv"
)

// ID identifies a claim or document. It is opaque to the client and
// serialized as an integer on the wire.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses the decimal string form of an ID.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(n), nil
}

// Country is the jurisdiction tag a claim was filed under.
type Country string

const (
	CountrySK Country = "SK"
	CountryIT Country = "IT"
	CountryDE Country = "DE"
)

// Claim is the root workflow entity as last reported by the server.
type Claim struct {
	ID             ID              `json:"id"`
	Country        Country         `json:"country"`
	Status         Stage           `json:"status"`
	CreatedAt      *Timestamp      `json:"created_at,omitempty"`
	AnalysisResult json.RawMessage `json:"analysis_result,omitempty"`
	AnalysisModel  *string         `json:"analysis_model,omitempty"`
	Documents      []Document      `json:"documents"`
}

// Document is one uploaded file belonging to a claim. Text fields are nil
// until the pipeline stage producing them has run.
type Document struct {
	ID             ID         `json:"id"`
	Filename       string     `json:"filename"`
	S3Key          string     `json:"s3_key"`
	OriginalText   *string    `json:"original_text,omitempty"`
	CleanedText    *string    `json:"cleaned_text,omitempty"`
	AnonymizedText *string    `json:"anonymized_text,omitempty"`
	OCRReviewedBy  *string    `json:"ocr_reviewed_by,omitempty"`
	OCRReviewedAt  *Timestamp `json:"ocr_reviewed_at,omitempty"`
	AnonReviewedBy *string    `json:"anon_reviewed_by,omitempty"`
	AnonReviewedAt *Timestamp `json:"anon_reviewed_at,omitempty"`
}

// Summary is the list-endpoint projection of a claim.
type Summary struct {
	ID            ID         `json:"id"`
	Country       Country    `json:"country"`
	Status        Stage      `json:"status"`
	CreatedAt     *Timestamp `json:"created_at,omitempty"`
	DocumentCount int        `json:"document_count"`
}

// Analyzed reports whether analysis output is available.
func (c *Claim) Analyzed() bool {
	return c.Status == StageAnalyzed && len(c.AnalysisResult) > 0
}

// Document returns the document with the given id.
func (c *Claim) Document(id ID) (*Document, bool) {
	for i := range c.Documents {
		if c.Documents[i].ID == id {
			return &c.Documents[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy so snapshots handed to views cannot be
// mutated through shared slices.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	if c.AnalysisResult != nil {
		out.AnalysisResult = append(json.RawMessage(nil), c.AnalysisResult...)
	}
	out.Documents = append([]Document(nil), c.Documents...)
	return &out
}

// ReviewKind selects which machine-generated text a review session edits.
type ReviewKind string

const (
	ReviewOCR           ReviewKind = "ocr"
	ReviewAnonymization ReviewKind = "anon"
)

// Stage returns the lifecycle stage at which the review happens.
func (k ReviewKind) Stage() Stage {
	if k == ReviewAnonymization {
		return StageAnonymizationReview
	}
	return StageOCRReview
}

// Text returns the committed text the review edits, or "" when the
// pipeline has not produced it yet.
func (k ReviewKind) Text(d *Document) string {
	var p *string
	switch k {
	case ReviewAnonymization:
		p = d.AnonymizedText
	default:
		p = d.OriginalText
	}
	if p == nil {
		return ""
	}
	return *p
}

// SetText records text as the committed value for the review kind.
func (k ReviewKind) SetText(d *Document, text string) {
	switch k {
	case ReviewAnonymization:
		d.AnonymizedText = &text
	default:
		d.OriginalText = &text
	}
}
