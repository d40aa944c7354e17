package claims

import (
	"fmt"

	"github.com/JaimeStill/claimsync/pkg/formatting"
)

// Recommendation is the adjudication outcome an analysis proposes.
type Recommendation string

const (
	RecommendApprove     Recommendation = "APPROVE"
	RecommendReject      Recommendation = "REJECT"
	RecommendInvestigate Recommendation = "INVESTIGATE"
	// RecommendError is reported when the model failed or its output could
	// not be parsed.
	RecommendError Recommendation = "ERROR"
)

// Analysis is the structured result of AI analysis on an analyzed claim.
type Analysis struct {
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	MissingInfo    []string       `json:"missing_info,omitempty"`
}

// Analysis decodes the analysis result. The server stores whatever the
// model returned, so fenced or prose-wrapped JSON is accepted.
func (c *Claim) Analysis() (*Analysis, error) {
	if len(c.AnalysisResult) == 0 {
		return nil, ErrNoAnalysis
	}
	a, err := formatting.Decode[Analysis](c.AnalysisResult)
	if err != nil {
		return nil, fmt.Errorf("claim %s analysis: %w", c.ID, err)
	}
	return &a, nil
}
