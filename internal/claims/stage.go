package claims

import (
	"encoding/json"
	"strings"
)

// Stage is a claim's position in the processing lifecycle.
// Values are assigned by the server; the client only reads them.
type Stage string

const (
	StageProcessing          Stage = "PROCESSING"
	StageOCRReview           Stage = "OCR_REVIEW"
	StageCleaning            Stage = "CLEANING"
	StageAnonymizing         Stage = "ANONYMIZING"
	StageAnonymizationReview Stage = "ANONYMIZATION_REVIEW"
	StageReadyForAnalysis    Stage = "READY_FOR_ANALYSIS"
	StageAnalyzing           Stage = "ANALYZING"
	StageAnalyzed            Stage = "ANALYZED"
	StageFailed              Stage = "FAILED"
)

// Pipeline lists the non-failed stages in display order.
var Pipeline = []Stage{
	StageProcessing,
	StageOCRReview,
	StageCleaning,
	StageAnonymizing,
	StageAnonymizationReview,
	StageReadyForAnalysis,
	StageAnalyzing,
	StageAnalyzed,
}

// Stages lists every defined stage, FAILED last.
var Stages = append(append([]Stage{}, Pipeline...), StageFailed)

// ParseStage maps a wire value to a Stage. Unrecognized values,
// including the legacy WAITING_FOR_APPROVAL and APPROVED statuses,
// resolve to StageProcessing.
func ParseStage(s string) Stage {
	st := Stage(strings.ToUpper(strings.TrimSpace(s)))
	if st.Valid() {
		return st
	}
	return StageProcessing
}

// Valid reports whether s is one of the defined stages.
func (s Stage) Valid() bool {
	return s == StageFailed || s.Index() >= 0
}

// Index returns the position of s in Pipeline, or -1 for FAILED and
// undefined values.
func (s Stage) Index() int {
	for i, p := range Pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// Terminal reports whether no further progress is expected without
// manual intervention.
func (s Stage) Terminal() bool {
	return s == StageAnalyzed || s == StageFailed
}

// Background reports whether the stage completes through an asynchronous
// server-side job, which is what makes polling worthwhile.
func (s Stage) Background() bool {
	switch s {
	case StageProcessing, StageCleaning, StageAnonymizing, StageAnalyzing:
		return true
	}
	return false
}

// Label returns the stage name with underscores replaced by spaces.
func (s Stage) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func (s Stage) String() string {
	return string(s)
}

// UnmarshalJSON decodes a status string through ParseStage so that
// unknown values never fail decoding.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = StageProcessing
		return nil
	}
	*s = ParseStage(raw)
	return nil
}
