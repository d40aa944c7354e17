package claims

// MarkerState is how a pipeline step renders relative to the current stage.
type MarkerState string

const (
	MarkerCompleted MarkerState = "completed"
	MarkerCurrent   MarkerState = "current"
	MarkerPending   MarkerState = "pending"
	MarkerFailed    MarkerState = "failed"
)

// Marker is one step of the progress timeline.
type Marker struct {
	Stage Stage       `json:"stage"`
	Label string      `json:"label"`
	State MarkerState `json:"state"`
}

// Progress renders one marker per Pipeline stage for a claim at current.
//
// When current is FAILED every marker is pending except the one at
// lastKnown, the last non-failed stage observed before the failure, which
// renders failed. A lastKnown outside the pipeline marks the first stage.
func Progress(current, lastKnown Stage) []Marker {
	markers := make([]Marker, len(Pipeline))

	failedAt := -1
	if current == StageFailed {
		failedAt = max(lastKnown.Index(), 0)
	}
	at := current.Index()

	for i, s := range Pipeline {
		m := Marker{Stage: s, Label: s.Label()}
		switch {
		case failedAt >= 0 && i == failedAt:
			m.State = MarkerFailed
		case failedAt >= 0:
			m.State = MarkerPending
		case i < at:
			m.State = MarkerCompleted
		case i == at:
			m.State = MarkerCurrent
		default:
			m.State = MarkerPending
		}
		markers[i] = m
	}

	return markers
}
