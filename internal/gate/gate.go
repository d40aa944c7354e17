// Package gate decides which workflow actions are legal for a claim at a
// given lifecycle stage. The table in this file is the single source of
// truth consulted by views for enabling controls and by the transition
// client for rejecting calls locally.
package gate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/JaimeStill/claimsync/internal/claims"
)

// Action is a user-invocable workflow operation.
type Action string

const (
	StartAnalysis      Action = "startAnalysis"
	ApproveOCR         Action = "approveOcr"
	ApproveAnon        Action = "approveAnon"
	RetryAnonymization Action = "retryAnonymization"
	ReClean            Action = "reClean"
	ResetStatus        Action = "resetStatus"
	Delete             Action = "delete"
)

// Actions lists every action in a fixed order.
var Actions = []Action{
	StartAnalysis,
	ApproveOCR,
	ApproveAnon,
	RetryAnonymization,
	ReClean,
	ResetStatus,
	Delete,
}

// Set is a collection of legal actions.
type Set map[Action]struct{}

func newSet(actions ...Action) Set {
	s := make(Set, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// Has reports whether a is in the set.
func (s Set) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// List returns the members in Actions order.
func (s Set) List() []Action {
	out := make([]Action, 0, len(s))
	for _, a := range Actions {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s Set) String() string {
	names := make([]string, 0, len(s))
	for _, a := range s.List() {
		names = append(names, string(a))
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Retry, re-clean and reset are exposed at FAILED and, as administrative
// overrides, at the in-progress or review stages the server accepts them in.
var table = map[claims.Stage][]Action{
	claims.StageProcessing:          {Delete},
	claims.StageOCRReview:           {ApproveOCR, Delete},
	claims.StageCleaning:            {RetryAnonymization, Delete},
	claims.StageAnonymizing:         {RetryAnonymization, ReClean, Delete},
	claims.StageAnonymizationReview: {ApproveAnon, ReClean, Delete},
	claims.StageReadyForAnalysis:    {StartAnalysis, Delete},
	claims.StageAnalyzing:           {ResetStatus, Delete},
	claims.StageAnalyzed:            {ResetStatus, Delete},
	claims.StageFailed:              {RetryAnonymization, ReClean, ResetStatus, Delete},
}

// Legal returns the actions permitted at stage. Undefined stages are
// treated as PROCESSING.
func Legal(stage claims.Stage) Set {
	actions, ok := table[stage]
	if !ok {
		actions = table[claims.StageProcessing]
	}
	return newSet(actions...)
}

// Allowed reports whether action is legal at stage.
func Allowed(stage claims.Stage, action Action) bool {
	actions, ok := table[stage]
	if !ok {
		actions = table[claims.StageProcessing]
	}
	return slices.Contains(actions, action)
}

// Check returns an error wrapping ErrInvalidForStage when action is not
// legal at stage.
func Check(stage claims.Stage, action Action) error {
	if Allowed(stage, action) {
		return nil
	}
	return fmt.Errorf("%w: %s at %s", ErrInvalidForStage, action, stage)
}
