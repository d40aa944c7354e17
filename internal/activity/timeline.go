package activity

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/gate"
)

// TimeLayout formats entry timestamps, e.g. "Mar 4, 09:30".
const TimeLayout = "Jan 2, 15:04"

// NoTimestamp is shown for events without a recorded time.
const NoTimestamp = "—"

// DefaultActor is shown for events without a recorded user.
const DefaultActor = "System"

// Tone groups actions for display styling.
type Tone string

const (
	ToneCreated  Tone = "created"
	ToneEdit     Tone = "edit"
	ToneApproval Tone = "approval"
	ToneStarted  Tone = "started"
	ToneReport   Tone = "report"
	ToneStatus   Tone = "status"
	ToneRecovery Tone = "recovery"
	ToneReset    Tone = "reset"
	ToneNeutral  Tone = "neutral"
)

type actionInfo struct {
	tone   Tone
	action gate.Action
}

var actions = map[string]actionInfo{
	ActionClaimCreated:       {tone: ToneCreated},
	ActionClaimDeleted:       {tone: ToneReset, action: gate.Delete},
	ActionClaimStatusChanged: {tone: ToneStatus},
	ActionOCREdited:          {tone: ToneEdit},
	ActionOCRApproved:        {tone: ToneApproval, action: gate.ApproveOCR},
	ActionCleaningCompleted:  {tone: ToneApproval},
	ActionAnonEdited:         {tone: ToneEdit},
	ActionAnonApproved:       {tone: ToneApproval, action: gate.ApproveAnon},
	ActionAnalysisStarted:    {tone: ToneStarted, action: gate.StartAnalysis},
	ActionAnalysisCompleted:  {tone: ToneApproval},
	ActionReportGenerated:    {tone: ToneReport},
	ActionReClean:            {tone: ToneRecovery, action: gate.ReClean},
	ActionAnonymizationRetry: {tone: ToneRecovery, action: gate.RetryAnonymization},
	ActionCleaningRetry:      {tone: ToneRecovery, action: gate.RetryAnonymization},
	ActionStatusReset:        {tone: ToneReset, action: gate.ResetStatus},
}

// Change is one rendered key/value pair from an event's change set.
type Change struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Entry is a display-ready timeline row.
type Entry struct {
	EventID   int64             `json:"event_id"`
	Action    string            `json:"action"`
	Label     string            `json:"label"`
	Actor     string            `json:"actor"`
	Tone      Tone              `json:"tone"`
	Trigger   gate.Action       `json:"trigger,omitempty"`
	Changes   []Change          `json:"changes,omitempty"`
	Timestamp *claims.Timestamp `json:"timestamp,omitempty"`
	When      string            `json:"when"`
}

// Build projects the trail's events into entries in log order,
// formatting timestamps in loc (UTC when nil).
func Build(trail Trail, loc *time.Location) []Entry {
	if loc == nil {
		loc = time.UTC
	}

	entries := make([]Entry, 0, len(trail.Events))
	for _, ev := range trail.Events {
		entries = append(entries, project(ev, loc))
	}
	return entries
}

// Trigger returns the gate action an audit action records, if any.
func Trigger(action string) (gate.Action, bool) {
	info, ok := actions[action]
	if !ok || info.action == "" {
		return "", false
	}
	return info.action, true
}

func project(ev Event, loc *time.Location) Entry {
	info, ok := actions[ev.Action]
	if !ok {
		info = actionInfo{tone: ToneNeutral}
	}

	actor := ev.User
	if strings.TrimSpace(actor) == "" {
		actor = DefaultActor
	}

	when := NoTimestamp
	if ev.Timestamp != nil {
		when = ev.Timestamp.In(loc).Format(TimeLayout)
	}

	return Entry{
		EventID:   ev.ID,
		Action:    ev.Action,
		Label:     strings.ReplaceAll(ev.Action, "_", " "),
		Actor:     actor,
		Tone:      info.tone,
		Trigger:   info.action,
		Changes:   renderChanges(ev.Changes),
		Timestamp: ev.Timestamp,
		When:      when,
	}
}

func renderChanges(changes map[string]any) []Change {
	if len(changes) == 0 {
		return nil
	}

	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]Change, 0, len(keys))
	for _, k := range keys {
		out = append(out, Change{Key: k, Value: renderValue(changes[k])})
	}
	return out
}

func renderValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
