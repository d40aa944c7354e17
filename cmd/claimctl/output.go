package main

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/gate"
	"github.com/JaimeStill/claimsync/pkg/formatting"
)

// emit writes v as indented JSON when --json is set and otherwise renders
// text through an aligned tab writer.
func (a *app) emit(w io.Writer, v any, text func(w io.Writer)) error {
	if a.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

func formatTime(t *claims.Timestamp) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func formatActions(actions []gate.Action) string {
	if len(actions) == 0 {
		return "-"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

func textState(text *string) string {
	if text == nil {
		return "-"
	}
	return formatting.Size(len(*text))
}

func markerGlyph(state claims.MarkerState) string {
	switch state {
	case claims.MarkerCompleted:
		return "[x]"
	case claims.MarkerCurrent:
		return "[>]"
	case claims.MarkerFailed:
		return "[!]"
	default:
		return "[ ]"
	}
}

// lockedWriter serializes writes from concurrent watchers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
