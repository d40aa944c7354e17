// Package review implements the edit buffer for the OCR and anonymization
// review stages. A Session holds the committed text of each document and
// any pending edits the user has not saved. Sessions are intentionally not
// persisted: loading again discards unsaved edits.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/JaimeStill/claimsync/internal/claims"
)

// Committer sends buffered text and approvals to the server.
type Committer interface {
	CommitEdits(ctx context.Context, id claims.ID, kind claims.ReviewKind, edits map[claims.ID]string) error
	CommitApproval(ctx context.Context, id claims.ID, kind claims.ReviewKind) error
}

// Session is the review buffer of one claim for one review kind.
type Session struct {
	mu        sync.Mutex
	claimID   claims.ID
	kind      claims.ReviewKind
	order     []claims.ID
	committed map[claims.ID]string
	pending   map[claims.ID]string
	saving    map[claims.ID]bool
	savingAll bool
	approving bool
	committer Committer
	logger    *slog.Logger
}

// Load seeds a new Session from the claim's committed text. Documents
// without text for kind seed an empty string.
func Load(c *claims.Claim, kind claims.ReviewKind, committer Committer, logger *slog.Logger) (*Session, error) {
	if c == nil {
		return nil, claims.ErrNilClaim
	}

	s := &Session{
		claimID:   c.ID,
		kind:      kind,
		committed: make(map[claims.ID]string, len(c.Documents)),
		pending:   make(map[claims.ID]string),
		saving:    make(map[claims.ID]bool),
		committer: committer,
		logger: logger.With(
			"system", "review",
			"claim_id", c.ID,
			"kind", kind,
		),
	}
	for i := range c.Documents {
		d := &c.Documents[i]
		s.order = append(s.order, d.ID)
		s.committed[d.ID] = kind.Text(d)
	}
	return s, nil
}

// ClaimID returns the claim the session edits.
func (s *Session) ClaimID() claims.ID {
	return s.claimID
}

// Kind returns the review kind.
func (s *Session) Kind() claims.ReviewKind {
	return s.kind
}

// Documents returns the document ids in claim order.
func (s *Session) Documents() []claims.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// SetText records text as the pending value for doc. Setting the committed
// value again clears the pending entry.
func (s *Session) SetText(doc claims.ID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	committed, ok := s.committed[doc]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, doc)
	}
	if text == committed {
		delete(s.pending, doc)
		return nil
	}
	s.pending[doc] = text
	return nil
}

// Text returns the pending text for doc, or its committed text when there
// is no pending edit.
func (s *Session) Text(doc claims.ID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text, ok := s.pending[doc]; ok {
		return text, true
	}
	text, ok := s.committed[doc]
	return text, ok
}

// Committed returns the last server-committed text for doc.
func (s *Session) Committed(doc claims.ID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.committed[doc]
	return text, ok
}

// Pending returns a copy of the unsaved edits.
func (s *Session) Pending() map[claims.ID]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.pending)
}

// Dirty reports whether any document has an unsaved edit.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// Modified reports whether doc has an unsaved edit.
func (s *Session) Modified(doc claims.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[doc]
	return ok
}

// Saving reports whether a save or approval is outstanding.
func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savingAll || s.approving || len(s.saving) > 0
}

// Revert drops the pending edit for doc.
func (s *Session) Revert(doc claims.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, doc)
}

// Discard drops every pending edit.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.pending)
}

// SaveOne sends the current text of doc alone. On success the sent value
// becomes committed and the pending entry is cleared unless it changed
// while the request was outstanding. On failure the entry is kept.
func (s *Session) SaveOne(ctx context.Context, doc claims.ID) error {
	s.mu.Lock()
	committed, ok := s.committed[doc]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDocument, doc)
	}
	if s.saving[doc] || s.savingAll || s.approving {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	text := committed
	if p, ok := s.pending[doc]; ok {
		text = p
	}
	s.saving[doc] = true
	s.mu.Unlock()

	err := s.committer.CommitEdits(ctx, s.claimID, s.kind, map[claims.ID]string{doc: text})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saving, doc)
	if err != nil {
		s.logger.Warn("save failed", "document_id", doc, "error", err)
		return err
	}
	s.settle(map[claims.ID]string{doc: text})
	s.logger.Info("document saved", "document_id", doc)
	return nil
}

// SaveAll sends every pending edit in a single request. Either all sent
// entries are committed or, on failure, all are kept.
func (s *Session) SaveAll(ctx context.Context) error {
	s.mu.Lock()
	if s.savingAll || s.approving || len(s.saving) > 0 {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	s.savingAll = true
	s.mu.Unlock()

	err := s.saveAll(ctx)

	s.mu.Lock()
	s.savingAll = false
	s.mu.Unlock()
	return err
}

// Approve saves pending edits, then requests approval of the review stage.
// Approval is never requested when the save fails.
func (s *Session) Approve(ctx context.Context) error {
	s.mu.Lock()
	if s.savingAll || s.approving || len(s.saving) > 0 {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	s.approving = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.approving = false
		s.mu.Unlock()
	}()

	if err := s.saveAll(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrApprovalAborted, err)
	}

	if err := s.committer.CommitApproval(ctx, s.claimID, s.kind); err != nil {
		s.logger.Warn("approval failed", "error", err)
		return err
	}
	s.logger.Info("approval requested")
	return nil
}

// Rebase replaces committed text with the claim's current values. Pending
// edits are never touched; a pending entry equal to the new committed text
// is dropped. Documents added to the claim are appended.
func (s *Session) Rebase(c *claims.Claim) error {
	if c == nil {
		return claims.ErrNilClaim
	}
	if c.ID != s.claimID {
		return fmt.Errorf("%w: session %s, claim %s", claims.ErrClaimMismatch, s.claimID, c.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range c.Documents {
		d := &c.Documents[i]
		if _, ok := s.committed[d.ID]; !ok {
			s.order = append(s.order, d.ID)
		}
		text := s.kind.Text(d)
		s.committed[d.ID] = text
		if p, ok := s.pending[d.ID]; ok && p == text {
			delete(s.pending, d.ID)
		}
	}
	return nil
}

func (s *Session) saveAll(ctx context.Context) error {
	s.mu.Lock()
	edits := maps.Clone(s.pending)
	s.mu.Unlock()

	if len(edits) == 0 {
		return nil
	}

	if err := s.committer.CommitEdits(ctx, s.claimID, s.kind, edits); err != nil {
		s.logger.Warn("save all failed", "documents", len(edits), "error", err)
		return err
	}

	s.mu.Lock()
	s.settle(edits)
	s.mu.Unlock()
	s.logger.Info("documents saved", "documents", len(edits))
	return nil
}

// settle marks sent as committed. Callers hold s.mu.
func (s *Session) settle(sent map[claims.ID]string) {
	for doc, text := range sent {
		s.committed[doc] = text
		if p, ok := s.pending[doc]; ok && p == text {
			delete(s.pending, doc)
		}
	}
}
