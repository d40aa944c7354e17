package review_test

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/claimtest"
	"github.com/JaimeStill/claimsync/internal/review"
)

type commitCall struct {
	op    string
	kind  claims.ReviewKind
	edits map[claims.ID]string
}

type fakeCommitter struct {
	mu         sync.Mutex
	calls      []commitCall
	editErr    error
	approveErr error
	block      chan struct{}
	entered    chan struct{}
}

func (f *fakeCommitter) CommitEdits(ctx context.Context, id claims.ID, kind claims.ReviewKind, edits map[claims.ID]string) error {
	f.mu.Lock()
	f.calls = append(f.calls, commitCall{op: "edit", kind: kind, edits: maps.Clone(edits)})
	block, entered, err := f.block, f.entered, f.editErr
	f.mu.Unlock()

	if block != nil {
		close(entered)
		<-block
	}
	return err
}

func (f *fakeCommitter) CommitApproval(ctx context.Context, id claims.ID, kind claims.ReviewKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, commitCall{op: "approve", kind: kind})
	return f.approveErr
}

func (f *fakeCommitter) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

func load(t *testing.T, c *claims.Claim, kind claims.ReviewKind, committer review.Committer) *review.Session {
	t.Helper()
	s, err := review.Load(c, kind, committer, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func TestLoadSeedsCommittedText(t *testing.T) {
	c := claimtest.Claim(7, claims.StageOCRReview, 2)
	c.Documents[1].OriginalText = nil

	s := load(t, c, claims.ReviewOCR, &fakeCommitter{})

	if got, _ := s.Text(701); got != "ocr text 701" {
		t.Errorf("doc 701: got %q", got)
	}
	if got, ok := s.Text(702); !ok || got != "" {
		t.Errorf("doc 702 absent text: got %q, %v", got, ok)
	}
	if !slices.Equal(s.Documents(), []claims.ID{701, 702}) {
		t.Errorf("documents: got %v", s.Documents())
	}
	if s.Dirty() {
		t.Error("fresh session should not be dirty")
	}
}

func TestLoadAnonymizationKind(t *testing.T) {
	c := claimtest.Claim(7, claims.StageAnonymizationReview, 1)
	s := load(t, c, claims.ReviewAnonymization, &fakeCommitter{})

	if got, _ := s.Text(701); got != "anon text 701" {
		t.Errorf("got %q, want anonymized text", got)
	}
}

func TestSetTextLastWriteWins(t *testing.T) {
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 1), claims.ReviewOCR, &fakeCommitter{})

	for _, text := range []string{"a", "ab", "abc"} {
		if err := s.SetText(701, text); err != nil {
			t.Fatalf("set text: %v", err)
		}
	}
	if got, _ := s.Text(701); got != "abc" {
		t.Errorf("got %q, want abc", got)
	}
	if committed, _ := s.Committed(701); committed != "ocr text 701" {
		t.Errorf("committed changed locally: %q", committed)
	}

	s.SetText(701, "ocr text 701")
	if s.Dirty() {
		t.Error("setting committed text back should clear the pending entry")
	}
}

func TestSetTextUnknownDocument(t *testing.T) {
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 1), claims.ReviewOCR, &fakeCommitter{})
	if err := s.SetText(999, "x"); !errors.Is(err, review.ErrUnknownDocument) {
		t.Errorf("got %v, want ErrUnknownDocument", err)
	}
}

func TestReloadDiscardsUnsavedEdits(t *testing.T) {
	c := claimtest.Claim(7, claims.StageOCRReview, 1)
	committer := &fakeCommitter{}

	s := load(t, c, claims.ReviewOCR, committer)
	s.SetText(701, "unsaved")

	s = load(t, c, claims.ReviewOCR, committer)

	if got, _ := s.Text(701); got != "ocr text 701" {
		t.Errorf("got %q, want committed text after reload", got)
	}
	if s.Dirty() {
		t.Error("reloaded session should not carry edits")
	}
	if len(committer.ops()) != 0 {
		t.Errorf("reload must not flush edits, calls: %v", committer.ops())
	}
}

func TestSaveOneSuccessClearsEntry(t *testing.T) {
	committer := &fakeCommitter{}
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 2), claims.ReviewOCR, committer)
	s.SetText(701, "fixed 1")
	s.SetText(702, "fixed 2")

	if err := s.SaveOne(context.Background(), 701); err != nil {
		t.Fatalf("save one: %v", err)
	}

	if s.Modified(701) {
		t.Error("saved entry should be cleared")
	}
	if !s.Modified(702) {
		t.Error("other entry should remain pending")
	}
	if got, _ := s.Committed(701); got != "fixed 1" {
		t.Errorf("committed: got %q", got)
	}

	edits := committer.calls[0].edits
	if len(edits) != 1 || edits[701] != "fixed 1" {
		t.Errorf("sent edits: got %v, want only doc 701", edits)
	}
}

func TestSaveOneFailureKeepsEntry(t *testing.T) {
	committer := &fakeCommitter{editErr: errors.New("network down")}
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 1), claims.ReviewOCR, committer)
	s.SetText(701, "keep me")

	if err := s.SaveOne(context.Background(), 701); err == nil {
		t.Fatal("expected error")
	}

	if got, _ := s.Text(701); got != "keep me" {
		t.Errorf("got %q, want buffered text retained", got)
	}
	if got, _ := s.Committed(701); got != "ocr text 701" {
		t.Errorf("committed should be unchanged, got %q", got)
	}
}

func TestSaveOneKeepsTextTypedDuringSave(t *testing.T) {
	committer := &fakeCommitter{block: make(chan struct{}), entered: make(chan struct{})}
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 1), claims.ReviewOCR, committer)
	s.SetText(701, "first")

	done := make(chan error)
	go func() { done <- s.SaveOne(context.Background(), 701) }()

	<-committer.entered
	s.SetText(701, "second")
	close(committer.block)

	if err := <-done; err != nil {
		t.Fatalf("save one: %v", err)
	}
	if got, _ := s.Text(701); got != "second" {
		t.Errorf("got %q, want later keystrokes kept", got)
	}
	if !s.Modified(701) {
		t.Error("entry typed during save should still be pending")
	}
}

func TestSaveRefusedWhileInFlight(t *testing.T) {
	committer := &fakeCommitter{block: make(chan struct{}), entered: make(chan struct{})}
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 1), claims.ReviewOCR, committer)
	s.SetText(701, "x")

	done := make(chan error)
	go func() { done <- s.SaveOne(context.Background(), 701) }()
	<-committer.entered

	if !s.Saving() {
		t.Error("session should report saving")
	}
	if err := s.SaveOne(context.Background(), 701); !errors.Is(err, review.ErrSaveInFlight) {
		t.Errorf("second save: got %v, want ErrSaveInFlight", err)
	}
	if err := s.SaveAll(context.Background()); !errors.Is(err, review.ErrSaveInFlight) {
		t.Errorf("save all: got %v, want ErrSaveInFlight", err)
	}
	if err := s.Approve(context.Background()); !errors.Is(err, review.ErrSaveInFlight) {
		t.Errorf("approve: got %v, want ErrSaveInFlight", err)
	}

	close(committer.block)
	<-done

	if n := len(committer.ops()); n != 1 {
		t.Errorf("calls: got %d, want 1", n)
	}
}

func TestSaveAllIsAtomic(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantPending int
	}{
		{"success commits every entry", nil, 0},
		{"failure keeps every entry", errors.New("rejected"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			committer := &fakeCommitter{editErr: tt.err}
			s := load(t, claimtest.Claim(7, claims.StageOCRReview, 3), claims.ReviewOCR, committer)
			s.SetText(701, "one")
			s.SetText(703, "three")

			err := s.SaveAll(context.Background())
			if (err != nil) != (tt.err != nil) {
				t.Fatalf("err: got %v", err)
			}
			if got := len(s.Pending()); got != tt.wantPending {
				t.Errorf("pending: got %d, want %d", got, tt.wantPending)
			}

			calls := committer.calls
			if len(calls) != 1 {
				t.Fatalf("calls: got %d, want one request", len(calls))
			}
			if len(calls[0].edits) != 2 {
				t.Errorf("sent: got %v, want docs 701 and 703", calls[0].edits)
			}
		})
	}
}

func TestSaveAllWithoutEditsSendsNothing(t *testing.T) {
	committer := &fakeCommitter{}
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 1), claims.ReviewOCR, committer)

	if err := s.SaveAll(context.Background()); err != nil {
		t.Fatalf("save all: %v", err)
	}
	if len(committer.ops()) != 0 {
		t.Errorf("calls: got %v", committer.ops())
	}
}

func TestApproveSavesFirst(t *testing.T) {
	committer := &fakeCommitter{}
	s := load(t, claimtest.Claim(7, claims.StageAnonymizationReview, 2), claims.ReviewAnonymization, committer)
	s.SetText(702, "redacted")

	if err := s.Approve(context.Background()); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if got := committer.ops(); !slices.Equal(got, []string{"edit", "approve"}) {
		t.Errorf("call order: got %v, want [edit approve]", got)
	}
	if committer.calls[1].kind != claims.ReviewAnonymization {
		t.Errorf("approval kind: got %s", committer.calls[1].kind)
	}
	if s.Dirty() {
		t.Error("edits should be committed after approve")
	}
}

func TestApproveWithoutEditsSkipsSave(t *testing.T) {
	committer := &fakeCommitter{}
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 1), claims.ReviewOCR, committer)

	if err := s.Approve(context.Background()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := committer.ops(); !slices.Equal(got, []string{"approve"}) {
		t.Errorf("calls: got %v, want [approve]", got)
	}
}

func TestApproveNeverFollowsFailedSave(t *testing.T) {
	committer := &fakeCommitter{editErr: errors.New("server said no")}
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 1), claims.ReviewOCR, committer)
	s.SetText(701, "edited")

	err := s.Approve(context.Background())
	if !errors.Is(err, review.ErrApprovalAborted) {
		t.Fatalf("got %v, want ErrApprovalAborted", err)
	}

	if got := committer.ops(); !slices.Equal(got, []string{"edit"}) {
		t.Errorf("calls: got %v, approval must not be issued", got)
	}
	if got, _ := s.Text(701); got != "edited" {
		t.Errorf("buffer lost: got %q", got)
	}
}

func TestRebaseKeepsPendingEdits(t *testing.T) {
	c := claimtest.Claim(7, claims.StageOCRReview, 2)
	s := load(t, c, claims.ReviewOCR, &fakeCommitter{})
	s.SetText(701, "mid-edit")

	next := c.Clone()
	teammate := "teammate text"
	next.Documents[0].OriginalText = &teammate
	next.Documents[1].OriginalText = &teammate

	if err := s.Rebase(next); err != nil {
		t.Fatalf("rebase: %v", err)
	}

	if got, _ := s.Text(701); got != "mid-edit" {
		t.Errorf("pending edit overwritten: got %q", got)
	}
	if got, _ := s.Committed(701); got != teammate {
		t.Errorf("committed: got %q", got)
	}
	if got, _ := s.Text(702); got != teammate {
		t.Errorf("unedited doc should follow server: got %q", got)
	}
}

func TestRebaseRejectsForeignClaim(t *testing.T) {
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 1), claims.ReviewOCR, &fakeCommitter{})
	if err := s.Rebase(claimtest.Claim(8, claims.StageOCRReview, 1)); !errors.Is(err, claims.ErrClaimMismatch) {
		t.Errorf("got %v, want ErrClaimMismatch", err)
	}
}

func TestDiscardAndRevert(t *testing.T) {
	s := load(t, claimtest.Claim(7, claims.StageOCRReview, 2), claims.ReviewOCR, &fakeCommitter{})
	s.SetText(701, "a")
	s.SetText(702, "b")

	s.Revert(701)
	if s.Modified(701) || !s.Modified(702) {
		t.Errorf("revert: pending %v", s.Pending())
	}

	s.Discard()
	if s.Dirty() {
		t.Error("discard should drop every edit")
	}
}
