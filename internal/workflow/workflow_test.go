package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/JaimeStill/claimsync/internal/api"
	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/claimtest"
	"github.com/JaimeStill/claimsync/internal/gate"
	"github.com/JaimeStill/claimsync/internal/review"
	"github.com/JaimeStill/claimsync/internal/workflow"
)

var discard = slog.New(slog.DiscardHandler)

func newSystem(t *testing.T, baseURL string) workflow.System {
	t.Helper()
	cfg := &api.Config{BaseURL: baseURL}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	remote, err := api.New(cfg, discard)
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	return workflow.New(remote, discard)
}

func model(t *testing.T, c *claims.Claim) *claims.Model {
	t.Helper()
	m := claims.NewModel(c.ID)
	if err := m.Apply(c); err != nil {
		t.Fatalf("apply: %v", err)
	}
	return m
}

type call func(context.Context, workflow.System, workflow.Subject) (*workflow.Receipt, error)

var invokers = map[workflow.Operation]call{
	workflow.OpApproveOCR: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.ApproveOCR(ctx, s)
	},
	workflow.OpApproveAnonymization: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.ApproveAnonymization(ctx, s)
	},
	workflow.OpEditOCR: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.EditOCR(ctx, s, map[claims.ID]string{s.ID()*100 + 1: "edited"})
	},
	workflow.OpEditAnonymization: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.EditAnonymization(ctx, s, map[claims.ID]string{s.ID()*100 + 1: "edited"})
	},
	workflow.OpPreviewCleaning: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.PreviewCleaning(ctx, s)
	},
	workflow.OpStartAnalysis: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.StartAnalysis(ctx, s, "")
	},
	workflow.OpRetryAnonymization: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.RetryAnonymization(ctx, s)
	},
	workflow.OpReClean: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.ReClean(ctx, s)
	},
	workflow.OpResetStatus: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.ResetStatus(ctx, s)
	},
	workflow.OpDeleteClaim: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
		return w.DeleteClaim(ctx, s)
	},
}

func TestFailedClaimRejectsStartAnalysisLocally(t *testing.T) {
	srv := claimtest.New()
	srv.Put(claimtest.Claim(42, claims.StageFailed, 1))
	w := newSystem(t, srv.Start(t))
	m := model(t, claimtest.Claim(42, claims.StageFailed, 1))

	if got := gate.Legal(m.Stage()).String(); got != "{retryAnonymization, reClean, resetStatus, delete}" {
		t.Errorf("legal actions: got %s", got)
	}

	_, err := w.StartAnalysis(context.Background(), m, "default")
	if !errors.Is(err, gate.ErrInvalidForStage) {
		t.Fatalf("got %v, want ErrInvalidForStage", err)
	}
	if workflow.Classify(err) != workflow.KindValidation {
		t.Errorf("kind: got %s, want validation", workflow.Classify(err))
	}
	if calls := srv.Calls(); len(calls) != 0 {
		t.Errorf("network calls: got %v, want none", srv.Keys())
	}
}

func TestGateRoundTrip(t *testing.T) {
	tests := []struct {
		stage   claims.Stage
		allowed workflow.Operation
		refused workflow.Operation
		key     string
	}{
		{claims.StageOCRReview, workflow.OpApproveOCR, workflow.OpStartAnalysis, "POST /claims/3/ocr/approve"},
		{claims.StageReadyForAnalysis, workflow.OpStartAnalysis, workflow.OpApproveOCR, "POST /claims/3/analysis/start"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			srv := claimtest.New()
			srv.Put(claimtest.Claim(3, tt.stage, 1))
			w := newSystem(t, srv.Start(t))
			ctx := context.Background()

			// the model is fed from a real fetch
			c, err := newRemote(t, srv).GetClaim(ctx, 3)
			if err != nil {
				t.Fatalf("get claim: %v", err)
			}
			m := model(t, c)

			legal := gate.Legal(m.Stage())
			if !legal.Has(tt.allowed.Action()) || legal.Has(tt.refused.Action()) {
				t.Fatalf("legal actions at %s: %s", tt.stage, legal)
			}

			if _, err := invokers[tt.refused](ctx, w, m); !errors.Is(err, gate.ErrInvalidForStage) {
				t.Errorf("%s: got %v, want ErrInvalidForStage", tt.refused, err)
			}
			receipt, err := invokers[tt.allowed](ctx, w, m)
			if err != nil {
				t.Fatalf("%s: %v", tt.allowed, err)
			}
			if receipt.Operation != tt.allowed || receipt.ClaimID != 3 {
				t.Errorf("receipt: %+v", receipt)
			}

			keys := srv.Keys()
			if keys[len(keys)-1] != tt.key || srv.Count(tt.key) != 1 {
				t.Errorf("calls: got %v", keys)
			}
		})
	}
}

func newRemote(t *testing.T, srv *claimtest.Server) *api.Client {
	t.Helper()
	cfg := &api.Config{BaseURL: srv.Start(t)}
	cfg.Finalize(nil)
	c, err := api.New(cfg, discard)
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	return c
}

func TestEveryOperationIsGated(t *testing.T) {
	for _, stage := range claims.Stages {
		for _, op := range workflow.Operations {
			t.Run(string(stage)+"/"+string(op), func(t *testing.T) {
				srv := claimtest.New()
				srv.Put(claimtest.Claim(5, stage, 1))
				w := newSystem(t, srv.Start(t))
				m := model(t, claimtest.Claim(5, stage, 1))

				_, err := invokers[op](context.Background(), w, m)
				legal := gate.Allowed(stage, op.Action())

				if !legal {
					if !errors.Is(err, gate.ErrInvalidForStage) {
						t.Errorf("got %v, want ErrInvalidForStage", err)
					}
					if n := len(srv.Calls()); n != 0 {
						t.Errorf("refused operation sent %d requests", n)
					}
					return
				}
				if errors.Is(err, gate.ErrInvalidForStage) {
					t.Errorf("legal operation refused: %v", err)
				}
				if n := len(srv.Calls()); n != 1 {
					t.Errorf("legal operation sent %d requests, want 1", n)
				}
			})
		}
	}
}

func TestSuccessDoesNotAssumeStage(t *testing.T) {
	srv := claimtest.New()
	srv.Put(claimtest.Claim(7, claims.StageOCRReview, 1))
	w := newSystem(t, srv.Start(t))
	m := model(t, claimtest.Claim(7, claims.StageOCRReview, 1))

	if _, err := w.ApproveOCR(context.Background(), m); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if m.Stage() != claims.StageOCRReview {
		t.Errorf("model stage changed locally to %s", m.Stage())
	}
	if stored, _ := srv.Get(7); stored.Status != claims.StageCleaning {
		t.Errorf("server stage: got %s, want CLEANING", stored.Status)
	}
}

func TestStaleGateRejectedVerbatim(t *testing.T) {
	srv := claimtest.New()
	srv.Put(claimtest.Claim(7, claims.StageCleaning, 1))
	w := newSystem(t, srv.Start(t))

	// the view last saw OCR_REVIEW; the server has moved on
	m := model(t, claimtest.Claim(7, claims.StageOCRReview, 1))

	_, err := w.ApproveOCR(context.Background(), m)
	if workflow.Classify(err) != workflow.KindRejected {
		t.Fatalf("kind: got %s (%v), want rejected", workflow.Classify(err), err)
	}
	want := "Claim is not in OCR_REVIEW status (current: CLEANING)"
	if got := workflow.Message(err); got != want {
		t.Errorf("message: got %q, want %q", got, want)
	}
	if !workflow.Classify(err).Retryable() {
		t.Error("rejections should be retryable after refresh")
	}
	if m.Stage() != claims.StageOCRReview {
		t.Error("failure must leave the model untouched")
	}
}

func TestInjectedRejection(t *testing.T) {
	srv := claimtest.New()
	srv.Put(claimtest.Claim(7, claims.StageReadyForAnalysis, 1))
	srv.Fail("POST /claims/7/analysis/start", http.StatusConflict, "Analysis quota exceeded for country SK")
	w := newSystem(t, srv.Start(t))
	m := model(t, claimtest.Claim(7, claims.StageReadyForAnalysis, 1))

	_, err := w.StartAnalysis(context.Background(), m, "health")
	var se *api.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusConflict {
		t.Fatalf("got %v, want 409 StatusError", err)
	}
	if got := workflow.Message(err); got != "Analysis quota exceeded for country SK" {
		t.Errorf("message: got %q", got)
	}
}

func TestTransportFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL + "/api/v1"
	dead.Close()

	w := newSystem(t, url)
	m := model(t, claimtest.Claim(7, claims.StageFailed, 1))

	_, err := w.ResetStatus(context.Background(), m)
	if workflow.Classify(err) != workflow.KindTransport {
		t.Fatalf("kind: got %s (%v), want transport", workflow.Classify(err), err)
	}
	if workflow.Message(err) == "" {
		t.Error("transport failures need a visible message")
	}
	if w.InFlight(7, workflow.OpResetStatus) {
		t.Error("failed operation should release its in-flight slot")
	}
}

func TestSecondInvocationSuppressedWhileInFlight(t *testing.T) {
	srv := claimtest.New()
	srv.Put(claimtest.Claim(7, claims.StageOCRReview, 1))
	arrived, release := srv.Hold("POST /claims/7/ocr/approve")
	w := newSystem(t, srv.Start(t))
	m := model(t, claimtest.Claim(7, claims.StageOCRReview, 1))
	ctx := context.Background()

	done := make(chan error)
	go func() {
		_, err := w.ApproveOCR(ctx, m)
		done <- err
	}()
	<-arrived

	if !w.InFlight(7, workflow.OpApproveOCR) {
		t.Error("approve should be in flight")
	}
	_, err := w.ApproveOCR(ctx, m)
	if !errors.Is(err, workflow.ErrInFlight) {
		t.Errorf("second approve: got %v, want ErrInFlight", err)
	}
	if workflow.Classify(err) != workflow.KindValidation {
		t.Errorf("kind: got %s", workflow.Classify(err))
	}

	// a different operation on the same claim is not blocked
	if _, err := w.PreviewCleaning(ctx, m); err != nil {
		t.Errorf("preview during approve: %v", err)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if n := srv.Count("POST /claims/7/ocr/approve"); n != 1 {
		t.Errorf("approve requests: got %d, want 1", n)
	}
	if w.InFlight(7, workflow.OpApproveOCR) {
		t.Error("slot should be released")
	}
}

func TestEmptyEditsRefused(t *testing.T) {
	srv := claimtest.New()
	srv.Put(claimtest.Claim(7, claims.StageOCRReview, 1))
	w := newSystem(t, srv.Start(t))
	m := model(t, claimtest.Claim(7, claims.StageOCRReview, 1))

	_, err := w.EditOCR(context.Background(), m, nil)
	if !errors.Is(err, workflow.ErrNoEdits) {
		t.Errorf("got %v, want ErrNoEdits", err)
	}
	if len(srv.Calls()) != 0 {
		t.Errorf("calls: got %v", srv.Keys())
	}
}

func TestStartAnalysisDefaultPrompt(t *testing.T) {
	srv := claimtest.New()
	srv.Put(claimtest.Claim(7, claims.StageReadyForAnalysis, 1))
	w := newSystem(t, srv.Start(t))
	m := model(t, claimtest.Claim(7, claims.StageReadyForAnalysis, 1))

	receipt, err := w.StartAnalysis(context.Background(), m, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if receipt.Message != "Analysis started with prompt 'default'" {
		t.Errorf("message: got %q", receipt.Message)
	}
}

func TestPreviewCleaningReceipt(t *testing.T) {
	srv := claimtest.New()
	srv.Put(claimtest.Claim(7, claims.StageOCRReview, 2))
	w := newSystem(t, srv.Start(t))
	m := model(t, claimtest.Claim(7, claims.StageOCRReview, 2))

	receipt, err := w.PreviewCleaning(context.Background(), m)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if receipt.Preview == nil || len(receipt.Preview.Documents) != 2 {
		t.Fatalf("preview: %+v", receipt.Preview)
	}
	if stored, _ := srv.Get(7); stored.Status != claims.StageOCRReview {
		t.Errorf("preview must not move the claim, got %s", stored.Status)
	}
}

func TestReviewApprovalThroughCommitter(t *testing.T) {
	srv := claimtest.New()
	claim := claimtest.Claim(7, claims.StageAnonymizationReview, 2)
	srv.Put(claim)
	w := newSystem(t, srv.Start(t))
	m := model(t, claim)

	s, err := review.Load(m.Claim(), claims.ReviewAnonymization, w.Committer(m), discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s.SetText(702, "[REDACTED] text")

	if err := s.Approve(context.Background()); err != nil {
		t.Fatalf("approve: %v", err)
	}

	want := []string{"POST /claims/7/anon/edit", "POST /claims/7/anon/approve"}
	if got := srv.Keys(); !slices.Equal(got, want) {
		t.Errorf("calls: got %v, want %v", got, want)
	}
	stored, _ := srv.Get(7)
	if got := claims.ReviewAnonymization.Text(&stored.Documents[1]); got != "[REDACTED] text" {
		t.Errorf("stored text: got %q", got)
	}
}

func TestReviewApprovalAbortedOnSaveFailure(t *testing.T) {
	srv := claimtest.New()
	claim := claimtest.Claim(7, claims.StageOCRReview, 1)
	srv.Put(claim)
	srv.Fail("POST /claims/7/ocr/edit", http.StatusInternalServerError, "storage unavailable")
	w := newSystem(t, srv.Start(t))
	m := model(t, claim)

	s, _ := review.Load(m.Claim(), claims.ReviewOCR, w.Committer(m), discard)
	s.SetText(701, "corrected")

	err := s.Approve(context.Background())
	if !errors.Is(err, review.ErrApprovalAborted) {
		t.Fatalf("got %v, want ErrApprovalAborted", err)
	}
	if workflow.Message(err) != "storage unavailable" {
		t.Errorf("message: got %q", workflow.Message(err))
	}
	if n := srv.Count("POST /claims/7/ocr/approve"); n != 0 {
		t.Errorf("approve issued %d times after failed save", n)
	}
	if got, _ := s.Text(701); got != "corrected" {
		t.Errorf("buffer: got %q", got)
	}
}

func TestCommitterRejectsOtherClaim(t *testing.T) {
	srv := claimtest.New()
	w := newSystem(t, srv.Start(t))
	m := model(t, claimtest.Claim(7, claims.StageOCRReview, 1))

	err := w.Committer(m).CommitApproval(context.Background(), 8, claims.ReviewOCR)
	if !errors.Is(err, claims.ErrClaimMismatch) {
		t.Errorf("got %v, want ErrClaimMismatch", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want workflow.Kind
	}{
		{"nil", nil, workflow.KindNone},
		{"gate", gate.Check(claims.StageFailed, gate.StartAnalysis), workflow.KindValidation},
		{"in flight", workflow.ErrInFlight, workflow.KindValidation},
		{"save in flight", review.ErrSaveInFlight, workflow.KindValidation},
		{"transport", api.ErrTransport, workflow.KindTransport},
		{"rejected", &api.StatusError{StatusCode: 400, Detail: "no"}, workflow.KindRejected},
		{"other", errors.New("boom"), workflow.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := workflow.Classify(tt.err); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOperationsTable(t *testing.T) {
	for _, op := range workflow.Operations {
		if !op.Valid() {
			t.Errorf("%s has no gate action", op)
		}
		if _, ok := invokers[op]; !ok {
			t.Errorf("%s has no invoker under test", op)
		}
	}
	if len(workflow.Operations) != 10 {
		t.Errorf("operations: got %d, want 10", len(workflow.Operations))
	}
	if workflow.OpEditOCR.Action() != gate.ApproveOCR || workflow.OpEditAnonymization.Action() != gate.ApproveAnon {
		t.Error("edits should share their review approval's gate entry")
	}
}
