// Package claimtest provides an in-memory claim API for tests. It mirrors
// the remote service's routes, stage preconditions and transitions, records
// every request, and lets tests inject failures or hold requests open.
package claimtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/JaimeStill/claimsync/internal/activity"
	"github.com/JaimeStill/claimsync/internal/claims"
)

// BasePath is the prefix every route is mounted under.
const BasePath = "/api/v1"

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header
}

// Key returns "METHOD /path" without the base prefix.
func (c Call) Key() string {
	return c.Method + " " + c.Path
}

type failure struct {
	status int
	detail string
}

type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
}

// Server is a fake claim API.
type Server struct {
	mu      sync.Mutex
	claims  map[claims.ID]*claims.Claim
	trails  map[claims.ID]activity.Trail
	calls   []Call
	fails   map[string]failure
	holds   map[string]chan struct{}
	arrived map[string]chan struct{}
	mux     *http.ServeMux
}

// New creates an empty Server.
func New() *Server {
	s := &Server{
		claims:  make(map[claims.ID]*claims.Claim),
		trails:  make(map[claims.ID]activity.Trail),
		fails:   make(map[string]failure),
		holds:   make(map[string]chan struct{}),
		arrived: make(map[string]chan struct{}),
		mux:     http.NewServeMux(),
	}
	s.register()
	return s
}

// Start serves s on a local listener closed at test cleanup and returns the
// API base URL.
func (s *Server) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv.URL + BasePath
}

// Put stores a copy of c, replacing any claim with the same id.
func (s *Server) Put(c *claims.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[c.ID] = c.Clone()
}

// Get returns a copy of the stored claim.
func (s *Server) Get(id claims.ID) (*claims.Claim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	return c.Clone(), ok
}

// SetStatus moves a stored claim to stage, simulating background job progress.
func (s *Server) SetStatus(id claims.ID, stage claims.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.claims[id]; ok {
		c.Status = stage
	}
}

// PutTrail stores the audit trail returned for a claim.
func (s *Server) PutTrail(trail activity.Trail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trails[trail.ClaimID] = trail
}

// Fail makes every request matching key ("POST /claims/7/ocr/edit") answer
// status with detail until Recover is called.
func (s *Server) Fail(key string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[key] = failure{status: status, detail: detail}
}

// Recover removes an injected failure.
func (s *Server) Recover(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fails, key)
}

// Hold blocks the next request matching key until the returned release
// function is called. The arrived channel is closed once the request is
// being held.
func (s *Server) Hold(key string) (arrived <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	in := make(chan struct{})
	s.holds[key] = gate
	s.arrived[key] = in

	var once sync.Once
	return in, func() { once.Do(func() { close(gate) }) }
}

// Calls returns every recorded request in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Count returns how many recorded requests match key.
func (s *Server) Count(key string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Key() == key {
			n++
		}
	}
	return n
}

// Keys returns the keys of every recorded request in arrival order.
func (s *Server) Keys() []string {
	calls := s.Calls()
	keys := make([]string, len(calls))
	for i, c := range calls {
		keys[i] = c.Key()
	}
	return keys
}

// ServeHTTP records the request, applies holds and injected failures,
// then dispatches to the route.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()

	path := r.URL.Path
	if len(path) >= len(BasePath) && path[:len(BasePath)] == BasePath {
		path = path[len(BasePath):]
	}
	call := Call{Method: r.Method, Path: path, Query: r.URL.Query(), Body: body, Header: r.Header.Clone()}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	hold, held := s.holds[call.Key()]
	in := s.arrived[call.Key()]
	if held {
		delete(s.holds, call.Key())
		delete(s.arrived, call.Key())
	}
	fail, failing := s.fails[call.Key()]
	s.mu.Unlock()

	if held {
		close(in)
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	if failing {
		writeJSON(w, fail.status, map[string]string{"detail": fail.detail})
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	s.mux.ServeHTTP(w, r)
}

func (s *Server) register() {
	routes := []route{
		{"GET", "/claims", s.list},
		{"GET", "/claims/{id}", s.find},
		{"DELETE", "/claims/{id}", s.remove},
		{"POST", "/claims/{id}/ocr/edit", s.edit(claims.ReviewOCR)},
		{"POST", "/claims/{id}/ocr/approve", s.approve(claims.ReviewOCR)},
		{"POST", "/claims/{id}/ocr/preview-cleaning", s.previewCleaning},
		{"POST", "/claims/{id}/anon/edit", s.edit(claims.ReviewAnonymization)},
		{"POST", "/claims/{id}/anon/approve", s.approve(claims.ReviewAnonymization)},
		{"POST", "/claims/{id}/anon/retry", s.retry},
		{"POST", "/claims/{id}/anon/re-clean", s.reClean},
		{"POST", "/claims/{id}/anon/reset-status", s.resetStatus},
		{"POST", "/claims/{id}/analysis/start", s.startAnalysis},
		{"GET", "/audit/claims/{id}", s.trail},
		{"GET", "/prompts", s.prompts},
	}
	for _, rt := range routes {
		s.mux.HandleFunc(rt.method+" "+BasePath+rt.pattern, rt.handler)
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*claims.Claim, bool) {
	id, err := claims.ParseID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid claim id"})
		return nil, false
	}
	c, ok := s.claims[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Claim not found"})
		return nil, false
	}
	return c, true
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	filter := r.URL.Query().Get("status_filter")

	ids := make([]claims.ID, 0, len(s.claims))
	for id, c := range s.claims {
		if filter == "" || string(c.Status) == filter {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	items := []claims.Summary{}
	for i, id := range ids {
		if i < skip || len(items) >= limit {
			continue
		}
		c := s.claims[id]
		items = append(items, claims.Summary{
			ID:            c.ID,
			Country:       c.Country,
			Status:        c.Status,
			CreatedAt:     c.CreatedAt,
			DocumentCount: len(c.Documents),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(ids),
		"skip":  skip,
		"limit": limit,
	})
}

func (s *Server) find(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	delete(s.claims, c.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Claim %s deleted", c.ID)})
}

func (s *Server) edit(kind claims.ReviewKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.lookup(w, r)
		if !ok {
			return
		}

		var req struct {
			Edits map[string]string `json:"edits"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Edits == nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "edits required"})
			return
		}

		updated := 0
		for key, text := range req.Edits {
			id, err := claims.ParseID(key)
			if err != nil {
				continue
			}
			if doc, ok := c.Document(id); ok {
				kind.SetText(doc, text)
				updated++
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Updated %d documents", updated)})
	}
}

func (s *Server) approve(kind claims.ReviewKind) http.HandlerFunc {
	next := claims.StageCleaning
	if kind == claims.ReviewAnonymization {
		next = claims.StageReadyForAnalysis
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.lookup(w, r)
		if !ok {
			return
		}
		if c.Status != kind.Stage() {
			writeDetail(w, http.StatusBadRequest, "Claim is not in %s status (current: %s)", kind.Stage(), c.Status)
			return
		}
		c.Status = next
		writeJSON(w, http.StatusOK, map[string]string{"message": "approved"})
	}
}

func (s *Server) previewCleaning(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}

	docs := make([]map[string]any, 0, len(c.Documents))
	for i := range c.Documents {
		text := claims.ReviewOCR.Text(&c.Documents[i])
		docs = append(docs, map[string]any{
			"id":            c.Documents[i].ID,
			"filename":      c.Documents[i].Filename,
			"original_text": text,
			"cleaned_text":  text,
			"stats": map[string]any{
				"original_length": len(text),
				"cleaned_length":  len(text),
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id":    c.ID,
		"documents":   docs,
		"total_stats": map[string]float64{"reduction_percent": 0},
	})
}

func (s *Server) retry(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if c.Status != claims.StageAnonymizing && c.Status != claims.StageCleaning {
		writeDetail(w, http.StatusBadRequest,
			"Claim is in %s status. Retry only works for ANONYMIZING or CLEANING status.", c.Status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Retry triggered",
		"count":    len(c.Documents),
		"claim_id": c.ID,
		"status":   c.Status,
	})
}

func (s *Server) reClean(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	for i := range c.Documents {
		c.Documents[i].CleanedText = nil
		c.Documents[i].AnonymizedText = nil
	}
	c.Status = claims.StageCleaning
	writeJSON(w, http.StatusOK, map[string]string{"message": "Re-cleaning started"})
}

func (s *Server) resetStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	switch c.Status {
	case claims.StageAnalyzing, claims.StageFailed, claims.StageAnalyzed:
	default:
		writeDetail(w, http.StatusBadRequest,
			"Cannot reset status from %s. Only allowed from ANALYZING, FAILED or ANALYZED.", c.Status)
		return
	}
	old := c.Status
	c.Status = claims.StageReadyForAnalysis
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Claim status reset",
		"old_status": old,
		"new_status": c.Status,
	})
}

func (s *Server) startAnalysis(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		PromptID string `json:"prompt_id"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if c.Status != claims.StageReadyForAnalysis {
		writeDetail(w, http.StatusBadRequest, "Claim is not ready for analysis (current status: %s)", c.Status)
		return
	}
	c.Status = claims.StageAnalyzing
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Analysis started with prompt '%s'", req.PromptID),
	})
}

func (s *Server) trail(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := claims.ParseID(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid claim id")
		return
	}
	trail, ok := s.trails[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Claim not found or no audit trail available")
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

func (s *Server) prompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"prompts": []map[string]string{
			{"id": "default", "name": "Default", "llm_model": "mistral-small-latest"},
			{"id": "health", "name": "Health claims", "llm_model": "mistral-small-latest"},
		},
		"default": "default",
	})
}

func writeDetail(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"detail": fmt.Sprintf(format, args...)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
