package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/easeaico/bug-triage-agent/internal/metrics"
	"github.com/easeaico/bug-triage-agent/internal/tracker"
)

// webhookPayload is the part of a Jira webhook delivery the handler reads.
type webhookPayload struct {
	Issue              json.RawMessage `json:"issue"`
	IssueEventTypeName string          `json:"issue_event_type_name"`
	WebhookEvent       string          `json:"webhookEvent"`
}

// handleWebhook handles POST|GET /webhook
// POST carries the Jira delivery as the JSON body. GET carries it in the
// "payload" query parameter, or as plain query parameters.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := clog.FromContext(r.Context())

	raw, ok := readWebhookPayload(r)
	if !ok {
		metrics.RecordWebhook("invalid")
		writeJSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		metrics.RecordWebhook("invalid")
		writeJSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	issue, ok := decodeIssue(payload.Issue)
	if !ok {
		metrics.RecordWebhook("invalid")
		writeJSONError(w, http.StatusBadRequest, "no issue payload")
		return
	}

	event := payload.IssueEventTypeName
	if event == "" {
		event = payload.WebhookEvent
	}
	if !strings.Contains(strings.ToLower(event), "created") {
		metrics.RecordWebhook("ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "not a creation event"})
		return
	}
	if !issue.IsBug() {
		metrics.RecordWebhook("ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "not a bug"})
		return
	}

	if s.processor == nil {
		metrics.RecordWebhook("failed")
		writeJSONError(w, http.StatusServiceUnavailable, "triage not configured")
		return
	}

	log.Infof("Received new issue via webhook: %s", issue.Key)
	reviewURL, err := s.processor.ProcessBug(r.Context(), issue)
	if err != nil {
		metrics.RecordWebhook("failed")
		log.Errorf("failed to process %s: %v", issue.Key, err)
		writeJSONError(w, statusFor(err), err.Error())
		return
	}

	metrics.RecordWebhook("processed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed", "review_url": reviewURL})
}

// readWebhookPayload returns the delivery as a JSON object. It reports false
// when the delivery is not a JSON object.
func readWebhookPayload(r *http.Request) (json.RawMessage, bool) {
	var raw json.RawMessage

	switch {
	case r.Method == http.MethodGet && r.URL.Query().Has("payload"):
		raw = json.RawMessage(r.URL.Query().Get("payload"))
		if !json.Valid(raw) {
			// An unparsable payload parameter counts as an empty delivery.
			raw = json.RawMessage(`{}`)
		}
	case r.Method == http.MethodGet:
		params := make(map[string]string)
		for k, v := range r.URL.Query() {
			params[k] = v[0]
		}
		b, err := json.Marshal(params)
		if err != nil {
			return nil, false
		}
		raw = b
	default:
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, false
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return raw, true
}

// decodeIssue reads a non-empty issue object. An issue given as a string, as
// happens with plain query parameters, is decoded as JSON.
func decodeIssue(raw json.RawMessage) (tracker.Issue, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) == 0 {
		return tracker.Issue{}, false
	}

	var issue tracker.Issue
	if err := json.Unmarshal(raw, &issue); err != nil {
		return tracker.Issue{}, false
	}
	return issue, true
}

// handleAnalyze handles POST /analyze
// Request: {"title": "...", "description": "...", "files": ["a.py"]}
// Response: {"a.py": "patch"}
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Files       []string `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	fix, err := s.analyzer.Analyze(r.Context(), req.Title, req.Description, req.Files)
	if err != nil {
		clog.FromContext(r.Context()).Errorf("analysis failed: %v", err)
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fix)
}

// handleRemember handles POST /remember
// Request: {"title": "...", "description": "...", "fix": {"a.py": "patch"}}
// Response: {"status": "stored"}
func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string            `json:"title"`
		Description string            `json:"description"`
		Fix         map[string]string `json:"fix"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := s.analyzer.Remember(r.Context(), req.Title, req.Description, req.Fix); err != nil {
		clog.FromContext(r.Context()).Errorf("remember failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// handleGenerate handles POST /generate
// Request: {"prompt": "..."}
// Response: {"completion": "..."}
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	out, err := s.analyzer.Generate(r.Context(), req.Prompt)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"completion": out})
}

// handleLearn handles POST /learn
// Request: {"file": "x.py", "content": "..."}
// Response: {"status": "stored", "file": "x.py"}
func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "code index not enabled")
		return
	}

	var req struct {
		File    string `json:"file"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.File == "" {
		writeJSONError(w, http.StatusBadRequest, "file required")
		return
	}

	if err := s.index.Learn(r.Context(), req.File, req.Content); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "learn failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored", "file": req.File})
}

// handleMemory handles GET /memory
// Response: {"x.py": "content"}
func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "code index not enabled")
		return
	}

	files, err := s.index.Files(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// handleQuery handles POST /query
// Request: {"query": "text"}
// Response: {"files": ["a.py"]}
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "code index not enabled")
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	files, err := s.index.Query(r.Context(), req.Query, 0)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "query failed: "+err.Error())
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"files": files})
}
