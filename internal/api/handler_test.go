package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EmailAutomation/internal/domain"
)

type stubCore struct {
	resolved   bool
	lastID     string
	lastVerb   bool
	lastBy     string
	lastNote   string
	status     domain.SystemStatus
	processing domain.ProcessingStats
}

func (s *stubCore) Resolve(_ context.Context, messageID string, approved bool, approvedBy, comments string) bool {
	s.lastID = messageID
	s.lastVerb = approved
	s.lastBy = approvedBy
	s.lastNote = comments
	return s.resolved
}

func (s *stubCore) Status(context.Context) domain.SystemStatus { return s.status }
func (s *stubCore) Stats() domain.ProcessingStats              { return s.processing }

func newTestServer(core Core) *httptest.Server {
	h := NewHandler(core, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return httptest.NewServer(h.Routes())
}

func TestResolveApproval(t *testing.T) {
	core := &stubCore{resolved: true}
	srv := newTestServer(core)
	defer srv.Close()

	body := `{"approved": true, "approved_by": "operator", "comments": "looks good"}`
	resp, err := http.Post(srv.URL+"/api/approvals/msg-42", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		MessageID string `json:"message_id"`
		Resolved  bool   `json:"resolved"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "msg-42", result.MessageID)
	assert.True(t, result.Resolved)

	assert.Equal(t, "msg-42", core.lastID)
	assert.True(t, core.lastVerb)
	assert.Equal(t, "operator", core.lastBy)
	assert.Equal(t, "looks good", core.lastNote)
}

func TestResolveApprovalUnknownMessage(t *testing.T) {
	srv := newTestServer(&stubCore{resolved: false})
	defer srv.Close()

	body := `{"approved": false, "approved_by": "operator"}`
	resp, err := http.Post(srv.URL+"/api/approvals/never-seen", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	// an unknown message is a normal outcome, not an error
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Resolved bool `json:"resolved"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Resolved)
}

func TestResolveApprovalValidation(t *testing.T) {
	srv := newTestServer(&stubCore{})
	defer srv.Close()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"approved": tru`},
		{"missing approved_by", `{"approved": true}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/approvals/msg-1", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetStatus(t *testing.T) {
	core := &stubCore{status: domain.SystemStatus{
		Running:       true,
		IMAP:          true,
		SMTP:          true,
		OpenAI:        false,
		GoogleChat:    true,
		Uptime:        90 * time.Second,
		Processed:     12,
		ResponsesSent: 9,
		Errors:        1,
		PendingCount:  2,
	}}
	srv := newTestServer(core)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/system/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, true, result["is_running"])
	assert.Equal(t, false, result["openai_available"])
	assert.EqualValues(t, 90, result["uptime_seconds"])
	assert.EqualValues(t, 12, result["total_emails_processed"])
	assert.EqualValues(t, 2, result["pending_decisions"])
}

func TestGetStats(t *testing.T) {
	core := &stubCore{processing: domain.ProcessingStats{
		Processed:   10,
		AutoReplied: 6,
		Escalated:   2,
		Approved:    1,
		Denied:      1,
		TimedOut:    1,
		Errors:      3,
		SuccessRate: 80,
	}}
	srv := newTestServer(core)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.EqualValues(t, 10, result["emails_processed"])
	assert.EqualValues(t, 6, result["ai_responses"])
	assert.EqualValues(t, 2, result["human_escalations"])
	assert.EqualValues(t, 80, result["success_rate"])
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubCore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
