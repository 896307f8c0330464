// Package api exposes the operator HTTP surface: out-of-band approval
// decisions, system status, processing statistics, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"EmailAutomation/internal/domain"
)

// Core is the subset of the processor the HTTP layer drives.
type Core interface {
	Resolve(ctx context.Context, messageID string, approved bool, approvedBy, comments string) bool
	Status(ctx context.Context) domain.SystemStatus
	Stats() domain.ProcessingStats
}

type Handler struct {
	core   Core
	logger *slog.Logger
}

func NewHandler(core Core, logger *slog.Logger) *Handler {
	return &Handler{core: core, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/approvals/{messageID}", h.resolveApproval)
	r.Get("/api/system/status", h.getStatus)
	r.Get("/api/stats", h.getStats)
	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type approvalDecision struct {
	Approved   bool   `json:"approved"`
	ApprovedBy string `json:"approved_by"`
	Comments   string `json:"comments"`
}

// resolveApproval applies a human decision to a pending message. An unknown
// or already-resolved message ID is a normal outcome (resolved=false), not an
// error: the decision may simply have raced the timeout sweeper.
func (h *Handler) resolveApproval(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	var dec approvalDecision
	if err := json.NewDecoder(r.Body).Decode(&dec); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dec.ApprovedBy == "" {
		h.writeError(w, http.StatusBadRequest, "approved_by is required")
		return
	}

	resolved := h.core.Resolve(r.Context(), messageID, dec.Approved, dec.ApprovedBy, dec.Comments)
	h.logger.Info("approval decision received",
		"message_id", messageID, "approved", dec.Approved, "by", dec.ApprovedBy, "resolved", resolved)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message_id": messageID,
		"resolved":   resolved,
	})
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	st := h.core.Status(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]any{
		"is_running":             st.Running,
		"imap_connected":         st.IMAP,
		"smtp_connected":         st.SMTP,
		"openai_available":       st.OpenAI,
		"google_chat_available":  st.GoogleChat,
		"uptime_seconds":         int64(st.Uptime.Seconds()),
		"total_emails_processed": st.Processed,
		"total_responses_sent":   st.ResponsesSent,
		"error_count":            st.Errors,
		"pending_decisions":      st.PendingCount,
	})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	s := h.core.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"emails_processed":  s.Processed,
		"ai_responses":      s.AutoReplied,
		"human_escalations": s.Escalated,
		"approvals_granted": s.Approved,
		"approvals_denied":  s.Denied,
		"timeouts":          s.TimedOut,
		"errors":            s.Errors,
		"success_rate":      s.SuccessRate,
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
