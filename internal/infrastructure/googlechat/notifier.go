package googlechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"EmailAutomation/internal/ports"
)

const (
	systemThread   = "email-automation-system"
	approvalThread = "email-approval-requests"
)

// Notifier posts escalations and approval prompts to a Google Chat space
// incoming webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify posts a plain text message to the system thread.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	return n.post(ctx, map[string]any{
		"text":   text,
		"thread": map[string]string{"name": systemThread},
	})
}

// RequestApproval posts an interactive card with APPROVE/REJECT buttons that
// carry the message ID back through the operator API.
func (n *Notifier) RequestApproval(ctx context.Context, text, messageID string) error {
	return n.post(ctx, approvalCard(text, messageID))
}

// Ping posts a short test message to verify the webhook is reachable.
func (n *Notifier) Ping(ctx context.Context) error {
	return n.Notify(ctx, "Email automation connection test")
}

func (n *Notifier) post(ctx context.Context, payload any) error {
	if n.webhookURL == "" {
		return fmt.Errorf("google chat webhook url is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("google chat error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}

func approvalCard(text, messageID string) map[string]any {
	button := func(label, action string) map[string]any {
		return map[string]any{
			"textButton": map[string]any{
				"text": label,
				"onClick": map[string]any{
					"action": map[string]any{
						"actionMethodName": action,
						"parameters": []map[string]string{
							{"key": "message_id", "value": messageID},
						},
					},
				},
			},
		}
	}

	return map[string]any{
		"cards": []map[string]any{{
			"header": map[string]any{
				"title":    "Email Response Approval Required",
				"subtitle": "Message ID: " + messageID,
			},
			"sections": []map[string]any{
				{
					"widgets": []map[string]any{
						{"textParagraph": map[string]string{"text": text}},
					},
				},
				{
					"widgets": []map[string]any{
						{"buttons": []map[string]any{
							button("APPROVE", "approve_response"),
							button("REJECT", "reject_response"),
						}},
					},
				},
			},
		}},
		"thread": map[string]string{"name": approvalThread},
	}
}
