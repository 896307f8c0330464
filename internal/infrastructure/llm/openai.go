package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"EmailAutomation/internal/config"
	"EmailAutomation/internal/domain"
	"EmailAutomation/internal/ports"
)

// Client implements urgency classification and reply drafting backed by an
// OpenAI-compatible chat-completions API.
type Client struct {
	endpoint    string
	model       string
	apiKey      string
	maxTokens   int
	tone        string
	fromAddress string
	httpClient  *http.Client
}

var _ ports.Classifier = (*Client)(nil)
var _ ports.Generator = (*Client)(nil)

// NewClient builds a client from configuration. fromAddress is the reply
// address woven into fallback texts.
func NewClient(cfg config.OpenAIConfig, fromAddress string) *Client {
	return &Client{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		maxTokens:   cfg.MaxResponseTokens,
		tone:        cfg.ResponseTone,
		fromAddress: fromAddress,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// Classify asks the model for an urgency score on the 1-5 scale.
func (c *Client) Classify(ctx context.Context, msg domain.EmailMessage) (domain.Urgency, error) {
	content, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an expert email urgency classifier. Analyze emails and determine their urgency level on a scale of 1-5."},
			{Role: "user", Content: classifyPrompt(msg)},
		},
		MaxTokens:      200,
		Temperature:    0.1,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return 0, fmt.Errorf("classify urgency: %w", err)
	}

	var result struct {
		Urgency   int    `json:"urgency"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return 0, fmt.Errorf("decode classification: %w", err)
	}

	urgency := domain.Urgency(result.Urgency)
	if !urgency.Valid() {
		urgency = domain.UrgencyMedium
	}
	return urgency, nil
}

// Generate drafts a reply for the message.
func (c *Client) Generate(ctx context.Context, msg domain.EmailMessage) (domain.DraftReply, error) {
	content, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.generateSystemPrompt()},
			{Role: "user", Content: generatePrompt(msg)},
		},
		MaxTokens:      c.maxTokens,
		Temperature:    0.7,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return domain.DraftReply{}, fmt.Errorf("generate response: %w", err)
	}

	var result struct {
		ResponseText        string  `json:"response_text"`
		ConfidenceScore     float64 `json:"confidence_score"`
		Reasoning           string  `json:"reasoning"`
		SuggestedUrgency    int     `json:"suggested_urgency"`
		RequiresHumanReview bool    `json:"requires_human_review"`
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return domain.DraftReply{}, fmt.Errorf("decode generated response: %w", err)
	}
	if result.ResponseText == "" {
		return domain.DraftReply{}, fmt.Errorf("model returned an empty response text")
	}

	suggested := domain.Urgency(result.SuggestedUrgency)
	if !suggested.Valid() {
		suggested = domain.UrgencyMedium
	}

	return domain.DraftReply{
		MessageID:        msg.MessageID,
		Text:             result.ResponseText,
		Confidence:       clamp01(result.ConfidenceScore),
		Reasoning:        result.Reasoning,
		SuggestedUrgency: suggested,
		RequiresReview:   result.RequiresHumanReview,
		CreatedAt:        time.Now(),
	}, nil
}

// Fallback produces a generic acknowledgement reply. Pure templating, no
// network; always safe when the timeout path or a generation failure needs it.
func (c *Client) Fallback(msg domain.EmailMessage) domain.DraftReply {
	name := msg.Sender
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}

	text := fmt.Sprintf(`Subject: Re: %s

Dear %s,

Thank you for your email regarding %q.

We have received your message and are currently processing your request. Our team will review your inquiry and respond as soon as possible.

If this is an urgent matter, please contact us directly at %s.

We appreciate your patience and look forward to assisting you.

Best regards,
Customer Service Team
%s
`, msg.Subject, name, msg.Subject, c.fromAddress, c.fromAddress)

	return domain.DraftReply{
		MessageID:        msg.MessageID,
		Text:             text,
		Confidence:       0.9,
		Reasoning:        "Generic acknowledgement used when no reviewed reply is available",
		SuggestedUrgency: domain.UrgencyMedium,
		RequiresReview:   false,
		CreatedAt:        time.Now(),
	}
}

// Ping performs a minimal completion to verify API reachability.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.complete(ctx, chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("openai ping: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, request chatRequest) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("openai client misconfigured")
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) generateSystemPrompt() string {
	tone := c.tone
	if tone == "" {
		tone = "professional"
	}
	return fmt.Sprintf(`You are a professional email response assistant. Generate appropriate, helpful, and %s email responses.

GUIDELINES:
- Be %s and courteous
- Address the sender's concerns directly
- Provide helpful information or next steps
- Keep responses concise but complete
- Use proper email etiquette
- Avoid making promises you can't keep
- If unsure, suggest contacting support directly

RESPONSE FORMAT:
- Use proper email structure (greeting, body, closing)
- Start the response with a "Subject:" line
- End with an appropriate signature`, tone, tone)
}

func classifyPrompt(msg domain.EmailMessage) string {
	return fmt.Sprintf(`Analyze the following email and determine its urgency level on a scale of 1-5.

URGENCY SCALE:
1 - Very Low: General inquiries, newsletters, promotional content
2 - Low: Routine business communications, scheduling requests
3 - Medium: Standard customer service requests, general questions
4 - High: Time-sensitive issues, complaints, urgent business matters
5 - Urgent: Critical issues, security concerns, immediate action required

EMAIL DETAILS:
From: %s
Subject: %s
Received: %s

EMAIL CONTENT:
%s

Respond with a JSON object containing:
- "urgency": integer from 1-5
- "reasoning": brief explanation of why this urgency level was chosen

Consider time sensitivity, customer impact, business criticality, emotional tone, and security implications.`,
		msg.Sender, msg.Subject, msg.ReceivedAt.Format("2006-01-02 15:04:05"), msg.Body)
}

func generatePrompt(msg domain.EmailMessage) string {
	return fmt.Sprintf(`Generate an appropriate email response for the following message.

ORIGINAL EMAIL:
From: %s
Subject: %s
Received: %s
Urgency Level: %d/5

CONTENT:
%s

Respond with a JSON object containing:
- "response_text": the complete email response (including a Subject line)
- "confidence_score": float between 0-1 indicating confidence in the response
- "reasoning": brief explanation of the response approach
- "suggested_urgency": integer 1-5 for the response urgency
- "requires_human_review": boolean indicating if human review is needed`,
		msg.Sender, msg.Subject, msg.ReceivedAt.Format("2006-01-02 15:04:05"), msg.Urgency, msg.Body)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
