package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EmailAutomation/internal/config"
	"EmailAutomation/internal/domain"
)

func testClient(endpoint string) *Client {
	return NewClient(config.OpenAIConfig{
		Endpoint:          endpoint,
		Model:             "gpt-4o",
		APIKey:            "test-key",
		MaxResponseTokens: 500,
		ResponseTone:      "professional",
	}, "support@corp.example")
}

func completionServer(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func sampleMessage() domain.EmailMessage {
	return domain.EmailMessage{
		MessageID:  "msg-1",
		Sender:     "customer@example.com",
		Subject:    "Refund request",
		Body:       "I would like a refund for order 1234.",
		ReceivedAt: time.Now(),
		Urgency:    domain.UrgencyMedium,
	}
}

func TestClassify(t *testing.T) {
	var captured chatRequest
	srv := completionServer(t, `{"urgency": 4, "reasoning": "customer complaint"}`, &captured)
	defer srv.Close()

	urgency, err := testClient(srv.URL).Classify(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, domain.UrgencyHigh, urgency)

	assert.Equal(t, "gpt-4o", captured.Model)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	require.Len(t, captured.Messages, 2)
	assert.Contains(t, captured.Messages[1].Content, "Refund request")
}

func TestClassifyClampsOutOfRangeScore(t *testing.T) {
	srv := completionServer(t, `{"urgency": 9, "reasoning": "overexcited model"}`, nil)
	defer srv.Close()

	urgency, err := testClient(srv.URL).Classify(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, domain.UrgencyMedium, urgency)
}

func TestClassifyMalformedPayload(t *testing.T) {
	srv := completionServer(t, `not json at all`, nil)
	defer srv.Close()

	_, err := testClient(srv.URL).Classify(context.Background(), sampleMessage())
	require.Error(t, err)
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Classify(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGenerate(t *testing.T) {
	var captured chatRequest
	content := `{
		"response_text": "Subject: Re: Refund request\n\nDear customer, your refund is on its way.",
		"confidence_score": 0.85,
		"reasoning": "standard refund acknowledgement",
		"suggested_urgency": 2,
		"requires_human_review": false
	}`
	srv := completionServer(t, content, &captured)
	defer srv.Close()

	draft, err := testClient(srv.URL).Generate(context.Background(), sampleMessage())
	require.NoError(t, err)

	assert.Equal(t, "msg-1", draft.MessageID)
	assert.Contains(t, draft.Text, "your refund is on its way")
	assert.InDelta(t, 0.85, draft.Confidence, 0.001)
	assert.Equal(t, domain.UrgencyLow, draft.SuggestedUrgency)
	assert.False(t, draft.RequiresReview)
	assert.Equal(t, 500, captured.MaxTokens)
}

func TestGenerateFlagsReview(t *testing.T) {
	content := `{"response_text": "Escalating.", "confidence_score": 1.7, "suggested_urgency": 0, "requires_human_review": true}`
	srv := completionServer(t, content, nil)
	defer srv.Close()

	draft, err := testClient(srv.URL).Generate(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.True(t, draft.RequiresReview)
	assert.Equal(t, 1.0, draft.Confidence)
	assert.Equal(t, domain.UrgencyMedium, draft.SuggestedUrgency)
}

func TestGenerateRejectsEmptyText(t *testing.T) {
	srv := completionServer(t, `{"response_text": "", "confidence_score": 0.5}`, nil)
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), sampleMessage())
	require.Error(t, err)
}

func TestFallbackNeedsNoNetwork(t *testing.T) {
	// endpoint deliberately unreachable
	client := testClient("http://127.0.0.1:1")

	draft := client.Fallback(sampleMessage())
	assert.Equal(t, "msg-1", draft.MessageID)
	assert.Contains(t, draft.Text, "Dear customer")
	assert.Contains(t, draft.Text, "Refund request")
	assert.Contains(t, draft.Text, "support@corp.example")
	assert.InDelta(t, 0.9, draft.Confidence, 0.001)
	assert.False(t, draft.RequiresReview)
}

func TestPing(t *testing.T) {
	srv := completionServer(t, "pong", nil)
	defer srv.Close()

	assert.NoError(t, testClient(srv.URL).Ping(context.Background()))
	assert.Error(t, testClient("http://127.0.0.1:1").Ping(context.Background()))
}

func TestMisconfiguredClient(t *testing.T) {
	client := NewClient(config.OpenAIConfig{}, "support@corp.example")
	_, err := client.Classify(context.Background(), sampleMessage())
	require.Error(t, err)
}
