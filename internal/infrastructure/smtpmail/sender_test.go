package smtpmail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"EmailAutomation/internal/domain"
)

func TestSplitSubject(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		original    string
		wantSubject string
		wantBody    string
	}{
		{
			name:        "draft carries its own subject line",
			text:        "Subject: Re: Refund request\n\nDear customer, done.",
			original:    "Refund request",
			wantSubject: "Re: Refund request",
			wantBody:    "Dear customer, done.",
		},
		{
			name:        "plain draft reuses the original subject",
			text:        "Dear customer, done.",
			original:    "Refund request",
			wantSubject: "Re: Refund request",
			wantBody:    "Dear customer, done.",
		},
		{
			name:        "existing Re prefix is not doubled",
			text:        "body",
			original:    "Re: Refund request",
			wantSubject: "Re: Refund request",
			wantBody:    "body",
		},
		{
			name:        "lowercase re prefix is not doubled",
			text:        "body",
			original:    "re: refund",
			wantSubject: "re: refund",
			wantBody:    "body",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			subject, body := splitSubject(tc.text, tc.original)
			assert.Equal(t, tc.wantSubject, subject)
			assert.Equal(t, tc.wantBody, body)
		})
	}
}

func TestBuildReply(t *testing.T) {
	msg := domain.EmailMessage{
		MessageID:  "<orig-1@example.com>",
		Sender:     "customer@example.com",
		Subject:    "Order question",
		ReceivedAt: time.Now(),
	}
	reply := domain.DraftReply{
		MessageID: "<orig-1@example.com>",
		Text:      "Subject: Re: Order question\n\nLine one.\nLine two.",
	}

	raw := string(buildReply("support@corp.example", msg, reply))

	assert.Contains(t, raw, "From: support@corp.example\r\n")
	assert.Contains(t, raw, "To: customer@example.com\r\n")
	assert.Contains(t, raw, "Subject: Re: Order question\r\n")
	assert.Contains(t, raw, "In-Reply-To: <orig-1@example.com>\r\n")
	assert.Contains(t, raw, "References: <orig-1@example.com>\r\n")
	assert.Contains(t, raw, "Line one.\r\nLine two.")

	// headers and body are separated by exactly one blank line
	head, _, found := strings.Cut(raw, "\r\n\r\n")
	assert.True(t, found)
	assert.NotContains(t, head, "Line one.")
}
