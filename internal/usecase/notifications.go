package usecase

import (
	"fmt"
	"time"

	"EmailAutomation/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

func escalationNotice(msg domain.EmailMessage, timeout time.Duration) string {
	return fmt.Sprintf(`URGENT EMAIL REQUIRES IMMEDIATE ATTENTION

*From:* %s
*Subject:* %s
*Received:* %s
*Urgency Level:* %d (%s)

*Message Preview:*
%s

*Message ID:* %s

Please respond within %d minutes or an automated fallback response will be sent.`,
		msg.Sender,
		msg.Subject,
		msg.ReceivedAt.Format(timeLayout),
		msg.Urgency,
		msg.Urgency,
		preview(msg.Body, 200),
		msg.MessageID,
		int(timeout.Minutes()),
	)
}

func approvalRequest(msg domain.EmailMessage, draft domain.DraftReply, timeout time.Duration) string {
	return fmt.Sprintf(`EMAIL RESPONSE REQUIRES APPROVAL

*From:* %s
*Subject:* %s
*Received:* %s

*Original Message:*
%s

*Proposed Response:*
%s

*Confidence Score:* %.2f
*Reasoning:* %s

*Message ID:* %s

Please approve or reject this response within %d minutes.`,
		msg.Sender,
		msg.Subject,
		msg.ReceivedAt.Format(timeLayout),
		preview(msg.Body, 300),
		draft.Text,
		draft.Confidence,
		draft.Reasoning,
		msg.MessageID,
		int(timeout.Minutes()),
	)
}

func rejectionNotice(msg domain.EmailMessage, approvedBy, comments string) string {
	return fmt.Sprintf("Response for email %s was rejected by %s. Comments: %s",
		msg.MessageID, approvedBy, comments)
}

func timeoutNotice(msg domain.EmailMessage) string {
	return fmt.Sprintf("No decision arrived in time for email %s from %s; an automated fallback response was sent.",
		msg.MessageID, msg.Sender)
}

func escalationClosedNotice(msg domain.EmailMessage, approvedBy string) string {
	return fmt.Sprintf("Escalated email %s was marked handled by %s; no automated reply will be sent.",
		msg.MessageID, approvedBy)
}

func overflowNotice(msg domain.EmailMessage) string {
	return fmt.Sprintf("Pending decision table is at capacity; email %s from %s received the fallback response without review.",
		msg.MessageID, msg.Sender)
}

func preview(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}
