package ports

import (
	"context"

	"EmailAutomation/internal/domain"
)

// Fetcher yields newly-arrived, not-yet-seen messages from the mailbox and
// marks them as consumed at the source.
type Fetcher interface {
	Poll(ctx context.Context) ([]domain.EmailMessage, error)
	Ping(ctx context.Context) error
	Close() error
}

// Classifier maps a message to an ordinal urgency score (1-5).
type Classifier interface {
	Classify(ctx context.Context, msg domain.EmailMessage) (domain.Urgency, error)
	Ping(ctx context.Context) error
}

// Generator drafts replies for inbound messages. Fallback must not depend on
// any network call succeeding; it is always safe to invoke.
type Generator interface {
	Generate(ctx context.Context, msg domain.EmailMessage) (domain.DraftReply, error)
	Fallback(msg domain.EmailMessage) domain.DraftReply
	Ping(ctx context.Context) error
}

// Notifier delivers alerts and interactive approve/reject prompts to the
// operator channel. The correlation ID on approval requests is the message ID.
type Notifier interface {
	Notify(ctx context.Context, text string) error
	RequestApproval(ctx context.Context, text, messageID string) error
	Ping(ctx context.Context) error
}

// Responder delivers a finished reply to the original sender.
type Responder interface {
	Send(ctx context.Context, msg domain.EmailMessage, reply domain.DraftReply) error
	Ping(ctx context.Context) error
}

// Repository records processed messages for restart-safe deduplication and audit.
type Repository interface {
	Seen(ctx context.Context, ids []string) (map[string]bool, error)
	SaveProcessed(ctx context.Context, rec domain.ProcessedMessage) error
	Ping(ctx context.Context) error
}
