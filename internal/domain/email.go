package domain

import "time"

// Urgency is the 1-5 ordinal urgency scale assigned by the classifier.
type Urgency int

const (
	UrgencyVeryLow Urgency = iota + 1
	UrgencyLow
	UrgencyMedium
	UrgencyHigh
	UrgencyUrgent
)

// Valid reports whether the urgency is inside the 1-5 scale.
func (u Urgency) Valid() bool {
	return u >= UrgencyVeryLow && u <= UrgencyUrgent
}

// String returns a human-readable name for operator notifications.
func (u Urgency) String() string {
	switch u {
	case UrgencyVeryLow:
		return "Very Low"
	case UrgencyLow:
		return "Low"
	case UrgencyMedium:
		return "Medium"
	case UrgencyHigh:
		return "High"
	case UrgencyUrgent:
		return "Urgent"
	default:
		return "Unknown"
	}
}

// Outcome enumerates how handling of a message ended (or that it is still pending).
type Outcome string

const (
	OutcomeAutoReplied Outcome = "auto_replied"
	OutcomeApproved    Outcome = "approved"
	OutcomeRejected    Outcome = "rejected"
	OutcomeTimedOut    Outcome = "timed_out"
	OutcomeEscalated   Outcome = "escalated"
	OutcomePending     Outcome = "pending"
	OutcomeFallback    Outcome = "fallback"
)

// EmailMessage is an inbound message as handed off by the fetcher.
// The zero Urgency means "not yet classified"; the empty Outcome means "not yet resolved".
type EmailMessage struct {
	MessageID  string
	Sender     string
	Recipient  string
	Subject    string
	Body       string
	HTMLBody   string
	ReceivedAt time.Time
	Urgency    Urgency
	Outcome    Outcome
}

// DraftReply is a candidate reply produced by the generator. Read-only once created.
type DraftReply struct {
	MessageID        string
	Text             string
	Confidence       float64
	Reasoning        string
	SuggestedUrgency Urgency
	RequiresReview   bool
	CreatedAt        time.Time
}

// ProcessedMessage is the audit record persisted once a message reaches an outcome.
type ProcessedMessage struct {
	MessageID   string
	Sender      string
	Subject     string
	Urgency     Urgency
	Outcome     Outcome
	ProcessedAt time.Time
}

// ProcessingStats are monotonically incremented counters plus a success rate
// that is recomputed on every read.
type ProcessingStats struct {
	Processed   int64
	AutoReplied int64
	Escalated   int64
	Approved    int64
	Denied      int64
	TimedOut    int64
	Errors      int64
	SuccessRate float64
}

// SystemStatus reports live collaborator connectivity plus aggregate counters.
type SystemStatus struct {
	Running       bool
	IMAP          bool
	SMTP          bool
	OpenAI        bool
	GoogleChat    bool
	Uptime        time.Duration
	Processed     int64
	ResponsesSent int64
	Errors        int64
	PendingCount  int
}
