package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"EmailAutomation/internal/domain"
	"EmailAutomation/internal/metrics"
	"EmailAutomation/internal/ports"
)

const probeTimeout = 5 * time.Second

// Options tune routing thresholds and the background loop cadences.
type Options struct {
	UrgencyThreshold domain.Urgency
	ApprovalTimeout  time.Duration
	PollInterval     time.Duration
	SweepInterval    time.Duration
	MaxPending       int
	Policy           PolicyConfig
}

func (o Options) withDefaults() Options {
	if o.UrgencyThreshold == 0 {
		o.UrgencyThreshold = domain.UrgencyHigh
	}
	if o.ApprovalTimeout <= 0 {
		o.ApprovalTimeout = 10 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
	return o
}

// ProcessorDeps wires all driven adapters into the orchestration core.
type ProcessorDeps struct {
	Fetcher    ports.Fetcher
	Classifier ports.Classifier
	Generator  ports.Generator
	Notifier   ports.Notifier
	Responder  ports.Responder
	Repository ports.Repository
	Logger     *slog.Logger
}

// Processor is the workflow engine: it runs the polling and sweeping loops,
// routes each inbound message, and owns all in-flight decision state.
type Processor struct {
	opts       Options
	fetcher    ports.Fetcher
	classifier ports.Classifier
	generator  ports.Generator
	notifier   ports.Notifier
	responder  ports.Responder
	repository ports.Repository
	logger     *slog.Logger

	pending   *pendingTable
	stats     stats
	startedAt time.Time
	running   atomic.Bool
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewProcessor constructs the orchestration core.
func NewProcessor(opts Options, deps ProcessorDeps) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		opts:       opts.withDefaults(),
		fetcher:    deps.Fetcher,
		classifier: deps.Classifier,
		generator:  deps.Generator,
		notifier:   deps.Notifier,
		responder:  deps.Responder,
		repository: deps.Repository,
		logger:     logger,
		pending:    newPendingTable(opts.MaxPending),
	}
}

// Start probes every collaborator and launches the polling and sweeping
// loops. A failed probe aborts startup; the core never partially starts.
func (p *Processor) Start(ctx context.Context) error {
	if p.running.Load() {
		return nil
	}

	if err := p.testConnections(ctx); err != nil {
		return fmt.Errorf("startup connection test: %w", err)
	}

	p.startedAt = time.Now()
	p.stop = make(chan struct{})
	p.running.Store(true)

	p.wg.Add(2)
	go p.pollLoop(ctx)
	go p.sweepLoop(ctx)

	p.logger.Info("email automation started",
		"poll_interval", p.opts.PollInterval,
		"sweep_interval", p.opts.SweepInterval,
		"urgency_threshold", int(p.opts.UrgencyThreshold))
	return nil
}

// Stop signals both loops, waits for them to exit at their next safe point,
// and releases the mailbox connection. In-flight pending decisions are
// abandoned in memory.
func (p *Processor) Stop() {
	if !p.running.Load() {
		return
	}
	p.running.Store(false)
	close(p.stop)
	p.wg.Wait()

	if err := p.fetcher.Close(); err != nil {
		p.logger.Warn("closing fetcher", "error", err)
	}
	p.logger.Info("email automation stopped", "abandoned_pending", p.pending.len())
}

func (p *Processor) testConnections(ctx context.Context) error {
	probes := []struct {
		name string
		ping func(context.Context) error
	}{
		{"imap", p.fetcher.Ping},
		{"smtp", p.responder.Ping},
		{"openai", p.classifier.Ping},
		{"google_chat", p.notifier.Ping},
	}

	for _, probe := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := probe.ping(probeCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w", probe.name, err)
		}
		p.logger.Info("connection test passed", "collaborator", probe.name)
	}
	return nil
}

func (p *Processor) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		}
	}
}

func (p *Processor) pollOnce(ctx context.Context) {
	msgs, err := p.fetcher.Poll(ctx)
	if err != nil {
		p.logger.Warn("polling mailbox", "error", err)
		p.stats.incErrors()
		metrics.CollaboratorErrors.WithLabelValues("imap").Inc()
		return
	}

	for _, msg := range msgs {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		if _, err := p.ProcessMessage(ctx, msg); err != nil {
			p.logger.Error("processing message", "message_id", msg.MessageID, "error", err)
		}
	}
}

// ProcessMessage routes one inbound message: classify, then branch on urgency
// into escalation, approval-gated reply, or direct auto-reply.
func (p *Processor) ProcessMessage(ctx context.Context, msg domain.EmailMessage) (domain.Outcome, error) {
	p.logger.Info("processing message", "message_id", msg.MessageID, "sender", msg.Sender)
	p.stats.incProcessed()
	metrics.MessagesProcessed.Inc()

	urgency, err := p.classifier.Classify(ctx, msg)
	if err != nil || !urgency.Valid() {
		if err != nil {
			p.logger.Warn("classification failed, defaulting to medium urgency",
				"message_id", msg.MessageID, "error", err)
			p.stats.incErrors()
			metrics.CollaboratorErrors.WithLabelValues("openai").Inc()
		}
		urgency = domain.UrgencyMedium
	}
	msg.Urgency = urgency
	p.logger.Info("message classified", "message_id", msg.MessageID, "urgency", urgency.String())

	if urgency >= p.opts.UrgencyThreshold {
		return p.escalate(ctx, msg)
	}
	return p.reply(ctx, msg)
}

// escalate routes a high-urgency message to a human with no draft attached.
func (p *Processor) escalate(ctx context.Context, msg domain.EmailMessage) (domain.Outcome, error) {
	fallback := p.generator.Fallback(msg)

	now := time.Now()
	entry := &PendingDecision{
		MessageID: msg.MessageID,
		Message:   msg,
		Fallback:  fallback,
		CreatedAt: now,
		Deadline:  now.Add(p.opts.ApprovalTimeout),
	}
	if err := p.pending.insert(entry); err != nil {
		return p.handleInsertFailure(ctx, msg, fallback, err)
	}
	metrics.PendingDecisions.Set(float64(p.pending.len()))

	p.stats.incEscalated()
	metrics.MessagesRouted.WithLabelValues(string(domain.OutcomeEscalated)).Inc()

	if err := p.notifier.Notify(ctx, escalationNotice(msg, p.opts.ApprovalTimeout)); err != nil {
		p.logger.Error("sending escalation notice", "message_id", msg.MessageID, "error", err)
		p.stats.incErrors()
		metrics.CollaboratorErrors.WithLabelValues("google_chat").Inc()
	}

	p.recordOutcome(ctx, msg, domain.OutcomeEscalated)
	return domain.OutcomePending, nil
}

// reply drafts a response and either sends it directly or parks it behind a
// human approval, depending on policy and generator confidence.
func (p *Processor) reply(ctx context.Context, msg domain.EmailMessage) (domain.Outcome, error) {
	draft, err := p.generator.Generate(ctx, msg)
	if err != nil {
		p.logger.Warn("generation failed, using fallback draft",
			"message_id", msg.MessageID, "error", err)
		p.stats.incErrors()
		metrics.CollaboratorErrors.WithLabelValues("openai").Inc()

		draft = p.generator.Fallback(msg)
		draft.RequiresReview = true
	}

	if RequiresApproval(msg.Sender, p.opts.Policy) || draft.RequiresReview {
		return p.requestApproval(ctx, msg, draft)
	}

	if err := p.responder.Send(ctx, msg, draft); err != nil {
		p.stats.incErrors()
		metrics.CollaboratorErrors.WithLabelValues("smtp").Inc()
		return "", fmt.Errorf("sending auto-reply for %s: %w", msg.MessageID, err)
	}

	p.stats.incAutoReplied()
	metrics.MessagesRouted.WithLabelValues(string(domain.OutcomeAutoReplied)).Inc()
	p.recordOutcome(ctx, msg, domain.OutcomeAutoReplied)
	return domain.OutcomeAutoReplied, nil
}

func (p *Processor) requestApproval(ctx context.Context, msg domain.EmailMessage, draft domain.DraftReply) (domain.Outcome, error) {
	fallback := p.generator.Fallback(msg)

	now := time.Now()
	entry := &PendingDecision{
		MessageID: msg.MessageID,
		Message:   msg,
		Draft:     &draft,
		Fallback:  fallback,
		CreatedAt: now,
		Deadline:  now.Add(p.opts.ApprovalTimeout),
	}
	if err := p.pending.insert(entry); err != nil {
		return p.handleInsertFailure(ctx, msg, fallback, err)
	}
	metrics.PendingDecisions.Set(float64(p.pending.len()))

	if err := p.notifier.RequestApproval(ctx, approvalRequest(msg, draft, p.opts.ApprovalTimeout), msg.MessageID); err != nil {
		p.logger.Error("sending approval request", "message_id", msg.MessageID, "error", err)
		p.stats.incErrors()
		metrics.CollaboratorErrors.WithLabelValues("google_chat").Inc()
	}

	p.recordOutcome(ctx, msg, domain.OutcomePending)
	return domain.OutcomePending, nil
}

// handleInsertFailure is the overflow policy: when the table is full the
// message gets the precomputed fallback immediately instead of untracked
// pending state. A duplicate insert means the message is already in flight.
func (p *Processor) handleInsertFailure(ctx context.Context, msg domain.EmailMessage, fallback domain.DraftReply, cause error) (domain.Outcome, error) {
	if errors.Is(cause, errDuplicatePending) {
		p.logger.Warn("message already pending", "message_id", msg.MessageID)
		return domain.OutcomePending, nil
	}

	p.logger.Warn("pending table at capacity, sending fallback immediately",
		"message_id", msg.MessageID, "error", cause)
	p.stats.incErrors()

	if err := p.responder.Send(ctx, msg, fallback); err != nil {
		p.stats.incErrors()
		metrics.CollaboratorErrors.WithLabelValues("smtp").Inc()
		return "", fmt.Errorf("sending overflow fallback for %s: %w", msg.MessageID, err)
	}

	if err := p.notifier.Notify(ctx, overflowNotice(msg)); err != nil {
		p.logger.Error("sending overflow notice", "message_id", msg.MessageID, "error", err)
	}

	metrics.MessagesRouted.WithLabelValues(string(domain.OutcomeFallback)).Inc()
	p.recordOutcome(ctx, msg, domain.OutcomeFallback)
	return domain.OutcomeFallback, nil
}

func (p *Processor) sweepLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweepExpired(ctx, time.Now())
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		}
	}
}

// sweepExpired resolves every pending decision whose deadline has elapsed as
// of now by dispatching its precomputed fallback. Entries already removed by
// a concurrent approval are never observed here; removal is atomic.
func (p *Processor) sweepExpired(ctx context.Context, now time.Time) {
	expired := p.pending.takeExpired(now)
	if len(expired) == 0 {
		return
	}
	metrics.PendingDecisions.Set(float64(p.pending.len()))

	for _, entry := range expired {
		p.logger.Info("approval timed out, sending fallback",
			"message_id", entry.MessageID, "deadline", entry.Deadline)
		p.stats.incTimedOut()
		metrics.MessagesRouted.WithLabelValues(string(domain.OutcomeTimedOut)).Inc()

		if err := p.responder.Send(ctx, entry.Message, entry.Fallback); err != nil {
			p.logger.Error("sending timeout fallback", "message_id", entry.MessageID, "error", err)
			p.stats.incErrors()
			metrics.CollaboratorErrors.WithLabelValues("smtp").Inc()
		}

		if err := p.notifier.Notify(ctx, timeoutNotice(entry.Message)); err != nil {
			p.logger.Error("sending timeout notice", "message_id", entry.MessageID, "error", err)
		}

		p.recordOutcome(ctx, entry.Message, domain.OutcomeTimedOut)
	}
}

// Resolve applies an operator decision to a pending entry. It returns false
// when no such entry exists (already resolved or never created), which is a
// normal outcome, not a failure. The removal itself is the serialization
// point: at most one of Resolve and the sweeper acts on a given key.
func (p *Processor) Resolve(ctx context.Context, messageID string, approved bool, approvedBy, comments string) bool {
	entry, ok := p.pending.remove(messageID)
	if !ok {
		p.logger.Warn("no pending decision for message", "message_id", messageID)
		return false
	}
	metrics.PendingDecisions.Set(float64(p.pending.len()))

	p.logger.Info("processing approval decision",
		"message_id", messageID, "approved", approved, "approved_by", approvedBy)

	if !approved {
		p.stats.incDenied()
		metrics.MessagesRouted.WithLabelValues(string(domain.OutcomeRejected)).Inc()
		if err := p.notifier.Notify(ctx, rejectionNotice(entry.Message, approvedBy, comments)); err != nil {
			p.logger.Error("sending rejection notice", "message_id", messageID, "error", err)
		}
		p.recordOutcome(ctx, entry.Message, domain.OutcomeRejected)
		return true
	}

	p.stats.incApproved()
	metrics.MessagesRouted.WithLabelValues(string(domain.OutcomeApproved)).Inc()

	if entry.Draft != nil {
		if err := p.responder.Send(ctx, entry.Message, *entry.Draft); err != nil {
			p.logger.Error("sending approved reply", "message_id", messageID, "error", err)
			p.stats.incErrors()
			metrics.CollaboratorErrors.WithLabelValues("smtp").Inc()
		}
	} else {
		// Escalation entries carry no draft: the approver replied out of band.
		if err := p.notifier.Notify(ctx, escalationClosedNotice(entry.Message, approvedBy)); err != nil {
			p.logger.Error("sending escalation-closed notice", "message_id", messageID, "error", err)
		}
	}

	p.recordOutcome(ctx, entry.Message, domain.OutcomeApproved)
	return true
}

func (p *Processor) recordOutcome(ctx context.Context, msg domain.EmailMessage, outcome domain.Outcome) {
	if p.repository == nil {
		return
	}
	rec := domain.ProcessedMessage{
		MessageID:   msg.MessageID,
		Sender:      msg.Sender,
		Subject:     msg.Subject,
		Urgency:     msg.Urgency,
		Outcome:     outcome,
		ProcessedAt: time.Now(),
	}
	if err := p.repository.SaveProcessed(ctx, rec); err != nil {
		p.logger.Warn("recording outcome", "message_id", msg.MessageID, "error", err)
	}
}

// Status probes each collaborator with a bounded timeout and reports the
// results alongside uptime and aggregate counters. Read-only.
func (p *Processor) Status(ctx context.Context) domain.SystemStatus {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	st := domain.SystemStatus{
		Running:      p.running.Load(),
		PendingCount: p.pending.len(),
	}
	st.IMAP = p.fetcher.Ping(probeCtx) == nil
	st.SMTP = p.responder.Ping(probeCtx) == nil
	st.OpenAI = p.classifier.Ping(probeCtx) == nil
	st.GoogleChat = p.notifier.Ping(probeCtx) == nil

	if !p.startedAt.IsZero() {
		st.Uptime = time.Since(p.startedAt)
	}

	snap := p.stats.snapshot()
	st.Processed = snap.Processed
	st.ResponsesSent = snap.AutoReplied + snap.Escalated
	st.Errors = snap.Errors
	return st
}

// Stats returns the counters with the success rate recomputed on each call.
func (p *Processor) Stats() domain.ProcessingStats {
	return p.stats.snapshot()
}
