package usecase

import (
	"errors"
	"sync"
	"time"

	"EmailAutomation/internal/domain"
)

var (
	errPendingFull      = errors.New("pending decision table is full")
	errDuplicatePending = errors.New("message already has a pending decision")
)

// PendingDecision is the coordination record for a message awaiting a human
// decision. The fallback reply is populated eagerly at creation so the timeout
// path never depends on a live external call. Read-only after creation;
// resolution happens by atomic removal, never by field mutation.
type PendingDecision struct {
	MessageID string
	Message   domain.EmailMessage
	Draft     *domain.DraftReply // nil for pure escalations
	Fallback  domain.DraftReply
	CreatedAt time.Time
	Deadline  time.Time
}

// pendingTable serializes all access to in-flight decisions. Insert, lookup,
// and removal are each atomic with respect to one another; callers must never
// hold the lock across an external call, so every method returns before any
// side effect is performed.
type pendingTable struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*PendingDecision
}

func newPendingTable(capacity int) *pendingTable {
	if capacity <= 0 {
		capacity = 256
	}
	return &pendingTable{
		capacity: capacity,
		entries:  make(map[string]*PendingDecision),
	}
}

func (t *pendingTable) insert(d *PendingDecision) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[d.MessageID]; ok {
		return errDuplicatePending
	}
	if len(t.entries) >= t.capacity {
		return errPendingFull
	}

	t.entries[d.MessageID] = d
	return nil
}

// remove is the single serialization point for resolution: check-and-delete
// as one atomic step, so only one caller ever observes a given entry.
func (t *pendingTable) remove(id string) (*PendingDecision, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	delete(t.entries, id)
	return d, true
}

// takeExpired atomically collects and deletes every entry whose deadline has
// elapsed as of now.
func (t *pendingTable) takeExpired(now time.Time) []*PendingDecision {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []*PendingDecision
	for id, d := range t.entries {
		if now.After(d.Deadline) {
			expired = append(expired, d)
			delete(t.entries, id)
		}
	}
	return expired
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
