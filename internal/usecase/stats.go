package usecase

import (
	"sync"

	"EmailAutomation/internal/domain"
)

// stats guards the monotonically-incrementing counters. The derived success
// rate is recomputed on every snapshot, never stored.
type stats struct {
	mu          sync.Mutex
	processed   int64
	autoReplied int64
	escalated   int64
	approved    int64
	denied      int64
	timedOut    int64
	errors      int64
}

func (s *stats) incProcessed()   { s.inc(&s.processed) }
func (s *stats) incAutoReplied() { s.inc(&s.autoReplied) }
func (s *stats) incEscalated()   { s.inc(&s.escalated) }
func (s *stats) incApproved()    { s.inc(&s.approved) }
func (s *stats) incDenied()      { s.inc(&s.denied) }
func (s *stats) incTimedOut()    { s.inc(&s.timedOut) }
func (s *stats) incErrors()      { s.inc(&s.errors) }

func (s *stats) inc(counter *int64) {
	s.mu.Lock()
	*counter++
	s.mu.Unlock()
}

func (s *stats) snapshot() domain.ProcessingStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.ProcessingStats{
		Processed:   s.processed,
		AutoReplied: s.autoReplied,
		Escalated:   s.escalated,
		Approved:    s.approved,
		Denied:      s.denied,
		TimedOut:    s.timedOut,
		Errors:      s.errors,
	}
	if snap.Processed > 0 {
		snap.SuccessRate = float64(snap.AutoReplied+snap.Escalated) / float64(snap.Processed) * 100
	}
	return snap
}
