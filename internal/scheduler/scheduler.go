// Package scheduler implements the cooperative periodic job table: a
// fixed table of (fn, period_ms, next_deadline_ms) slots
// advanced by a single step call, with no re-entrancy.
package scheduler

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/status"
)

// MaxJobs bounds the fixed job table.
const MaxJobs = 16

// Job is a registered periodic callback.
type Job func()

type slot struct {
	inUse        bool
	fn           Job
	periodMs     uint32
	nextDeadline uint32
}

// Scheduler owns the fixed job table and the single monotonic clock it
// is advanced against. Scheduler is last in the lock
// ordering hierarchy: it may call into any other component, but nothing
// may call back into it while holding a lock.
type Scheduler struct {
	mu       sync.Mutex
	jobs     [MaxJobs]slot
	nowMs    uint32
	stepping bool
}

// New creates an empty Scheduler with its clock at zero.
func New() *Scheduler {
	return &Scheduler{}
}

// Register adds fn to the job table with the given period, arming its
// first deadline at the current clock value plus periodMs. Returns
// status.InvalidParam if periodMs is zero, or status.NoMemory if the
// table is full.
func (s *Scheduler) Register(fn Job, periodMs uint32) status.Status {
	if periodMs == 0 {
		return status.InvalidParam
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if !s.jobs[i].inUse {
			s.jobs[i] = slot{
				inUse:        true,
				fn:           fn,
				periodMs:     periodMs,
				nextDeadline: s.nowMs + periodMs,
			}
			return status.OK
		}
	}
	return status.NoMemory
}

// Step advances the scheduler clock by elapsedMs and fires every job
// whose deadline has passed, in slot order. A fired job's next deadline
// is advanced by its period relative to its previous deadline, not to
// now, to preserve long-run cadence under jitter. Step
// refuses to run re-entrantly: a call made from within a running job's
// callback is a no-op.
func (s *Scheduler) Step(elapsedMs uint32) {
	s.mu.Lock()
	if s.stepping {
		s.mu.Unlock()
		return
	}
	s.stepping = true
	s.nowMs += elapsedMs
	now := s.nowMs
	s.mu.Unlock()

	for i := range s.jobs {
		s.mu.Lock()
		j := &s.jobs[i]
		if !j.inUse || now < j.nextDeadline {
			s.mu.Unlock()
			continue
		}
		fn := j.fn
		j.nextDeadline += j.periodMs
		s.mu.Unlock()

		fn()
	}

	s.mu.Lock()
	s.stepping = false
	s.mu.Unlock()
}

// NowMs returns the scheduler's own advancing clock.
func (s *Scheduler) NowMs() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowMs
}
