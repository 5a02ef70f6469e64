package scheduler

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/status"
)

func TestRegisterRejectsZeroPeriod(t *testing.T) {
	s := New()
	if st := s.Register(func() {}, 0); st != status.InvalidParam {
		t.Fatalf("expected InvalidParam, got %v", st)
	}
}

func TestRegisterFullTableReturnsNoMemory(t *testing.T) {
	s := New()
	for i := 0; i < MaxJobs; i++ {
		if st := s.Register(func() {}, 100); st != status.OK {
			t.Fatalf("unexpected failure at job %d: %v", i, st)
		}
	}
	if st := s.Register(func() {}, 100); st != status.NoMemory {
		t.Fatalf("expected NoMemory, got %v", st)
	}
}

func TestStepFiresJobOnDeadlineAndPreservesCadence(t *testing.T) {
	s := New()
	fires := 0
	s.Register(func() { fires++ }, 100)

	s.Step(100)
	if fires != 1 {
		t.Fatalf("expected 1 fire at t=100, got %d", fires)
	}
	s.Step(50)
	if fires != 1 {
		t.Fatalf("expected still 1 fire at t=150, got %d", fires)
	}
	s.Step(60)
	if fires != 2 {
		t.Fatalf("expected 2 fires at t=210 (deadline preserved at 200, not reset to 260), got %d", fires)
	}
}

func TestStepIsNotReentrant(t *testing.T) {
	s := New()
	var inner int
	s.Register(func() {
		// Attempting to step from within a job must be a silent no-op.
		s.Step(1)
		inner++
	}, 100)

	s.Step(100)
	if inner != 1 {
		t.Fatalf("expected the outer job to fire exactly once, got %d", inner)
	}
}
