package mode

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/status"
)

func TestRequestRejectsDisallowedTransition(t *testing.T) {
	m := NewManager(Nominal, nil, nil)
	if st := m.Request(Recovery); st != status.OK {
		t.Fatalf("Nominal->Recovery should be allowed, got status %v", st)
	}
	m.Process(0)
	if m.Current() != Recovery {
		t.Fatalf("expected Recovery, got %v", m.Current())
	}

	if st := m.Request(Boot); st != status.Permission {
		t.Fatalf("expected Permission rejecting Recovery->Boot, got %v", st)
	}
	if m.Current() != Recovery {
		t.Fatalf("current mode must be unchanged after a rejected request, got %v", m.Current())
	}
}

func TestForceBypassesAllowedTable(t *testing.T) {
	m := NewManager(Boot, nil, nil)
	m.Force(Nominal)
	m.Process(0)
	if m.Current() != Nominal {
		t.Fatalf("Force must bypass the allowed-transition table, got %v", m.Current())
	}
}

func TestForceIsIdempotent(t *testing.T) {
	m := NewManager(Boot, nil, nil)
	m.Force(Nominal)
	m.Process(0)
	m.Force(Nominal)
	m.Process(0)
	if m.Current() != Nominal || m.Previous() != Nominal {
		t.Fatalf("repeated force of the same mode must leave previous == current, got current=%v previous=%v",
			m.Current(), m.Previous())
	}
}

func TestProcessRunsEntryAndExitCallbacks(t *testing.T) {
	var entries, exits []SystemMode
	m := NewManager(Boot, func(sm SystemMode) {
		entries = append(entries, sm)
	}, func(sm SystemMode) {
		exits = append(exits, sm)
	})

	m.Request(Safe)
	m.Process(0)

	if len(exits) != 1 || exits[0] != Boot {
		t.Fatalf("expected exit callback for Boot, got %v", exits)
	}
	if len(entries) != 1 || entries[0] != Safe {
		t.Fatalf("expected entry callback for Safe, got %v", entries)
	}
	if m.Previous() != Boot {
		t.Fatalf("expected previous mode Boot, got %v", m.Previous())
	}
}

func TestDetumbleTimeoutForcesSafe(t *testing.T) {
	m := NewManager(Boot, nil, nil)
	m.Force(Detumble)
	m.Process(0)
	if m.Current() != Detumble {
		t.Fatalf("expected Detumble, got %v", m.Current())
	}

	m.Process(1799)
	if m.Current() != Detumble {
		t.Fatalf("timeout must not fire before 1800s elapsed, got %v at t=1799", m.Current())
	}

	m.Process(1800)
	if m.Current() != Safe {
		t.Fatalf("expected Detumble to time out into Safe, got %v", m.Current())
	}
}

func TestNoTransitionPendingIsNoOp(t *testing.T) {
	m := NewManager(Nominal, nil, nil)
	if m.TransitionPending() {
		t.Fatalf("fresh manager must not have a transition pending")
	}
	m.Process(1_000_000)
	if m.Current() != Nominal {
		t.Fatalf("Process with nothing pending and no timeout must be a no-op, got %v", m.Current())
	}
}
