package telemetry

import (
	"testing"

	"github.com/octoreflex/fswsupervisor/internal/ccsds"
	"github.com/octoreflex/fswsupervisor/internal/clock"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/status"
)

func newFixture() *Pipeline {
	sim := platform.NewSim()
	return New(clock.New(sim))
}

func TestQueueFillAndCriticalPreemption(t *testing.T) {
	p := newFixture()
	for i := 0; i < QueueCapacity; i++ {
		if st := p.QueuePacket([]byte{byte(i)}, Normal); st != status.OK {
			t.Fatalf("unexpected failure filling slot %d: %v", i, st)
		}
	}
	if p.QueueCount() != QueueCapacity {
		t.Fatalf("expected full queue, got count %d", p.QueueCount())
	}

	if st := p.QueuePacket([]byte{0xFF}, Critical); st != status.OK {
		t.Fatalf("expected Critical packet to evict a Normal entry, got %v", st)
	}
	if p.QueueCount() != QueueCapacity {
		t.Fatalf("expected queue still full after eviction, got %d", p.QueueCount())
	}

	pkt, pr, ok := p.DequeuePacket()
	if !ok || pr != Critical || pkt[0] != 0xFF {
		t.Fatalf("expected Critical packet dequeued first, got %v pr=%v ok=%v", pkt, pr, ok)
	}
}

func TestQueueFullAtNormalPriorityOverflows(t *testing.T) {
	p := newFixture()
	for i := 0; i < QueueCapacity; i++ {
		p.QueuePacket([]byte{byte(i)}, Normal)
	}
	if st := p.QueuePacket([]byte{0xAA}, Normal); st != status.Overflow {
		t.Fatalf("expected Overflow, got %v", st)
	}
	if p.QueueOverflows() != 1 {
		t.Fatalf("expected overflow counter 1, got %d", p.QueueOverflows())
	}
}

func TestDisableThenEnableLeavesDefinitionEnabled(t *testing.T) {
	p := newFixture()
	h, _ := p.Register(TmDefinition{Apid: ccsds.Health, Service: 3, Subtype: 25, PeriodMs: 1000, Priority: Normal})
	p.Disable(h)
	p.Enable(h)
	if !p.definitions[h].enabled {
		t.Fatalf("expected definition enabled after disable then enable")
	}
}

func TestPeriodicFiresDueDefinitionAndQueuesPacket(t *testing.T) {
	p := newFixture()
	calls := 0
	p.Register(TmDefinition{
		Apid:      ccsds.Power,
		Service:   3,
		Subtype:   25,
		PeriodMs:  1000,
		Priority:  High,
		Generator: func() []byte { calls++; return []byte{0x01} },
	})

	p.Periodic(1000)
	if calls != 1 {
		t.Fatalf("expected generator called once at t=1000, got %d", calls)
	}
	if p.QueueCount() != 1 {
		t.Fatalf("expected one packet queued, got %d", p.QueueCount())
	}

	p.Periodic(1500)
	if calls != 1 {
		t.Fatalf("expected generator not called before period elapses, got %d", calls)
	}
}

func TestSendEventQueuesHighPriorityPacket(t *testing.T) {
	p := newFixture()
	if st := p.SendEvent(7, []byte{0x01}); st != status.OK {
		t.Fatalf("SendEvent failed: %v", st)
	}
	_, pr, ok := p.DequeuePacket()
	if !ok || pr != High {
		t.Fatalf("expected a High priority event packet, got pr=%v ok=%v", pr, ok)
	}
}
