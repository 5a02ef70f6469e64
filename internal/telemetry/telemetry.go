// Package telemetry implements the telemetry (TM) pipeline: periodic
// housekeeping report generation, a fixed priority queue, and event
// reporting.
package telemetry

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/ccsds"
	"github.com/octoreflex/fswsupervisor/internal/clock"
	"github.com/octoreflex/fswsupervisor/internal/status"
)

// MaxDefinitions and QueueCapacity are the fixed table sizes.
const (
	MaxDefinitions = 32
	QueueCapacity  = 16
)

// Priority orders queued TM packets; higher values preempt lower ones.
type Priority uint8

const (
	Low Priority = iota
	Normal
	High
	Critical
)

// Generator produces the data payload of one housekeeping report.
// Generators run on the scheduler thread and must not block, like
// mode entry/exit callbacks.
type Generator func() []byte

// TmDefinition is one registered periodic housekeeping report.
type TmDefinition struct {
	Apid       ccsds.Apid
	Service    uint8
	Subtype    uint8
	PeriodMs   uint32
	Priority   Priority
	Generator  Generator
	enabled    bool
	lastSentMs uint32
	inUse      bool
}

// TmHandle identifies a registered TmDefinition.
type TmHandle int

type queueEntry struct {
	valid    bool
	priority Priority
	packet   []byte
}

// Pipeline owns the registered definitions, the sequence counter, and
// the bounded priority queue. In lock order, Pipeline sits above EPS
// and below Telecommand.
type Pipeline struct {
	mu sync.Mutex

	clock       *clock.Clock
	seq         *ccsds.SequenceCounters
	definitions [MaxDefinitions]TmDefinition
	queue       [QueueCapacity]queueEntry

	queueOverflows uint64
	queueCount     int
}

// New creates an empty Pipeline backed by clk for timestamps.
func New(clk *clock.Clock) *Pipeline {
	return &Pipeline{clock: clk, seq: ccsds.NewSequenceCounters()}
}

// Register adds def to the table, enabled by default. Returns
// status.NoMemory if the table is full.
func (p *Pipeline) Register(def TmDefinition) (TmHandle, status.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.definitions {
		if !p.definitions[i].inUse {
			def.inUse = true
			def.enabled = true
			def.lastSentMs = 0
			p.definitions[i] = def
			return TmHandle(i), status.OK
		}
	}
	return TmHandle(-1), status.NoMemory
}

// Enable marks h's definition enabled.
func (p *Pipeline) Enable(h TmHandle) status.Status {
	return p.setEnabled(h, true)
}

// Disable marks h's definition disabled; Periodic skips it until
// re-enabled.
func (p *Pipeline) Disable(h TmHandle) status.Status {
	return p.setEnabled(h, false)
}

func (p *Pipeline) setEnabled(h TmHandle, v bool) status.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h < 0 || int(h) >= MaxDefinitions || !p.definitions[h].inUse {
		return status.InvalidParam
	}
	p.definitions[h].enabled = v
	return status.OK
}

// Periodic runs every enabled, due definition's generator (due once
// nowMs minus its last-sent time, which starts at 0, reaches PeriodMs),
// builds a housekeeping TM packet tagged with the definition's APID,
// Service and Subtype, and queues it at the definition's priority.
func (p *Pipeline) Periodic(nowMs uint32) {
	var fire []TmDefinition

	p.mu.Lock()
	for i := range p.definitions {
		d := &p.definitions[i]
		if !d.inUse || !d.enabled {
			continue
		}
		if nowMs-d.lastSentMs >= d.PeriodMs {
			d.lastSentMs = nowMs
			fire = append(fire, *d)
		}
	}
	p.mu.Unlock()

	// Generators run outside the lock: they may format arbitrarily
	// large housekeeping payloads and must not block other components.
	for _, def := range fire {
		var data []byte
		if def.Generator != nil {
			data = def.Generator()
		}
		coarse, fine := p.timestampParts()
		pkt := ccsds.BuildTM(ccsds.TmPacket{
			Apid:       def.Apid,
			Sequence:   p.seq.Next(def.Apid),
			CoarseTime: coarse,
			FineTime:   fine,
			Service:    def.Service,
			Subtype:    def.Subtype,
			Data:       data,
		})
		p.QueuePacket(pkt, def.Priority)
	}
}

func (p *Pipeline) timestampParts() (coarse uint32, fine uint16) {
	nowMs := p.clock.NowMs()
	return p.clock.NowS(), uint16(nowMs % 1000)
}

// QueuePacket enqueues a fully serialized wire packet at priority. If
// the queue is full and priority is High or above, the lowest-priority
// valid entry strictly below priority is evicted to make room;
// otherwise the overflow counter is incremented and status.Overflow is
// returned.
func (p *Pipeline) QueuePacket(wire []byte, priority Priority) status.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.queue {
		if !p.queue[i].valid {
			p.queue[i] = queueEntry{valid: true, priority: priority, packet: wire}
			p.queueCount++
			return status.OK
		}
	}

	if priority >= High {
		victim := -1
		for i := range p.queue {
			if p.queue[i].valid && p.queue[i].priority < priority {
				if victim == -1 || p.queue[i].priority < p.queue[victim].priority {
					victim = i
				}
			}
		}
		if victim != -1 {
			p.queue[victim] = queueEntry{valid: true, priority: priority, packet: wire}
			return status.OK
		}
	}

	p.queueOverflows++
	return status.Overflow
}

// DequeuePacket returns and removes the highest-priority valid queue
// entry. Ties are broken by scan index: the first valid entry found at
// the winning priority.
func (p *Pipeline) DequeuePacket() ([]byte, Priority, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	best := -1
	for i := range p.queue {
		if p.queue[i].valid && (best == -1 || p.queue[i].priority > p.queue[best].priority) {
			best = i
		}
	}
	if best == -1 {
		return nil, 0, false
	}
	pkt := p.queue[best].packet
	pr := p.queue[best].priority
	p.queue[best] = queueEntry{}
	p.queueCount--
	return pkt, pr, true
}

// QueueCount returns the number of valid entries currently queued.
func (p *Pipeline) QueueCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueCount
}

// QueueOverflows returns the running count of rejected enqueue attempts.
func (p *Pipeline) QueueOverflows() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueOverflows
}

// SendAck builds a TM packet carrying the given service/subtype (the
// PUS Request Verification acks: 1/1 accept, 1/7 success, 1/8
// failure) tagged with apid, and queues it at High priority. data may
// be nil; a completion ack uses it to carry the handler's response
// payload back to the ground.
func (p *Pipeline) SendAck(apid ccsds.Apid, service, subtype uint8, data []byte) status.Status {
	coarse, fine := p.timestampParts()
	pkt := ccsds.BuildTM(ccsds.TmPacket{
		Apid:       apid,
		Sequence:   p.seq.Next(apid),
		CoarseTime: coarse,
		FineTime:   fine,
		Service:    service,
		Subtype:    subtype,
		Data:       data,
	})
	return p.QueuePacket(pkt, High)
}

// SendEvent builds a service-5/subtype-5 event report TM at High
// priority, with data laid out as id (big-endian u16), timestamp
// (big-endian u32 seconds), then the caller's payload.
func (p *Pipeline) SendEvent(id uint16, data []byte) status.Status {
	nowS := p.clock.NowS()
	payload := make([]byte, 6+len(data))
	payload[0] = byte(id >> 8)
	payload[1] = byte(id)
	payload[2] = byte(nowS >> 24)
	payload[3] = byte(nowS >> 16)
	payload[4] = byte(nowS >> 8)
	payload[5] = byte(nowS)
	copy(payload[6:], data)

	coarse, fine := p.timestampParts()
	pkt := ccsds.BuildTM(ccsds.TmPacket{
		Apid:       ccsds.System,
		Sequence:   p.seq.Next(ccsds.System),
		CoarseTime: coarse,
		FineTime:   fine,
		Service:    5,
		Subtype:    5,
		Data:       payload,
	})
	return p.QueuePacket(pkt, High)
}
