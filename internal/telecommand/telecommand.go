// Package telecommand implements the telecommand (TC) pipeline:
// handler registration, Safe-mode command filtering, authorization,
// execution, acknowledgement, and a command history ring.
package telecommand

import (
	"sync"

	"github.com/octoreflex/fswsupervisor/internal/ccsds"
	"github.com/octoreflex/fswsupervisor/internal/clock"
	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/status"
	"github.com/octoreflex/fswsupervisor/internal/telemetry"
)

// MaxDefinitions and HistoryCapacity are the fixed table sizes.
const (
	MaxDefinitions  = 64
	HistoryCapacity = 16
)

// AuthLevel gates who may invoke a TcDefinition's handler.
type AuthLevel uint8

const (
	AuthNone AuthLevel = iota
	AuthBasic
	AuthElevated
	AuthCritical
)

// Handler executes a telecommand's payload and returns a response
// payload plus a status. Handlers run serialized under Pipeline's
// execution lock and must not block indefinitely.
type Handler func(data []byte) ([]byte, status.Status)

// TcDefinition is one registered telecommand, unique on
// (Service, Subtype).
type TcDefinition struct {
	Service   uint8
	Subtype   uint8
	AuthLevel AuthLevel
	Handler   Handler
}

// VerifyAuth is the authenticity-check hook invoked for Elevated+
// commands when a key has been set: fail-open only while no key is
// set, otherwise verification is required.
type VerifyAuth func(pkt ccsds.TcPacket) bool

// HistoryRecord is one entry of the fixed 16-slot command history
// ring.
type HistoryRecord struct {
	Sequence    uint16
	Service     uint8
	Subtype     uint8
	TimestampMs uint32
	Status      status.Status
}

type key struct {
	service uint8
	subtype uint8
}

// safeListed is the fixed Safe-mode command allow-list:
// Test/1 (Ping), Test/2 (ConnectionTest), HK/5 (EnableHk), HK/6
// (DisableHk).
var safeListed = map[key]bool{
	{17, 1}: true,
	{17, 2}: true,
	{3, 5}:  true,
	{3, 6}:  true,
}

// Pipeline owns the registered handler table, execution lock, and
// command history. In lock order, Pipeline sits above Telemetry and
// below Scheduler.
type Pipeline struct {
	regMu sync.Mutex
	defs  map[key]TcDefinition

	execMu sync.Mutex

	histMu              sync.Mutex
	history             [HistoryCapacity]HistoryRecord
	histHead, histCount int

	accepted uint64
	rejected uint64

	keySet     bool
	verifyAuth VerifyAuth

	modeMgr *mode.Manager
	tm      *telemetry.Pipeline
	clock   *clock.Clock

	inboxMu sync.Mutex
	inbox   [][]byte
}

// InboxCapacity bounds the pending-uplink queue drained by Periodic.
// Sized generously above the
// command-history ring since a burst of uplinked packets may arrive
// faster than the 50 ms drain cadence.
const InboxCapacity = 64

// Enqueue appends a received wire packet to the inbound queue for the
// next Periodic drain. Returns status.NoMemory if the queue is full.
func (p *Pipeline) Enqueue(wire []byte) status.Status {
	p.inboxMu.Lock()
	defer p.inboxMu.Unlock()
	if len(p.inbox) >= InboxCapacity {
		return status.NoMemory
	}
	p.inbox = append(p.inbox, wire)
	return status.OK
}

// Periodic drains every wire packet queued since the last call and
// runs each through Process, in arrival order.
func (p *Pipeline) Periodic(nowMs uint32) {
	p.inboxMu.Lock()
	pending := p.inbox
	p.inbox = nil
	p.inboxMu.Unlock()

	for _, wire := range pending {
		p.Process(wire, nowMs)
	}
}

// New creates an empty Pipeline wired to modeMgr (for Safe-mode
// filtering) and tm (for acks).
func New(modeMgr *mode.Manager, tm *telemetry.Pipeline, clk *clock.Clock) *Pipeline {
	return &Pipeline{
		defs:       make(map[key]TcDefinition),
		modeMgr:    modeMgr,
		tm:         tm,
		clock:      clk,
		verifyAuth: func(ccsds.TcPacket) bool { return true },
	}
}

// SetAuthKey marks a verification key as configured and installs the
// verify function used for Elevated+ commands. Passing a nil verify
// reverts to "no key set" (fail-open) policy.
func (p *Pipeline) SetAuthKey(verify VerifyAuth) {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	if verify == nil {
		p.keySet = false
		p.verifyAuth = func(ccsds.TcPacket) bool { return true }
		return
	}
	p.keySet = true
	p.verifyAuth = verify
}

// Register adds def to the handler table. Returns status.InvalidParam
// if (Service, Subtype) is already registered, or status.NoMemory if
// the table is full.
func (p *Pipeline) Register(def TcDefinition) status.Status {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	k := key{def.Service, def.Subtype}
	if _, exists := p.defs[k]; exists {
		return status.InvalidParam
	}
	if len(p.defs) >= MaxDefinitions {
		return status.NoMemory
	}
	p.defs[k] = def
	return status.OK
}

// Accepted returns the running count of accepted commands.
func (p *Pipeline) Accepted() uint64 {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	return p.accepted
}

// Rejected returns the running count of rejected commands.
func (p *Pipeline) Rejected() uint64 {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	return p.rejected
}

// History returns a copy of the command history ring, oldest first.
func (p *Pipeline) History() []HistoryRecord {
	p.histMu.Lock()
	defer p.histMu.Unlock()
	out := make([]HistoryRecord, p.histCount)
	start := (p.histHead - p.histCount + HistoryCapacity) % HistoryCapacity
	for i := 0; i < p.histCount; i++ {
		out[i] = p.history[(start+i)%HistoryCapacity]
	}
	return out
}

func (p *Pipeline) recordHistory(r HistoryRecord) {
	p.histMu.Lock()
	defer p.histMu.Unlock()
	p.history[p.histHead] = r
	p.histHead = (p.histHead + 1) % HistoryCapacity
	if p.histCount < HistoryCapacity {
		p.histCount++
	}
}

// Process runs the TC state machine on a single
// received wire packet:
//  1. validate (CRC and a registered handler both present);
//  2. authorize (Safe-mode allow-list, then verify_auth for Elevated+);
//  3. accept, ack, execute (serialized), and send a completion ack.
func (p *Pipeline) Process(wire []byte, nowMs uint32) status.Status {
	pkt, st := ccsds.ParseTC(wire)
	if st != status.OK {
		p.reject(0, 0, 0, nowMs, status.InvalidParam)
		return status.InvalidParam
	}

	p.regMu.Lock()
	def, ok := p.defs[key{pkt.Service, pkt.Subtype}]
	p.regMu.Unlock()
	if !ok {
		p.reject(pkt.Sequence, pkt.Service, pkt.Subtype, nowMs, status.InvalidParam)
		return status.InvalidParam
	}

	if p.modeMgr.Current() == mode.Safe && !safeListed[key{pkt.Service, pkt.Subtype}] {
		p.reject(pkt.Sequence, pkt.Service, pkt.Subtype, nowMs, status.Permission)
		return status.Permission
	}

	if def.AuthLevel >= AuthElevated {
		p.regMu.Lock()
		needVerify := p.keySet
		verify := p.verifyAuth
		p.regMu.Unlock()
		if needVerify && !verify(pkt) {
			p.reject(pkt.Sequence, pkt.Service, pkt.Subtype, nowMs, status.Permission)
			return status.Permission
		}
	}

	p.regMu.Lock()
	p.accepted++
	p.regMu.Unlock()
	p.ack(pkt.Apid, 1, 1, nil)

	p.execMu.Lock()
	response, execStatus := def.Handler(pkt.Data)
	p.execMu.Unlock()

	if execStatus == status.OK {
		p.ack(pkt.Apid, 1, 7, response)
	} else {
		p.ack(pkt.Apid, 1, 8, nil)
	}
	p.recordHistory(HistoryRecord{
		Sequence:    pkt.Sequence,
		Service:     pkt.Service,
		Subtype:     pkt.Subtype,
		TimestampMs: nowMs,
		Status:      execStatus,
	})
	return execStatus
}

func (p *Pipeline) reject(seq uint16, service, subtype uint8, nowMs uint32, st status.Status) {
	p.regMu.Lock()
	p.rejected++
	p.regMu.Unlock()
	p.recordHistory(HistoryRecord{Sequence: seq, Service: service, Subtype: subtype, TimestampMs: nowMs, Status: st})
}

func (p *Pipeline) ack(apid ccsds.Apid, service, subtype uint8, data []byte) {
	if p.tm == nil {
		return
	}
	p.tm.SendAck(apid, service, subtype, data)
}
