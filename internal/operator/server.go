// Package operator implements the ground-test operator console: a
// Unix domain socket server accepting newline-delimited JSON commands
// to drive the simulator interactively without a real telecommand
// uplink.
//
// Protocol: newline-delimited JSON over a Unix domain socket.
// Socket path: given to NewServer (fswsim default: /tmp/fswsim-operator.sock).
// Permissions: 0600, owned by the invoking user.
//
// Commands (JSON request → JSON response):
//
//	{"cmd":"mode","target":"Safe"}
//	  → Queues a forced mode change, bypassing the allowed-transition
//	    table, exactly as FDIR/EPS do internally; the next mode.process
//	    job executes it.
//	  → Response: {"ok":true,"mode":"Safe"} (the forced target mode)
//
//	{"cmd":"fault","type":"BusError","subsystem":"Comms"}
//	  → Reports one synthetic occurrence of the named fault for the named
//	    subsystem, exercising the same FDIR path a real fault detector would.
//	  → Response: {"ok":true}
//
//	{"cmd":"status"}
//	  → Returns a snapshot of mode, health, EPS, FDIR, and TM/TC queue state.
//	  → Response: {"ok":true,"mode":"Nominal","health":"OK",...}
//
// Security: operator use only, not high-throughput. Max concurrent
// connections: 4. Max request size: 4096 bytes. Connection timeout: 10s.
package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/fswsupervisor/internal/fdir"
	"github.com/octoreflex/fswsupervisor/internal/mode"
	"github.com/octoreflex/fswsupervisor/internal/platform"
	"github.com/octoreflex/fswsupervisor/internal/supervisor"
)

const (
	maxConcurrentConns = 4
	maxRequestBytes    = 4096
	connTimeout        = 10 * time.Second
)

// Request is the JSON structure for operator commands.
type Request struct {
	Cmd       string `json:"cmd"`                 // mode | fault | status
	Target    string `json:"target,omitempty"`    // target mode name for "mode"
	Type      string `json:"type,omitempty"`      // fault type name for "fault"
	Subsystem string `json:"subsystem,omitempty"` // subsystem name for "fault"
}

// Response is the JSON structure for operator command responses.
type Response struct {
	OK           bool     `json:"ok"`
	Error        string   `json:"error,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	Health       string   `json:"health,omitempty"`
	EpsCritical  bool     `json:"eps_critical,omitempty"`
	EpsLowPower  bool     `json:"eps_low_power,omitempty"`
	EpsBalanceMw int32    `json:"eps_balance_mw,omitempty"`
	ActiveFaults []string `json:"active_faults,omitempty"`
	TmQueueDepth int      `json:"tm_queue_depth,omitempty"`
	TcAccepted   uint64   `json:"tc_accepted,omitempty"`
	TcRejected   uint64   `json:"tc_rejected,omitempty"`
}

// Server is the operator Unix domain socket server.
type Server struct {
	socketPath string
	sup        *supervisor.Supervisor
	log        *zap.Logger
	sem        chan struct{}
}

// NewServer creates an operator Server wired to sup.
func NewServer(socketPath string, sup *supervisor.Supervisor, log *zap.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		sup:        sup,
		log:        log,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

// ListenAndServe starts the operator socket server, removing any stale
// socket file before binding. Blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("operator: remove stale socket %q: %w", s.socketPath, err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("operator: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		return fmt.Errorf("operator: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("operator socket listening", zap.String("path", s.socketPath))

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("operator: accept error", zap.Error(err))
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("operator: max connections reached, rejecting")
			_ = conn.Close()
			continue
		}

		go func(c net.Conn) {
			defer func() { <-s.sem }()
			defer c.Close()
			s.handleConn(c)
		}(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		s.log.Warn("operator: read error", zap.Error(err))
		return
	}

	var req Request
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, Response{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	resp := s.dispatch(req)
	s.writeResponse(conn, resp)
}

func (s *Server) dispatch(req Request) Response {
	switch req.Cmd {
	case "mode":
		return s.cmdMode(req)
	case "fault":
		return s.cmdFault(req)
	case "status":
		return s.cmdStatus()
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *Server) cmdMode(req Request) Response {
	m, err := parseMode(req.Target)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.sup.ForceMode(m)
	s.log.Info("operator: mode forced", zap.String("target", m.String()))
	return Response{OK: true, Mode: m.String()}
}

func (s *Server) cmdFault(req Request) Response {
	ft, err := parseFaultType(req.Type)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	subsys, err := parseSubsystem(req.Subsystem)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.sup.InjectFault(ft, subsys)
	s.log.Info("operator: fault injected", zap.String("type", ft.String()), zap.String("subsystem", req.Subsystem))
	return Response{OK: true}
}

func (s *Server) cmdStatus() Response {
	snap := s.sup.Snapshot()
	faults := make([]string, len(snap.ActiveFaults))
	for i, f := range snap.ActiveFaults {
		faults[i] = f.String()
	}
	return Response{
		OK:           true,
		Mode:         snap.Mode.String(),
		Health:       snap.Health.String(),
		EpsCritical:  snap.EpsCritical,
		EpsLowPower:  snap.EpsLowPower,
		EpsBalanceMw: snap.EpsBalanceMw,
		ActiveFaults: faults,
		TmQueueDepth: snap.TmQueueDepth,
		TcAccepted:   snap.TcAccepted,
		TcRejected:   snap.TcRejected,
	}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

func parseMode(name string) (mode.SystemMode, error) {
	switch name {
	case "Boot":
		return mode.Boot, nil
	case "Safe":
		return mode.Safe, nil
	case "Detumble":
		return mode.Detumble, nil
	case "Nominal":
		return mode.Nominal, nil
	case "LowPower":
		return mode.LowPower, nil
	case "Recovery":
		return mode.Recovery, nil
	default:
		return mode.Boot, fmt.Errorf("unknown mode %q (valid: Boot Safe Detumble Nominal LowPower Recovery)", name)
	}
}

func parseFaultType(name string) (fdir.FaultType, error) {
	switch name {
	case "Watchdog":
		return fdir.Watchdog, nil
	case "Brownout":
		return fdir.Brownout, nil
	case "ResetLoop":
		return fdir.ResetLoop, nil
	case "SensorInvalid":
		return fdir.SensorInvalid, nil
	case "ActuatorFail":
		return fdir.ActuatorFail, nil
	case "BusError":
		return fdir.BusError, nil
	case "MemoryError":
		return fdir.MemoryError, nil
	case "CommLoss":
		return fdir.CommLoss, nil
	case "PowerCritical":
		return fdir.PowerCritical, nil
	case "ThermalLimit":
		return fdir.ThermalLimit, nil
	case "AttitudeLost":
		return fdir.AttitudeLost, nil
	default:
		return fdir.Watchdog, fmt.Errorf("unknown fault type %q", name)
	}
}

func parseSubsystem(name string) (platform.SubsystemId, error) {
	switch name {
	case "", "Unknown":
		return platform.SubsystemUnknown, nil
	case "ADCS":
		return platform.SubsystemADCS, nil
	case "Comms":
		return platform.SubsystemComms, nil
	case "Payload":
		return platform.SubsystemPayload, nil
	case "EPS":
		return platform.SubsystemEPS, nil
	case "OBC":
		return platform.SubsystemOBC, nil
	default:
		return platform.SubsystemUnknown, fmt.Errorf("unknown subsystem %q", name)
	}
}
