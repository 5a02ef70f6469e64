// Package groundlink simulates the opaque radio transport: a
// bidirectional gRPC stream of framed byte buffers between the
// satellite-side simulator and the ground station tool, standing in for
// the physical link. Neither side interprets the bytes; they are the
// CCSDS/PUS wire packets and beacon frames the core already builds and
// parses.
package groundlink

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/octoreflex/fswsupervisor/internal/groundlink/groundlinkpb"
)

// pollInterval is how often the satellite-side server checks
// DownlinkSource for a new frame to send (the supervisor's own tick
// cadences already bound how often a frame becomes available; this just
// needs to be faster than the fastest of those, the 50 ms
// tc.periodic).
const pollInterval = 20 * time.Millisecond

// DownlinkSource supplies the next queued downlink frame, if any. The
// satellite-side Server polls this to feed the stream.
type DownlinkSource interface {
	NextDownlinkFrame() ([]byte, bool)
}

// UplinkSink accepts one received uplink frame for the supervisor's
// telecommand pipeline to drain.
type UplinkSink interface {
	ReceiveUplink(wire []byte)
}

// Server is the satellite-side RadioLink implementation: it drains
// DownlinkSource onto the stream and forwards received frames to
// UplinkSink.
type Server struct {
	groundlinkpb.UnimplementedRadioLinkServer

	source DownlinkSource
	sink   UplinkSink
	log    *zap.Logger
}

// NewServer creates a satellite-side groundlink Server.
func NewServer(source DownlinkSource, sink UplinkSink, log *zap.Logger) *Server {
	return &Server{source: source, sink: sink, log: log}
}

// StreamFrames implements RadioLinkServer: one ground station connects
// for the lifetime of a simulated pass; downlink frames are pushed as
// they become available, uplink frames are forwarded to sink as they
// arrive.
func (s *Server) StreamFrames(stream groundlinkpb.RadioLink_StreamFramesServer) error {
	ctx := stream.Context()
	s.log.Info("groundlink: ground station connected")

	errCh := make(chan error, 2)

	go func() {
		for {
			frame, err := stream.Recv()
			if err == io.EOF {
				errCh <- nil
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("groundlink: recv: %w", err)
				return
			}
			s.sink.ReceiveUplink(frame.GetValue())
		}
	}()

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				errCh <- nil
				return
			case <-ticker.C:
				for {
					frame, ok := s.source.NextDownlinkFrame()
					if !ok {
						break
					}
					if err := stream.Send(&wrapperspb.BytesValue{Value: frame}); err != nil {
						errCh <- fmt.Errorf("groundlink: send: %w", err)
						return
					}
				}
			}
		}
	}()

	err := <-errCh
	s.log.Info("groundlink: ground station disconnected", zap.Error(err))
	return err
}

// ListenAndServe starts the groundlink gRPC server on addr. Blocks until
// ctx is cancelled. Transport is plaintext: this link only ever runs
// loopback or over an already-trusted simulation fabric, unlike the
// gossip layer's inter-node mTLS.
func ListenAndServe(ctx context.Context, addr string, srv *Server) error {
	grpcSrv := grpc.NewServer(
		grpc.MaxRecvMsgSize(1<<20),
		grpc.MaxSendMsgSize(1<<20),
	)
	groundlinkpb.RegisterRadioLinkServer(grpcSrv, srv)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("groundlink listen %s: %w", addr, err)
	}

	srv.log.Info("groundlink server listening", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		grpcSrv.GracefulStop()
	}()

	if err := grpcSrv.Serve(lis); err != nil {
		return fmt.Errorf("groundlink grpc serve: %w", err)
	}
	return nil
}

// Client is the ground-side handle on the RadioLink stream: it uplinks
// TC wire packets and yields received downlink frames.
type Client struct {
	conn   *grpc.ClientConn
	stream groundlinkpb.RadioLink_StreamFramesClient
	log    *zap.Logger
}

// Dial connects to the satellite-side groundlink server at addr and
// opens the single bidirectional stream.
func Dial(ctx context.Context, addr string, log *zap.Logger) (*Client, error) {
	conn, err := grpc.DialContext(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("groundlink dial %s: %w", addr, err)
	}

	stream, err := groundlinkpb.NewRadioLinkClient(conn).StreamFrames(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("groundlink open stream: %w", err)
	}

	log.Info("groundlink connected", zap.String("addr", addr))
	return &Client{conn: conn, stream: stream, log: log}, nil
}

// Uplink sends wire as one uplinked frame.
func (c *Client) Uplink(wire []byte) error {
	return c.stream.Send(&wrapperspb.BytesValue{Value: wire})
}

// RecvDownlink blocks for the next downlinked frame, or returns io.EOF
// when the satellite side closes the stream.
func (c *Client) RecvDownlink() ([]byte, error) {
	frame, err := c.stream.Recv()
	if err != nil {
		return nil, err
	}
	return frame.GetValue(), nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
