// Package groundlinkpb is the generated gRPC service surface for
// proto/groundlink.proto. It is maintained by hand rather than run
// through protoc, since the service carries a single well-known message
// type (google.protobuf.BytesValue) and no custom message needs
// generating — but the shape (service interfaces, client stub,
// ServiceDesc) is exactly what protoc-gen-go-grpc would emit for the
// .proto file alongside it.
package groundlinkpb

import (
	context "context"

	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
	wrapperspb "google.golang.org/protobuf/types/known/wrapperspb"
)

// RadioLinkClient is the client API for the RadioLink service.
type RadioLinkClient interface {
	StreamFrames(ctx context.Context, opts ...grpc.CallOption) (RadioLink_StreamFramesClient, error)
}

type radioLinkClient struct {
	cc grpc.ClientConnInterface
}

// NewRadioLinkClient creates a RadioLinkClient backed by cc.
func NewRadioLinkClient(cc grpc.ClientConnInterface) RadioLinkClient {
	return &radioLinkClient{cc}
}

func (c *radioLinkClient) StreamFrames(ctx context.Context, opts ...grpc.CallOption) (RadioLink_StreamFramesClient, error) {
	stream, err := c.cc.NewStream(ctx, &RadioLink_ServiceDesc.Streams[0], "/"+RadioLink_ServiceDesc.ServiceName+"/StreamFrames", opts...)
	if err != nil {
		return nil, err
	}
	return &radioLinkStreamFramesClient{stream}, nil
}

// RadioLink_StreamFramesClient is the client-side handle for the
// StreamFrames bidirectional stream.
type RadioLink_StreamFramesClient interface {
	Send(*wrapperspb.BytesValue) error
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ClientStream
}

type radioLinkStreamFramesClient struct {
	grpc.ClientStream
}

func (x *radioLinkStreamFramesClient) Send(m *wrapperspb.BytesValue) error {
	return x.ClientStream.SendMsg(m)
}

func (x *radioLinkStreamFramesClient) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RadioLinkServer is the server API for the RadioLink service.
// All implementations must embed UnimplementedRadioLinkServer for
// forward compatibility.
type RadioLinkServer interface {
	StreamFrames(RadioLink_StreamFramesServer) error
	mustEmbedUnimplementedRadioLinkServer()
}

// UnimplementedRadioLinkServer must be embedded to have forward
// compatible implementations.
type UnimplementedRadioLinkServer struct{}

func (UnimplementedRadioLinkServer) StreamFrames(RadioLink_StreamFramesServer) error {
	return status.Errorf(codes.Unimplemented, "method StreamFrames not implemented")
}
func (UnimplementedRadioLinkServer) mustEmbedUnimplementedRadioLinkServer() {}

// RegisterRadioLinkServer registers srv on s.
func RegisterRadioLinkServer(s grpc.ServiceRegistrar, srv RadioLinkServer) {
	s.RegisterService(&RadioLink_ServiceDesc, srv)
}

func _RadioLink_StreamFrames_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(RadioLinkServer).StreamFrames(&radioLinkStreamFramesServer{stream})
}

// RadioLink_StreamFramesServer is the server-side handle for the
// StreamFrames bidirectional stream.
type RadioLink_StreamFramesServer interface {
	Send(*wrapperspb.BytesValue) error
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ServerStream
}

type radioLinkStreamFramesServer struct {
	grpc.ServerStream
}

func (x *radioLinkStreamFramesServer) Send(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}

func (x *radioLinkStreamFramesServer) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RadioLink_ServiceDesc is the grpc.ServiceDesc for the RadioLink
// service.
var RadioLink_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "octoreflex.groundlink.v1.RadioLink",
	HandlerType: (*RadioLinkServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       _RadioLink_StreamFrames_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "groundlink.proto",
}
