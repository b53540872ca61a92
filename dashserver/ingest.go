package dashserver

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xiaonanln/dtnview/dashboard"
	"github.com/xiaonanln/dtnview/util/metrics"
	"github.com/xiaonanln/dtnview/util/protohelper"
)

// Ingest push outcomes, used as the status label of the ingest metric.
const (
	ingestOK       = "ok"
	ingestRejected = "rejected"
	ingestError    = "error"
)

const (
	IngestServiceName = "dtnview.TelemetryIngest"
	pushMethod        = "/" + IngestServiceName + "/Push"
)

// IngestServer is the TelemetryIngest gRPC service. A push carries one
// telemetry message as a google.protobuf.Struct in the relay's JSON shape.
type IngestServer interface {
	Push(ctx context.Context, msg *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterIngestServer registers srv with a gRPC server.
func RegisterIngestServer(s grpc.ServiceRegistrar, srv IngestServer) {
	s.RegisterService(&ingestServiceDesc, srv)
}

var ingestServiceDesc = grpc.ServiceDesc{
	ServiceName: IngestServiceName,
	HandlerType: (*IngestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: pushHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dtnview/ingest.proto",
}

func pushHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pushMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestServer).Push(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// IngestClient pushes telemetry to a TelemetryIngest service.
type IngestClient struct {
	cc grpc.ClientConnInterface
}

// NewIngestClient wraps a client connection.
func NewIngestClient(cc grpc.ClientConnInterface) *IngestClient {
	return &IngestClient{cc: cc}
}

// Push sends one message.
func (c *IngestClient) Push(ctx context.Context, msg *structpb.Struct, opts ...grpc.CallOption) error {
	out := new(emptypb.Empty)
	return c.cc.Invoke(ctx, pushMethod, msg, out, opts...)
}

// PushJSON converts a JSON telemetry message and sends it.
func (c *IngestClient) PushJSON(ctx context.Context, data []byte, opts ...grpc.CallOption) error {
	msg, err := protohelper.JSONToStruct(data)
	if err != nil {
		return err
	}
	return c.Push(ctx, msg, opts...)
}

// IngestService feeds pushed telemetry into a dashboard.
type IngestService struct {
	dash *dashboard.Dashboard
}

// NewIngestService creates the service for dash.
func NewIngestService(dash *dashboard.Dashboard) *IngestService {
	return &IngestService{dash: dash}
}

// Push implements IngestServer.
func (s *IngestService) Push(ctx context.Context, msg *structpb.Struct) (*emptypb.Empty, error) {
	data, err := protohelper.StructToJSON(msg)
	if err != nil {
		metrics.RecordIngestPush(ingestError)
		return nil, status.Errorf(codes.InvalidArgument, "failed to encode pushed message: %v", err)
	}
	if _, err := s.dash.ApplyJSON(data); err != nil {
		metrics.RecordIngestPush(ingestStatus(err))
		return nil, grpcError(err)
	}
	metrics.RecordIngestPush(ingestOK)
	return &emptypb.Empty{}, nil
}

func ingestStatus(err error) string {
	if errors.Is(err, dashboard.ErrMalformedRecord) || errors.Is(err, dashboard.ErrNotConfigured) {
		return ingestRejected
	}
	return ingestError
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, dashboard.ErrNotConfigured):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, dashboard.ErrMalformedRecord):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
