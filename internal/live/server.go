package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName     = "flowdesk.v1.FlowService"
	analyzeMethod   = "/" + serviceName + "/Analyze"
	watchMethod     = "/" + serviceName + "/Watch"
	watchBufferSize = 64
)

// FlowServiceServer is the server API of flowdesk.v1.FlowService. Messages
// are protobuf well-known types; reports travel as google.protobuf.Struct
// holding the Report JSON.
type FlowServiceServer interface {
	// Analyze parses the given text and reports on it against the desk's
	// spot price without touching the desk. Empty text reports on the desk.
	Analyze(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// Watch sends the current desk report, then a fresh report after every
	// desk change until the client disconnects.
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// FlowServiceDesc describes flowdesk.v1.FlowService for grpc.Server.
var FlowServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*FlowServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "flowdesk/v1/flow.proto",
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FlowServiceServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: analyzeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FlowServiceServer).Analyze(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FlowServiceServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// Compile-time interface check.
var _ FlowServiceServer = (*Server)(nil)

// Server implements FlowService on top of a Desk.
type Server struct {
	desk *Desk
	opts ReportOptions
	log  *slog.Logger
}

// NewServer creates a gRPC service backed by the given Desk.
func NewServer(desk *Desk, opts ReportOptions, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{desk: desk, opts: opts, log: log.With("component", "grpc")}
}

// RegisterGRPC registers the service on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&FlowServiceDesc, s)
}

// Analyze implements FlowServiceServer.
func (s *Server) Analyze(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	raw := in.GetValue()
	var report Report
	if strings.TrimSpace(raw) == "" {
		report = s.desk.Report(s.opts)
	} else {
		parsed, stats := s.desk.parser.Parse(raw)
		spot, spotTime := s.desk.Spot()
		snap := Snapshot{
			Trades:    parsed.Trades,
			Summary:   parsed.Summary,
			Stats:     stats,
			Spot:      spot,
			SpotTime:  spotTime,
			UpdatedAt: s.desk.clock.Now(),
		}
		report = BuildReport(snap, s.opts, s.desk.clock)
	}
	out, err := reportToStruct(report)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding report: %v", err)
	}
	return out, nil
}

// Watch implements FlowServiceServer.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	subID, ch := s.desk.Subscribe(watchBufferSize)
	defer s.desk.Unsubscribe(subID)

	if err := s.sendReport(stream); err != nil {
		return err
	}
	s.log.Info("grpc client subscribed", "subID", subID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("grpc client disconnected", "subID", subID)
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			// Collapse a burst of events into one report.
			for drained := false; !drained; {
				select {
				case _, ok := <-ch:
					if !ok {
						return nil
					}
				default:
					drained = true
				}
			}
			if err := s.sendReport(stream); err != nil {
				return err
			}
		}
	}
}

func (s *Server) sendReport(stream grpc.ServerStreamingServer[structpb.Struct]) error {
	out, err := reportToStruct(s.desk.Report(s.opts))
	if err != nil {
		return status.Errorf(codes.Internal, "encoding report: %v", err)
	}
	return stream.Send(out)
}

func reportToStruct(r Report) (*structpb.Struct, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("json to struct: %w", err)
	}
	return out, nil
}

func structToReport(s *structpb.Struct) (Report, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return Report{}, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("struct to report: %w", err)
	}
	return r, nil
}
