package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/models"
	"github.com/threatlens/threatlens/internal/services"
	"github.com/threatlens/threatlens/internal/utils"
)

// InferenceServiceName is the fully qualified gRPC service name.
const InferenceServiceName = "threatlens.v1.Inference"

// InferenceServer is the gRPC surface. Payloads use protobuf well-known types so no generated
// code is needed: uploads travel as BytesValue and results as Struct.
type InferenceServer interface {
	AnalyzeLogs(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	PreprocessLogs(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	DetectPhishing(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckFileIntegrity(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	AnalyzeImage(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
}

var inferenceServiceDesc = grpc.ServiceDesc{
	ServiceName: InferenceServiceName,
	HandlerType: (*InferenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AnalyzeLogs", Handler: unaryHandler("AnalyzeLogs", InferenceServer.AnalyzeLogs)},
		{MethodName: "PreprocessLogs", Handler: unaryHandler("PreprocessLogs", InferenceServer.PreprocessLogs)},
		{MethodName: "DetectPhishing", Handler: unaryHandler("DetectPhishing", InferenceServer.DetectPhishing)},
		{MethodName: "CheckFileIntegrity", Handler: unaryHandler("CheckFileIntegrity", InferenceServer.CheckFileIntegrity)},
		{MethodName: "AnalyzeImage", Handler: unaryHandler("AnalyzeImage", InferenceServer.AnalyzeImage)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "threatlens/v1/inference.proto",
}

// RegisterInferenceServer registers srv on s.
func RegisterInferenceServer(s grpc.ServiceRegistrar, srv InferenceServer) {
	s.RegisterService(&inferenceServiceDesc, srv)
}

func unaryHandler[Req any, PReq interface {
	*Req
}](method string, call func(InferenceServer, context.Context, PReq) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + InferenceServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InferenceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InferenceServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// GRPCInference adapts an Inference service to InferenceServer.
type GRPCInference struct {
	Service Inference
}

func (g *GRPCInference) AnalyzeLogs(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	result, err := g.Service.AnalyzeLogs(ctx, in.GetValue())
	if err != nil {
		return nil, statusError(err)
	}
	return toStruct(result)
}

func (g *GRPCInference) PreprocessLogs(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	records, err := g.Service.PreprocessLogs(ctx, in.GetValue())
	if err != nil {
		return nil, statusError(err)
	}
	return toStruct(map[string]any{"records": records})
}

func (g *GRPCInference) DetectPhishing(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req models.PhishingRequest
	if in != nil {
		raw, err := protojson.Marshal(in)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "'urls' must be a list of strings: %v", err)
		}
	}
	results, err := g.Service.DetectPhishing(ctx, req)
	if err != nil {
		return nil, statusError(err)
	}
	return toStruct(map[string]any{"results": results})
}

func (g *GRPCInference) CheckFileIntegrity(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	resp, err := g.Service.CheckFileIntegrity(ctx, in.GetValue())
	if err != nil {
		return nil, statusError(err)
	}
	return toStruct(resp)
}

func (g *GRPCInference) AnalyzeImage(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	resp, err := g.Service.AnalyzeImage(ctx, in.GetValue())
	if err != nil {
		return nil, statusError(err)
	}
	return toStruct(resp)
}

// toStruct round-trips v through its JSON encoding so both transports share one wire shape.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func statusError(err error) error {
	if utils.KindOf(err) == utils.KindInvalidInput {
		return status.Error(codes.InvalidArgument, utils.Message(err))
	}
	return status.Error(codes.Internal, utils.Message(err))
}

// GRPCServer wraps the gRPC server implementation and lifecycle helpers.
type GRPCServer struct {
	grpcServer *grpc.Server
	listener   net.Listener
}

// NewGRPCServer constructs a gRPC server bound to the configured address.
func NewGRPCServer(cfg config.ServerConfig, service Inference, logger *slog.Logger, opts ...grpc.ServerOption) (*GRPCServer, error) {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddress, err)
	}
	return newGRPCServer(cfg, lis, service, logger, opts...), nil
}

func newGRPCServer(cfg config.ServerConfig, lis net.Listener, service Inference, logger *slog.Logger, opts ...grpc.ServerOption) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor, logUnary(logger)),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		grpc.MaxRecvMsgSize(int(maxUpload(cfg))),
	}
	serverOpts = append(serverOpts, opts...)
	grpcServer := grpc.NewServer(serverOpts...)

	RegisterInferenceServer(grpcServer, &GRPCInference{Service: service})
	grpc_prometheus.Register(grpcServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(InferenceServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	reflection.Register(grpcServer)

	return &GRPCServer{
		grpcServer: grpcServer,
		listener:   lis,
	}
}

func maxUpload(cfg config.ServerConfig) int64 {
	if cfg.MaxUploadBytes <= 0 {
		return 32 << 20
	}
	// Leave room for protobuf framing around the payload.
	return cfg.MaxUploadBytes + 1024
}

func logUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc request",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}

// Start serves incoming gRPC requests until Stop/Shutdown is invoked.
func (s *GRPCServer) Start() error {
	if s.grpcServer == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	return s.grpcServer.Serve(s.listener)
}

// Shutdown attempts a graceful shutdown, falling back to Stop after timeout.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.grpcServer == nil {
		return
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.Stop()
	case <-stopped:
	}
}

// Address exposes the bound listener address (useful for tests).
func (s *GRPCServer) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

var _ InferenceServer = (*GRPCInference)(nil)
var _ Inference = (*services.InferenceService)(nil)
