package api

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/engine"
	"github.com/threatlens/threatlens/internal/models"
)

func dialBufconn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := newGRPCServer(config.ServerConfig{}, lis, newTestService(), nil)
	go server.Start()
	t.Cleanup(func() { server.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, in any) (*structpb.Struct, error) {
	t.Helper()
	out := &structpb.Struct{}
	err := conn.Invoke(context.Background(), "/"+InferenceServiceName+"/"+method, in, out)
	return out, err
}

func TestGRPCAnalyzeLogs(t *testing.T) {
	conn := dialBufconn(t)

	out, err := invoke(t, conn, "AnalyzeLogs", wrapperspb.Bytes([]byte(sampleLogs)))
	require.NoError(t, err)
	require.Equal(t, 2.0, out.Fields["total_logs"].GetNumberValue())
	require.Equal(t, 1.0, out.Fields["total_anomalies"].GetNumberValue())

	_, err = invoke(t, conn, "AnalyzeLogs", wrapperspb.Bytes([]byte("no records")))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCPreprocessLogs(t *testing.T) {
	conn := dialBufconn(t)

	out, err := invoke(t, conn, "PreprocessLogs", wrapperspb.Bytes([]byte(sampleLogs)))
	require.NoError(t, err)
	records := out.Fields["records"].GetListValue().GetValues()
	require.Len(t, records, 2)
	require.Equal(t, "nginx", records[0].GetStructValue().Fields["process"].GetStringValue())
}

func TestGRPCDetectPhishing(t *testing.T) {
	conn := dialBufconn(t)

	in, err := structpb.NewStruct(map[string]any{"urls": []any{"listed.example", "x.example"}})
	require.NoError(t, err)
	out, err := invoke(t, conn, "DetectPhishing", in)
	require.NoError(t, err)
	results := out.Fields["results"].GetListValue().GetValues()
	require.Len(t, results, 2)
	require.Equal(t, models.LabelGood, results[0].GetStructValue().Fields["label"].GetStringValue())
	require.Equal(t, models.LabelBad, results[1].GetStructValue().Fields["label"].GetStringValue())

	bad, err := structpb.NewStruct(map[string]any{"urls": []any{1.0}})
	require.NoError(t, err)
	_, err = invoke(t, conn, "DetectPhishing", bad)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(t, conn, "DetectPhishing", &structpb.Struct{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	empty, err := structpb.NewStruct(map[string]any{"urls": []any{}})
	require.NoError(t, err)
	_, err = invoke(t, conn, "DetectPhishing", empty)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCDigests(t *testing.T) {
	conn := dialBufconn(t)

	out, err := invoke(t, conn, "CheckFileIntegrity", wrapperspb.Bytes([]byte("trusted")))
	require.NoError(t, err)
	require.Equal(t, engine.Digest([]byte("trusted")), out.Fields["file_hash"].GetStringValue())
	require.Equal(t, models.TamperingNone, out.Fields["tampering_detected"].GetStringValue())

	out, err = invoke(t, conn, "AnalyzeImage", wrapperspb.Bytes([]byte("text")))
	require.NoError(t, err)
	require.Equal(t, engine.Digest([]byte("text")), out.Fields["image_hash"].GetStringValue())
}

func TestGRPCHealth(t *testing.T) {
	conn := dialBufconn(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: InferenceServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
