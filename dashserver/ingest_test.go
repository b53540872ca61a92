package dashserver

import (
	"context"
	"net"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xiaonanln/dtnview/dashboard"
	"github.com/xiaonanln/dtnview/telemetry"
	"github.com/xiaonanln/dtnview/util/metrics"
	"github.com/xiaonanln/dtnview/util/testutil"
)

func startIngest(t *testing.T, dash *dashboard.Dashboard) *IngestClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterIngestServer(srv, NewIngestService(dash))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewIngestClient(conn)
}

func TestIngestPush(t *testing.T) {
	testutil.LockMetrics(t)
	metrics.IngestPushesTotal.Reset()

	dash := dashboard.New(dashboard.DefaultOptions())
	client := startIngest(t, dash)
	ctx := context.Background()

	err := client.PushJSON(ctx, testutil.MustEncode(t, testutil.Egress(0, 0, nil)))
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("expected FailedPrecondition before configuration, got %v", err)
	}

	if err := client.PushJSON(ctx, testutil.MustEncode(t, testutil.RelayConfig())); err != nil {
		t.Fatalf("PushJSON(config) failed: %v", err)
	}
	if !dash.Configured() {
		t.Fatal("expected the pushed config to be applied")
	}

	if err := client.PushJSON(ctx, testutil.MustEncode(t, testutil.Egress(1000, 4000, telemetry.Bool(true)))); err != nil {
		t.Fatalf("PushJSON(egress) failed: %v", err)
	}
	w, ok := dash.Scene().Wire(outductWire)
	if !ok || !w.On {
		t.Errorf("expected the pushed egress record to reach the scene, got %+v", w)
	}

	bad, err := structpb.NewStruct(map[string]interface{}{
		"allOutducts": []interface{}{
			map[string]interface{}{"convergenceLayer": "udp"},
		},
	})
	if err != nil {
		t.Fatalf("NewStruct failed: %v", err)
	}
	if err := client.Push(ctx, bad); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument for a mismatched outduct, got %v", err)
	}

	if v := promtestutil.ToFloat64(metrics.IngestPushesTotal.WithLabelValues(ingestOK)); v != 2 {
		t.Errorf("expected 2 accepted pushes, got %f", v)
	}
	if v := promtestutil.ToFloat64(metrics.IngestPushesTotal.WithLabelValues(ingestRejected)); v != 2 {
		t.Errorf("expected 2 rejected pushes, got %f", v)
	}
}

func TestIngestPushJSONRejectsNonObject(t *testing.T) {
	client := NewIngestClient(nil)
	if err := client.PushJSON(context.Background(), []byte(`[1,2]`)); err == nil {
		t.Error("expected a JSON array to be rejected before sending")
	}
}
