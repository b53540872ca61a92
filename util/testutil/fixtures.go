package testutil

import (
	"testing"

	"github.com/xiaonanln/dtnview/telemetry"
)

// RelayConfig is a relay with one STCP induct and one STCP outduct towards
// node 50, which advertises ipn:1.1.
func RelayConfig() *telemetry.Config {
	cfg := &telemetry.Config{Name: "relay", MyNodeID: 10}
	cfg.Inducts.InductVector = []telemetry.InductConfig{{Name: "in", ConvergenceLayer: "stcp", BoundPort: 4556}}
	cfg.Outducts.OutductVector = []telemetry.OutductConfig{{
		Name:                    "out",
		ConvergenceLayer:        "stcp",
		NextHopNodeID:           50,
		FinalDestinationEidUris: []string{"ipn:1.1"},
	}}
	return cfg
}

// Egress reports the single outduct of RelayConfig with acked bytes and one
// bundle per hundred bytes.
func Egress(ts int64, acked uint64, physical *bool) *telemetry.EgressTelemetry {
	return &telemetry.EgressTelemetry{
		TimestampMillis: ts,
		Outducts: []telemetry.OutductTelemetry{{
			ConvergenceLayer:      "stcp",
			TotalBundleBytesAcked: acked,
			TotalBundlesAcked:     acked / 100,
			LinkIsUpPhysically:    physical,
		}},
	}
}

// MustEncode renders rec as a JSON telemetry message.
func MustEncode(t testing.TB, rec telemetry.Record) []byte {
	t.Helper()
	data, err := telemetry.Encode(rec)
	if err != nil {
		t.Fatalf("failed to encode %s record: %v", rec.Kind(), err)
	}
	return data
}
