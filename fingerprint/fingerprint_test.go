package fingerprint

import (
	"testing"

	"github.com/xiaonanln/dtnview/telemetry"
	"github.com/xiaonanln/dtnview/topology"
)

func baseState() *topology.State {
	cfg := &telemetry.Config{Name: "relay"}
	cfg.Inducts.InductVector = []telemetry.InductConfig{{ConvergenceLayer: "tcpcl_v4"}}
	cfg.Outducts.OutductVector = []telemetry.OutductConfig{
		{ConvergenceLayer: "stcp", NextHopNodeID: 50, FinalDestinationEidUris: []string{"ipn:1.1"}},
	}
	s := topology.NewState()
	s.ApplyConfig(cfg)
	s.ApplyIngress(&telemetry.IngressTelemetry{
		TimestampMillis: 1000,
		Inducts: []telemetry.InductTelemetry{{Connections: []telemetry.ConnectionTelemetry{
			{ConnectionName: "a"}, {ConnectionName: "b"},
		}}},
	})
	return s
}

func TestIdempotent(t *testing.T) {
	state := baseState()
	display := topology.DefaultDisplay()

	a := Take(state, display)
	b := Take(state, display)
	if a.String() != b.String() {
		t.Errorf("expected identical strings, got %q and %q", a.String(), b.String())
	}
	if !a.Equal(b) {
		t.Error("expected snapshots of the same state to be equal")
	}
	if NeedsRedraw(&a, b) {
		t.Error("expected no redraw for identical snapshots")
	}
	if !NeedsRedraw(nil, b) {
		t.Error("expected redraw when no previous snapshot exists")
	}
}

func TestStructuralSensitivity(t *testing.T) {
	display := topology.DefaultDisplay()

	tests := []struct {
		name   string
		mutate func(s *topology.State)
	}{
		{"add connection", func(s *topology.State) {
			s.Inducts[0].Connections = append(s.Inducts[0].Connections, "c")
		}},
		{"remove connection", func(s *topology.State) {
			s.Inducts[0].Connections = s.Inducts[0].Connections[:1]
		}},
		{"reorder connections", func(s *topology.State) {
			s.Inducts[0].Connections = []string{"b", "a"}
		}},
		{"add destination", func(s *topology.State) {
			s.Outducts[0].Destinations = append(s.Outducts[0].Destinations, "ipn:2.1")
		}},
		{"remove destination", func(s *topology.State) {
			s.Outducts[0].Destinations = nil
		}},
		{"reorder destinations", func(s *topology.State) {
			s.Outducts[0].Destinations = []string{"ipn:2.1", "ipn:1.1"}
		}},
		{"physical link", func(s *topology.State) {
			s.Outducts[0].LinkPhysical = topology.LinkDown
		}},
		{"scheduled link", func(s *topology.State) {
			s.Outducts[0].LinkSchedule = topology.LinkUp
		}},
		{"next hop", func(s *topology.State) {
			s.Outducts[0].NextHopNodeID = 51
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := baseState()
			if tt.name == "reorder destinations" {
				state.Outducts[0].Destinations = []string{"ipn:1.1", "ipn:2.1"}
			}
			before := Take(state, display)
			tt.mutate(state)
			after := Take(state, display)

			if before.String() == after.String() {
				t.Errorf("expected fingerprint to change, both are %q", before.String())
			}
			if !NeedsRedraw(&before, after) {
				t.Error("expected redraw after structural change")
			}
		})
	}
}

func TestNumericInsensitivity(t *testing.T) {
	state := baseState()
	display := topology.DefaultDisplay()
	before := Take(state, display)

	state.ApplyIngress(&telemetry.IngressTelemetry{
		TimestampMillis:       2000,
		BundleByteCountEgress: 123456,
		Inducts: []telemetry.InductTelemetry{{Connections: []telemetry.ConnectionTelemetry{
			{ConnectionName: "a", TotalBundleBytesReceived: 999}, {ConnectionName: "b", TotalBundlesReceived: 7},
		}}},
	})
	state.ApplyStorage(&telemetry.StorageTelemetry{TimestampMillis: 2000, UsedSpaceBytes: 100})

	after := Take(state, display)
	if before.String() != after.String() {
		t.Errorf("expected fingerprint to ignore counters, got %q then %q", before.String(), after.String())
	}
	if NeedsRedraw(&before, after) {
		t.Error("expected no redraw for numeric-only change")
	}
}

func TestDisplayKey(t *testing.T) {
	state := baseState()
	display := topology.DefaultDisplay()
	before := Take(state, display)

	display.Declutter = true
	if !NeedsRedraw(&before, Take(state, display)) {
		t.Error("expected redraw when declutter toggles")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	state := baseState()
	snap := Take(state, topology.DefaultDisplay())
	state.Inducts[0].Connections[0] = "z"
	if snap.Inducts[0].Connections[0] != "a" {
		t.Error("expected snapshot to be unaffected by later state mutation")
	}
}
