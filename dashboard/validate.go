package dashboard

import (
	"github.com/xiaonanln/dtnview/telemetry"
	"github.com/xiaonanln/dtnview/topology"
)

// validate checks rec against the current state. Nothing is mutated, so a
// rejected record leaves the previous generation authoritative.
func validate(state *topology.State, rec telemetry.Record) error {
	switch r := rec.(type) {
	case *telemetry.Config:
		return validateConfig(r)
	case *telemetry.IngressTelemetry:
		if !state.Configured() {
			return ErrNotConfigured
		}
		return validateIngress(state, r)
	case *telemetry.EgressTelemetry:
		if !state.Configured() {
			return ErrNotConfigured
		}
		return validateEgress(state, r)
	case *telemetry.CapabilityTelemetry:
		if !state.Configured() {
			return ErrNotConfigured
		}
		return validateCapabilities(state, r)
	case *telemetry.StorageTelemetry:
		return nil
	default:
		return &RecordError{Kind: "unknown", Index: -1, Reason: "unsupported record type"}
	}
}

func validateConfig(cfg *telemetry.Config) error {
	for i, ic := range cfg.Inducts.InductVector {
		if ic.ConvergenceLayer == "" {
			return recordError(telemetry.KindConfig, i, "induct has no convergenceLayer")
		}
	}
	for i, oc := range cfg.Outducts.OutductVector {
		if oc.ConvergenceLayer == "" {
			return recordError(telemetry.KindConfig, i, "outduct has no convergenceLayer")
		}
	}
	return nil
}

func validateIngress(state *topology.State, rec *telemetry.IngressTelemetry) error {
	if n := len(state.Inducts); len(rec.Inducts) > n {
		return recordError(telemetry.KindIngress, n,
			"induct index out of range, %d inducts configured", n)
	} else if len(rec.Inducts) < n {
		return recordError(telemetry.KindIngress, len(rec.Inducts),
			"induct missing, %d of %d inducts reported", len(rec.Inducts), n)
	}
	for i, it := range rec.Inducts {
		if cl := state.Inducts[i].ConvergenceLayer; it.ConvergenceLayer != "" && it.ConvergenceLayer != cl {
			return recordError(telemetry.KindIngress, i, "convergenceLayer %q does not match configured %q", it.ConvergenceLayer, cl)
		}
		for _, ct := range it.Connections {
			if ct.ConnectionName == "" {
				return recordError(telemetry.KindIngress, i, "connection without a name")
			}
		}
	}
	return nil
}

func validateEgress(state *topology.State, rec *telemetry.EgressTelemetry) error {
	if n := len(state.Outducts); len(rec.Outducts) > n {
		return recordError(telemetry.KindEgress, n,
			"outduct index out of range, %d outducts configured", n)
	} else if len(rec.Outducts) < n {
		return recordError(telemetry.KindEgress, len(rec.Outducts),
			"outduct missing, %d of %d outducts reported", len(rec.Outducts), n)
	}
	for i, ot := range rec.Outducts {
		if cl := state.Outducts[i].ConvergenceLayer; ot.ConvergenceLayer != "" && ot.ConvergenceLayer != cl {
			return recordError(telemetry.KindEgress, i, "convergenceLayer %q does not match configured %q", ot.ConvergenceLayer, cl)
		}
	}
	return nil
}

func validateCapabilities(state *topology.State, rec *telemetry.CapabilityTelemetry) error {
	for i, c := range rec.Capabilities {
		if c.OutductArrayIndex < 0 || c.OutductArrayIndex >= len(state.Outducts) {
			return recordError(telemetry.KindCapabilities, i, "outductArrayIndex %d out of range", c.OutductArrayIndex)
		}
		if want := state.Outducts[c.OutductArrayIndex].NextHopNodeID; c.NextHopNodeID != want {
			return recordError(telemetry.KindCapabilities, i, "nextHopNodeId %d does not match configured %d", c.NextHopNodeID, want)
		}
	}
	return nil
}
