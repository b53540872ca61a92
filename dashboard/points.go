package dashboard

import (
	"github.com/xiaonanln/dtnview/history"
	"github.com/xiaonanln/dtnview/scene"
	"github.com/xiaonanln/dtnview/telemetry"
	"github.com/xiaonanln/dtnview/topology"
)

var summaryKeys = map[telemetry.RecordKind][]string{
	telemetry.KindIngress: {scene.RateIngressToStorage, scene.RateIngressToEgress},
	telemetry.KindEgress:  {scene.RateEgressToIngress},
	telemetry.KindStorage: {scene.RateStorageToEgress, scene.RateStorageToDisk, scene.RateDiskToStorage, scene.RateDiskErase},
}

func point(series string, ts int64, rp *topology.RatePair) history.Point {
	return history.Point{
		Series:          series,
		TimestampMillis: ts,
		BitsPerSec:      rp.Bits.Current(),
		ItemsPerSec:     rp.Items.Current(),
	}
}

// readyPoints lists the rates the applied record updated that have enough
// history to plot.
func readyPoints(state *topology.State, rec telemetry.Record) []history.Point {
	var ts int64
	switch r := rec.(type) {
	case *telemetry.IngressTelemetry:
		ts = r.TimestampMillis
	case *telemetry.EgressTelemetry:
		ts = r.TimestampMillis
	case *telemetry.StorageTelemetry:
		ts = r.TimestampMillis
	default:
		return nil
	}

	var points []history.Point
	pairs := scene.SummaryPairs(&state.Summary)
	for _, key := range summaryKeys[rec.Kind()] {
		if rp := pairs[key]; rp != nil && rp.Ready() {
			points = append(points, point(history.SummarySeries(key), ts, rp))
		}
	}

	switch rec.Kind() {
	case telemetry.KindIngress:
		for _, ind := range state.Inducts {
			for _, conn := range ind.Connections {
				if rp := ind.ConnRates[conn]; rp != nil && rp.Ready() {
					points = append(points, point(history.InductSeries(ind.Index, conn), ts, rp))
				}
			}
		}
	case telemetry.KindEgress:
		for _, od := range state.Outducts {
			if od.Rates != nil && od.Rates.Ready() {
				points = append(points, point(history.OutductSeries(od.Index), ts, od.Rates))
			}
		}
	}
	return points
}
