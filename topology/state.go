package topology

import (
	"github.com/xiaonanln/dtnview/rate"
	"github.com/xiaonanln/dtnview/telemetry"
)

// NullConnection is the reserved connection name that shows an induct row
// without a remote connection.
const NullConnection = "null"

// RatePair tracks the bit and item rate of one counter pair.
type RatePair struct {
	Bits  *rate.Sample
	Items *rate.Sample
}

// NewRatePair creates an empty RatePair.
func NewRatePair() *RatePair {
	return &RatePair{Bits: rate.NewBitRate(), Items: rate.NewItemRate()}
}

// Update feeds both counters observed at ts.
func (p *RatePair) Update(bytes, items uint64, ts int64) {
	p.Bits.Update(float64(bytes), ts)
	p.Items.Update(float64(items), ts)
}

// Rates returns the current rates.
func (p *RatePair) Rates() *Rates {
	return &Rates{BitsPerSec: p.Bits.Current(), ItemsPerSec: p.Items.Current()}
}

// Ready reports whether both samples have enough history to be plotted.
func (p *RatePair) Ready() bool {
	return p.Bits.Ready() && p.Items.Ready()
}

// InductState is one configured induct and its live connections.
type InductState struct {
	Index            int
	Name             string
	ConvergenceLayer string
	// Connections holds the active connection names in telemetry order.
	Connections []string
	ConnRates   map[string]*RatePair
	InputNames  map[string]string
}

// OutductState is one configured outduct with its advertised destinations.
type OutductState struct {
	Index            int
	Name             string
	ConvergenceLayer string
	NextHopNodeID    uint64
	Destinations     []string
	LinkPhysical     LinkState
	LinkSchedule     LinkState
	// Rates is nil until egress telemetry has been seen for the outduct.
	Rates *RatePair
}

// Summary holds the module level rates behind the dashboard graphs.
type Summary struct {
	IngressToStorage *RatePair
	IngressToEgress  *RatePair
	EgressToIngress  *RatePair
	StorageToEgress  *RatePair
	StorageToDisk    *RatePair
	DiskToStorage    *RatePair
	DiskErase        *RatePair

	UsedSpaceBytes    uint64
	FreeSpaceBytes    uint64
	BundlesOnDisk     uint64
	BundleBytesOnDisk uint64

	IngressTimestamp int64
	EgressTimestamp  int64
	StorageTimestamp int64
}

func newSummary() Summary {
	return Summary{
		IngressToStorage: NewRatePair(),
		IngressToEgress:  NewRatePair(),
		EgressToIngress:  NewRatePair(),
		StorageToEgress:  NewRatePair(),
		StorageToDisk:    NewRatePair(),
		DiskToStorage:    NewRatePair(),
		DiskErase:        NewRatePair(),
	}
}

// State is the structural configuration of the relay merged with its live
// telemetry. The Apply methods expect records that were already validated
// against the state; out of range entries are ignored.
type State struct {
	ConfigName string
	NodeID     uint64
	Inducts    []*InductState
	Outducts   []*OutductState
	Summary    Summary

	configured bool
}

// NewState creates an unconfigured state.
func NewState() *State {
	return &State{Summary: newSummary()}
}

// Configured reports whether a structural config has been applied.
func (s *State) Configured() bool {
	return s.configured
}

// ApplyConfig starts a new structural generation from cfg.
func (s *State) ApplyConfig(cfg *telemetry.Config) {
	s.ConfigName = cfg.Name
	s.NodeID = cfg.MyNodeID
	s.Inducts = make([]*InductState, 0, len(cfg.Inducts.InductVector))
	for i, ic := range cfg.Inducts.InductVector {
		s.Inducts = append(s.Inducts, &InductState{
			Index:            i,
			Name:             ic.Name,
			ConvergenceLayer: ic.ConvergenceLayer,
			ConnRates:        make(map[string]*RatePair),
			InputNames:       make(map[string]string),
		})
	}
	s.Outducts = make([]*OutductState, 0, len(cfg.Outducts.OutductVector))
	for i, oc := range cfg.Outducts.OutductVector {
		s.Outducts = append(s.Outducts, &OutductState{
			Index:            i,
			Name:             oc.Name,
			ConvergenceLayer: oc.ConvergenceLayer,
			NextHopNodeID:    oc.NextHopNodeID,
			Destinations:     uniqueStrings(oc.FinalDestinationEidUris),
		})
	}
	s.Summary = newSummary()
	s.configured = true
}

// ApplyIngress replaces the active connections of every induct and feeds the
// ingress counters.
func (s *State) ApplyIngress(rec *telemetry.IngressTelemetry) {
	ts := rec.TimestampMillis
	s.Summary.IngressTimestamp = ts
	s.Summary.IngressToStorage.Update(rec.BundleByteCountStorage, rec.BundleCountStorage, ts)
	s.Summary.IngressToEgress.Update(rec.BundleByteCountEgress, rec.BundleCountEgress, ts)

	for i, it := range rec.Inducts {
		if i >= len(s.Inducts) {
			break
		}
		ind := s.Inducts[i]
		names := make([]string, 0, len(it.Connections))
		seen := make(map[string]bool, len(it.Connections))
		for _, ct := range it.Connections {
			if seen[ct.ConnectionName] {
				continue
			}
			seen[ct.ConnectionName] = true
			names = append(names, ct.ConnectionName)

			rp, ok := ind.ConnRates[ct.ConnectionName]
			if !ok {
				rp = NewRatePair()
				ind.ConnRates[ct.ConnectionName] = rp
			}
			rp.Update(ct.TotalBundleBytesReceived, ct.TotalBundlesReceived, ts)
			ind.InputNames[ct.ConnectionName] = ct.InputName
		}
		// forget connections that dropped so a reconnect starts a fresh sample
		for name := range ind.ConnRates {
			if !seen[name] {
				delete(ind.ConnRates, name)
				delete(ind.InputNames, name)
			}
		}
		ind.Connections = names
	}
}

// ApplyEgress updates the outduct link flags and acked-bundle rates.
func (s *State) ApplyEgress(rec *telemetry.EgressTelemetry) {
	ts := rec.TimestampMillis
	s.Summary.EgressTimestamp = ts
	s.Summary.EgressToIngress.Update(
		rec.TotalTcpclBundleBytesReceived+rec.TotalStorageToIngressOpportunisticBundleBytes,
		rec.TotalTcpclBundlesReceived+rec.TotalStorageToIngressOpportunisticBundles,
		ts)

	for i, ot := range rec.Outducts {
		if i >= len(s.Outducts) {
			break
		}
		od := s.Outducts[i]
		od.LinkPhysical = LinkStateOf(ot.LinkIsUpPhysically)
		od.LinkSchedule = LinkStateOf(ot.LinkIsUpPerTimeSchedule)
		if od.Rates == nil {
			od.Rates = NewRatePair()
		}
		od.Rates.Update(ot.TotalBundleBytesAcked, ot.TotalBundlesAcked, ts)
	}
}

// ApplyCapabilities merges advertised final destinations by outduct index.
func (s *State) ApplyCapabilities(rec *telemetry.CapabilityTelemetry) {
	for _, c := range rec.Capabilities {
		if c.OutductArrayIndex < 0 || c.OutductArrayIndex >= len(s.Outducts) {
			continue
		}
		od := s.Outducts[c.OutductArrayIndex]
		if od.NextHopNodeID != c.NextHopNodeID {
			continue
		}
		od.Destinations = uniqueStrings(c.FinalDestinationEids)
	}
}

// ApplyStorage feeds the disk counters.
func (s *State) ApplyStorage(rec *telemetry.StorageTelemetry) {
	ts := rec.TimestampMillis
	sum := &s.Summary
	sum.StorageTimestamp = ts
	sum.StorageToEgress.Update(rec.BundleBytesSentToEgress(), rec.BundlesSentToEgress(), ts)
	sum.StorageToDisk.Update(rec.TotalBundleByteWriteOperationsToDisk, rec.TotalBundleWriteOperationsToDisk, ts)
	sum.DiskToStorage.Update(rec.TotalBundleBytesSentToEgressFromStorageReadFromDisk, rec.TotalBundlesSentToEgressFromStorageReadFromDisk, ts)
	sum.DiskErase.Update(rec.TotalBundleByteEraseOperationsFromDisk, rec.TotalBundleEraseOperationsFromDisk, ts)
	sum.UsedSpaceBytes = rec.UsedSpaceBytes
	sum.FreeSpaceBytes = rec.FreeSpaceBytes
	sum.BundlesOnDisk = rec.NumBundlesOnDisk
	sum.BundleBytesOnDisk = rec.NumBundleBytesOnDisk
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
