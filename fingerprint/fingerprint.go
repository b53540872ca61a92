// Package fingerprint decides whether a telemetry tick changed the diagram's
// structure. Numeric counters never take part in the comparison.
package fingerprint

import (
	"slices"
	"strconv"
	"strings"

	"github.com/xiaonanln/dtnview/topology"
)

// DisplayKey is the part of the display configuration that affects layout.
type DisplayKey struct {
	FontSize       float64
	TextMargin     float64
	Decimals       int
	Declutter      bool
	DeclutterNodes bool
	Shrink         bool
}

type InductEntry struct {
	ConvergenceLayer string
	Index            int
	Connections      []string
}

type OutductEntry struct {
	ConvergenceLayer string
	Index            int
	NextHop          uint64
	Destinations     []string
	LinkPhysical     topology.LinkState
	LinkSchedule     topology.LinkState
}

// Snapshot is the structural identity of one state.
type Snapshot struct {
	Display  DisplayKey
	Inducts  []InductEntry
	Outducts []OutductEntry
}

// Take captures the structure of state. The snapshot shares no memory with
// state, so later mutations do not leak into it.
func Take(state *topology.State, display topology.DisplayConfig) Snapshot {
	s := Snapshot{
		Display: DisplayKey{
			FontSize:       display.FontSize,
			TextMargin:     display.TextMargin,
			Decimals:       display.Decimals,
			Declutter:      display.Declutter,
			DeclutterNodes: display.DeclutterNodes,
			Shrink:         display.Shrink,
		},
		Inducts:  make([]InductEntry, 0, len(state.Inducts)),
		Outducts: make([]OutductEntry, 0, len(state.Outducts)),
	}
	for _, ind := range state.Inducts {
		s.Inducts = append(s.Inducts, InductEntry{
			ConvergenceLayer: ind.ConvergenceLayer,
			Index:            ind.Index,
			Connections:      slices.Clone(ind.Connections),
		})
	}
	for _, od := range state.Outducts {
		s.Outducts = append(s.Outducts, OutductEntry{
			ConvergenceLayer: od.ConvergenceLayer,
			Index:            od.Index,
			NextHop:          od.NextHopNodeID,
			Destinations:     slices.Clone(od.Destinations),
			LinkPhysical:     od.LinkPhysical,
			LinkSchedule:     od.LinkSchedule,
		})
	}
	return s
}

// Equal reports whether two snapshots describe the same structure.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Display != o.Display {
		return false
	}
	eqInduct := func(a, b InductEntry) bool {
		return a.ConvergenceLayer == b.ConvergenceLayer &&
			a.Index == b.Index &&
			slices.Equal(a.Connections, b.Connections)
	}
	eqOutduct := func(a, b OutductEntry) bool {
		return a.ConvergenceLayer == b.ConvergenceLayer &&
			a.Index == b.Index &&
			a.NextHop == b.NextHop &&
			a.LinkPhysical == b.LinkPhysical &&
			a.LinkSchedule == b.LinkSchedule &&
			slices.Equal(a.Destinations, b.Destinations)
	}
	return slices.EqualFunc(s.Inducts, o.Inducts, eqInduct) &&
		slices.EqualFunc(s.Outducts, o.Outducts, eqOutduct)
}

// String serializes the snapshot deterministically. Names are quoted so
// separators inside them cannot collide.
func (s Snapshot) String() string {
	var b strings.Builder
	d := s.Display
	b.WriteString("fontSize=" + strconv.FormatFloat(d.FontSize, 'g', -1, 64))
	b.WriteString(" textMargin=" + strconv.FormatFloat(d.TextMargin, 'g', -1, 64))
	b.WriteString(" decimals=" + strconv.Itoa(d.Decimals))
	b.WriteString(" declutter=" + strconv.FormatBool(d.Declutter))
	b.WriteString(" declutterNodes=" + strconv.FormatBool(d.DeclutterNodes))
	b.WriteString(" shrink=" + strconv.FormatBool(d.Shrink))
	b.WriteString(" |")

	for _, ind := range s.Inducts {
		b.WriteString(" induct=" + ind.ConvergenceLayer + "[" + strconv.Itoa(ind.Index) + "](")
		writeList(&b, ind.Connections)
		b.WriteString(");")
	}
	for _, od := range s.Outducts {
		b.WriteString(" outduct=" + od.ConvergenceLayer + "[" + strconv.Itoa(od.Index) + "]->")
		b.WriteString(strconv.FormatUint(od.NextHop, 10) + "(")
		writeList(&b, od.Destinations)
		b.WriteString(") linkIsUpPhysically=" + od.LinkPhysical.String())
		b.WriteString(" linkIsUpPerTimeSchedule=" + od.LinkSchedule.String() + ";")
	}
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(item))
	}
}

// NeedsRedraw reports whether next differs from prev. A nil prev means no
// frame has been drawn yet.
func NeedsRedraw(prev *Snapshot, next Snapshot) bool {
	return prev == nil || !prev.Equal(next)
}
