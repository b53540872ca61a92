// Package scene assembles routed topology into the drawable description the
// browser renders. Display policies here only filter; they never move
// anything.
package scene

import (
	"github.com/xiaonanln/dtnview/rate"
	"github.com/xiaonanln/dtnview/reconcile"
	"github.com/xiaonanln/dtnview/routing"
	"github.com/xiaonanln/dtnview/topology"
)

// NodeView is a positioned node with its visible children. Children is null
// for kinds that render no child rows.
type NodeView struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Kind     topology.Kind    `json:"kind"`
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	RelX     float64          `json:"relX"`
	RelY     float64          `json:"relY"`
	Width    float64          `json:"width"`
	Height   float64          `json:"height"`
	Up       bool             `json:"up"`
	Rates    *topology.Rates  `json:"rates,omitempty"`
	Busbar   *topology.Busbar `json:"busbar,omitempty"`
	Children []NodeView       `json:"children"`
}

// WireView is a routed wire ready to draw.
type WireView struct {
	ID         string        `json:"id"`
	Src        string        `json:"src"`
	Dest       string        `json:"dest"`
	Group      string        `json:"group"`
	Points     topology.Path `json:"points"`
	D          string        `json:"d"`
	PrevD      string        `json:"prevD,omitempty"`
	On         bool          `json:"on"`
	Label      string        `json:"label"`
	MiddleText bool          `json:"middleText"`
	XDropNorm  float64       `json:"xDropNorm"`
	YJumps     []float64     `json:"yJumps"`
}

// RateView is one summary rate.
type RateView struct {
	BitsPerSec  float64 `json:"bitsPerSec"`
	ItemsPerSec float64 `json:"itemsPerSec"`
	Ready       bool    `json:"ready"`
	Label       string  `json:"label"`
}

// SummaryView carries the module level rates and disk usage.
type SummaryView struct {
	Rates          map[string]RateView `json:"rates"`
	UsedSpaceBytes uint64              `json:"usedSpaceBytes"`
	FreeSpaceBytes uint64              `json:"freeSpaceBytes"`
	UsedSpace      string              `json:"usedSpace"`
	FreeSpace      string              `json:"freeSpace"`
	BundlesOnDisk  uint64              `json:"bundlesOnDisk"`
}

// Changes lists what entered and left since the previous scene.
type Changes struct {
	Nodes reconcile.KeySets `json:"nodes"`
	Wires reconcile.KeySets `json:"wires"`
}

// Scene is the complete drawable description of one frame.
type Scene struct {
	Generation        uint64      `json:"generation"`
	Ingress           []NodeView  `json:"ingress"`
	Egress            []NodeView  `json:"egress"`
	Storage           []NodeView  `json:"storage"`
	NextHops          []NodeView  `json:"nextHops"`
	FinalDestinations []NodeView  `json:"finalDestinations"`
	ActiveConnections []NodeView  `json:"activeConnections"`
	Wires             []WireView  `json:"wires"`
	Summary           SummaryView `json:"summary"`
	Changes           Changes     `json:"changes"`
}

// Policy selects what the scene shows.
type Policy struct {
	Decimals       int
	Declutter      bool
	DeclutterNodes bool
	Shrink         bool
}

// PolicyFrom extracts the scene policy from the display configuration.
func PolicyFrom(d topology.DisplayConfig) Policy {
	return Policy{
		Decimals:       d.Decimals,
		Declutter:      d.Declutter,
		DeclutterNodes: d.DeclutterNodes,
		Shrink:         d.Shrink,
	}
}

type builder struct {
	nodes  *topology.NodeSet
	policy Policy
	hidden map[string]bool
}

// Build assembles the scene for a routed layout.
func Build(layout *topology.Layout, policy Policy) *Scene {
	b := &builder{nodes: layout.Nodes, policy: policy, hidden: hiddenNodes(layout.Nodes, policy)}

	s := &Scene{
		Ingress:           b.views(layout.Ingress),
		Egress:            b.views(layout.Egress),
		Storage:           b.views(layout.Storage),
		NextHops:          b.views(layout.NextHops),
		FinalDestinations: b.views(layout.FinalDestinations),
		ActiveConnections: b.views(layout.ActiveConnections),
		Wires:             make([]WireView, 0, len(layout.Wires)),
	}

	for _, w := range layout.Wires {
		if b.hidden[w.SrcID] || b.hidden[w.DestID] {
			continue
		}
		src, srcOK := b.nodes.Get(w.SrcID)
		dest, destOK := b.nodes.Get(w.DestID)
		if !srcOK || !destOK {
			continue
		}
		on := src.Up() && dest.Up()
		if policy.Declutter && !on {
			continue
		}
		from, to := src.PortOut(), dest.PortIn()
		s.Wires = append(s.Wires, WireView{
			ID:         w.ID,
			Src:        w.SrcID,
			Dest:       w.DestID,
			Group:      w.Group,
			Points:     w.PathCurrent,
			D:          routing.SVGPath(w, from, to),
			PrevD:      routing.PathD(w.PathPrev),
			On:         on,
			Label:      WireLabel(src, dest, policy.Decimals),
			MiddleText: w.MiddleText,
			XDropNorm:  w.XDropNorm,
			YJumps:     w.YJumps,
		})
	}
	return s
}

// hiddenNodes applies the node-level policies. A hidden node hides its
// whole subtree and every wire that touches it.
func hiddenNodes(nodes *topology.NodeSet, policy Policy) map[string]bool {
	hidden := make(map[string]bool)
	for _, n := range nodes.All() {
		if policy.DeclutterNodes && n.Kind == topology.KindOutduct && n.LinkPhysical == topology.LinkDown {
			hidden[n.ID] = true
		}
		if policy.Shrink && (n.Width <= 0 || n.Height <= 0) {
			hidden[n.ID] = true
		}
	}
	// descendants of hidden nodes
	for _, n := range nodes.All() {
		for p := n.ParentID; p != ""; {
			if hidden[p] {
				hidden[n.ID] = true
				break
			}
			parent, ok := nodes.Get(p)
			if !ok {
				break
			}
			p = parent.ParentID
		}
	}
	if policy.Shrink {
		for _, n := range nodes.All() {
			if n.Kind != topology.KindActiveConnectionPanel && n.Kind != topology.KindFinalDestinationPanel {
				continue
			}
			empty := true
			for _, cid := range n.Children {
				if !hidden[cid] {
					empty = false
					break
				}
			}
			if empty {
				hidden[n.ID] = true
			}
		}
	}
	return hidden
}

func (b *builder) views(ids []string) []NodeView {
	out := make([]NodeView, 0, len(ids))
	for _, id := range ids {
		if b.hidden[id] {
			continue
		}
		if n, ok := b.nodes.Get(id); ok {
			out = append(out, b.view(n))
		}
	}
	return out
}

func (b *builder) view(n *topology.Node) NodeView {
	v := NodeView{
		ID:     n.ID,
		Name:   n.Name,
		Kind:   n.Kind,
		X:      n.AbsX,
		Y:      n.AbsY,
		RelX:   n.RelX,
		RelY:   n.RelY,
		Width:  n.Width,
		Height: n.Height,
		Up:     n.Up(),
		Rates:  copyRates(n.Rates),
		Busbar: n.Busbar,
	}
	if n.Children != nil {
		v.Children = make([]NodeView, 0, len(n.Children))
		for _, cid := range n.Children {
			if b.hidden[cid] {
				continue
			}
			if c, ok := b.nodes.Get(cid); ok {
				v.Children = append(v.Children, b.view(c))
			}
		}
	}
	return v
}

func copyRates(r *topology.Rates) *topology.Rates {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// WireLabel renders the rates of src, or of dest when src carries none.
func WireLabel(src, dest *topology.Node, decimals int) string {
	r := src.Rates
	if r == nil {
		r = dest.Rates
	}
	if r == nil {
		return ""
	}
	return RateLabel(r.BitsPerSec, r.ItemsPerSec, decimals)
}

// RateLabel formats a bit rate and a bundle rate side by side.
func RateLabel(bits, items float64, decimals int) string {
	return rate.FormatHumanReadable(bits, decimals, "bit/s", 1000) + "  " +
		rate.FormatHumanReadable(items, decimals, "Bun/s", 1000)
}

// Relabel refreshes the numeric parts of s from nodes without re-running
// layout: node rates, link states, wire labels and on/off.
func Relabel(s *Scene, nodes *topology.NodeSet, policy Policy) {
	var walk func(views []NodeView)
	walk = func(views []NodeView) {
		for i := range views {
			v := &views[i]
			if n, ok := nodes.Get(v.ID); ok {
				v.Rates = copyRates(n.Rates)
				v.Up = n.Up()
			}
			walk(v.Children)
		}
	}
	for _, list := range [][]NodeView{s.Ingress, s.Egress, s.Storage, s.NextHops, s.FinalDestinations, s.ActiveConnections} {
		walk(list)
	}

	for i := range s.Wires {
		w := &s.Wires[i]
		src, srcOK := nodes.Get(w.Src)
		dest, destOK := nodes.Get(w.Dest)
		if !srcOK || !destOK {
			continue
		}
		w.On = src.Up() && dest.Up()
		w.Label = WireLabel(src, dest, policy.Decimals)
	}
}

// CountNodes returns the number of views in a forest, children included.
func CountNodes(views []NodeView) int {
	n := 0
	for _, v := range views {
		n += 1 + CountNodes(v.Children)
	}
	return n
}

// Find returns the view with the given id anywhere in the scene.
func (s *Scene) Find(id string) (*NodeView, bool) {
	var find func(views []NodeView) *NodeView
	find = func(views []NodeView) *NodeView {
		for i := range views {
			if views[i].ID == id {
				return &views[i]
			}
			if v := find(views[i].Children); v != nil {
				return v
			}
		}
		return nil
	}
	for _, list := range [][]NodeView{s.Ingress, s.Egress, s.Storage, s.NextHops, s.FinalDestinations, s.ActiveConnections} {
		if v := find(list); v != nil {
			return v, true
		}
	}
	return nil, false
}

// Wire returns the wire view with the given id.
func (s *Scene) Wire(id string) (*WireView, bool) {
	for i := range s.Wires {
		if s.Wires[i].ID == id {
			return &s.Wires[i], true
		}
	}
	return nil, false
}

// Clone returns a copy of s that can be relabelled without touching s.
// Wire geometry is shared.
func (s *Scene) Clone() *Scene {
	c := *s
	c.Ingress = cloneViews(s.Ingress)
	c.Egress = cloneViews(s.Egress)
	c.Storage = cloneViews(s.Storage)
	c.NextHops = cloneViews(s.NextHops)
	c.FinalDestinations = cloneViews(s.FinalDestinations)
	c.ActiveConnections = cloneViews(s.ActiveConnections)
	if s.Wires != nil {
		c.Wires = append([]WireView(nil), s.Wires...)
	}
	return &c
}

func cloneViews(views []NodeView) []NodeView {
	if views == nil {
		return nil
	}
	out := make([]NodeView, len(views))
	for i, v := range views {
		v.Rates = copyRates(v.Rates)
		v.Children = cloneViews(v.Children)
		out[i] = v
	}
	return out
}
