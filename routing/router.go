// Package routing spreads same-group wires apart and computes where a wire's
// vertical run has to jump over another wire's horizontal run.
package routing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/xiaonanln/dtnview/topology"
)

const (
	// OverlapTolerance widens each vertical span when testing for overlap.
	OverlapTolerance = 3.0
	// ArcRadius is the radius of a jump-over arc.
	ArcRadius = 8.0
)

// ErrDanglingWire is returned when a wire endpoint is not in the node set.
var ErrDanglingWire = errors.New("wire endpoint not in node set")

type routed struct {
	wire *topology.Wire
	src  topology.Point
	dest topology.Point
}

func (r *routed) lo() float64 { return min(r.src.Y, r.dest.Y) }
func (r *routed) hi() float64 { return max(r.src.Y, r.dest.Y) }

func (r *routed) xMid() float64 {
	return r.src.X + (r.dest.X-r.src.X)*r.wire.XDropNorm
}

func (r *routed) goingDown() bool {
	return r.src.Y < r.dest.Y
}

// Endpoints resolves the attachment points of w.
func Endpoints(nodes *topology.NodeSet, w *topology.Wire) (topology.Point, topology.Point, error) {
	src, ok := nodes.Get(w.SrcID)
	if !ok {
		return topology.Point{}, topology.Point{}, fmt.Errorf("%w: wire %s source %s", ErrDanglingWire, w.ID, w.SrcID)
	}
	dest, ok := nodes.Get(w.DestID)
	if !ok {
		return topology.Point{}, topology.Point{}, fmt.Errorf("%w: wire %s destination %s", ErrDanglingWire, w.ID, w.DestID)
	}
	return src.PortOut(), dest.PortIn(), nil
}

// Route assigns XDropNorm, YJumps and PathCurrent to every wire. Wires are
// only compared with wires of the same group. If any endpoint is missing
// Route returns ErrDanglingWire before touching any wire.
func Route(nodes *topology.NodeSet, wires []*topology.Wire) error {
	all := make([]*routed, 0, len(wires))
	for _, w := range wires {
		src, dest, err := Endpoints(nodes, w)
		if err != nil {
			return err
		}
		all = append(all, &routed{wire: w, src: src, dest: dest})
	}

	var groupOrder []string
	groups := make(map[string][]*routed)
	for _, r := range all {
		if _, ok := groups[r.wire.Group]; !ok {
			groupOrder = append(groupOrder, r.wire.Group)
		}
		groups[r.wire.Group] = append(groups[r.wire.Group], r)
	}

	for _, name := range groupOrder {
		group := groups[name]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].src.Y != group[j].src.Y {
				return group[i].src.Y < group[j].src.Y
			}
			return group[i].wire.ID < group[j].wire.ID
		})
		assignXDrops(group)
		for _, r := range group {
			r.wire.PathCurrent = PathWithoutJumps(r.src, r.dest, r.wire.XDropNorm)
		}
		computeJumps(group)
	}
	return nil
}

// overlaps reports whether the vertical spans of a and b, each widened by
// OverlapTolerance, intersect.
func overlaps(a, b *routed) bool {
	return a.lo()-OverlapTolerance <= b.hi()+OverlapTolerance &&
		b.lo()-OverlapTolerance <= a.hi()+OverlapTolerance
}

// components splits a sorted group into overlap components. Members keep
// the group's sort order.
func components(group []*routed) [][]*routed {
	visited := make([]bool, len(group))
	var out [][]*routed
	for start := range group {
		if visited[start] {
			continue
		}
		visited[start] = true
		members := []int{start}
		stack := []int{start}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for next := range group {
				if visited[next] || !overlaps(group[cur], group[next]) {
					continue
				}
				visited[next] = true
				members = append(members, next)
				stack = append(stack, next)
			}
		}
		sort.Ints(members)
		comp := make([]*routed, 0, len(members))
		for _, idx := range members {
			comp = append(comp, group[idx])
		}
		out = append(out, comp)
	}
	return out
}

func assignXDrops(group []*routed) {
	for _, comp := range components(group) {
		n := float64(len(comp))
		down := comp[0].goingDown()
		for j, r := range comp {
			if r.wire.ManualXDropNorm != nil {
				r.wire.XDropNorm = *r.wire.ManualXDropNorm
				continue
			}
			if down {
				r.wire.XDropNorm = (n - float64(j)) / (n + 1)
			} else {
				r.wire.XDropNorm = float64(j+1) / (n + 1)
			}
		}
	}
}

func between(a, b1, b2 float64) bool {
	return a >= min(b1, b2) && a <= max(b1, b2)
}

func strictlyBetween(a, b1, b2 float64) bool {
	return a > min(b1, b2) && a < max(b1, b2)
}

// computeJumps records every y where a wire's vertical run crosses the
// horizontal runs of the other wires in its group. Crossings at the ends of
// the vertical run are corners, not jumps.
func computeJumps(group []*routed) {
	for i, w0 := range group {
		x := w0.xMid()
		jumps := make([]float64, 0)
		for j, w1 := range group {
			if i == j {
				continue
			}
			x1 := w1.xMid()
			if between(x, w1.src.X, x1) && strictlyBetween(w1.src.Y, w0.src.Y, w0.dest.Y) {
				jumps = append(jumps, w1.src.Y)
			}
			if between(x, x1, w1.dest.X) && strictlyBetween(w1.dest.Y, w0.src.Y, w0.dest.Y) {
				jumps = append(jumps, w1.dest.Y)
			}
		}
		sort.Float64s(jumps)
		w0.wire.YJumps = jumps
	}
}

// PathWithoutJumps is the three-segment route from src to dest with its
// vertical run at xDrop of the horizontal span.
func PathWithoutJumps(src, dest topology.Point, xDrop float64) topology.Path {
	xMid := src.X + (dest.X-src.X)*xDrop
	return topology.Path{
		src,
		{X: xMid, Y: src.Y},
		{X: xMid, Y: dest.Y},
		dest,
	}
}
