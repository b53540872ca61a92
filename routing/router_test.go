package routing

import (
	"errors"
	"slices"
	"testing"

	"github.com/xiaonanln/dtnview/topology"
)

// fixture places zero-height nodes so that ports sit exactly at the given y.
type fixture struct {
	nodes *topology.NodeSet
}

func newFixture() *fixture {
	return &fixture{nodes: topology.NewNodeSet()}
}

func (f *fixture) wire(name, group string, srcY, destY float64) *topology.Wire {
	src := &topology.Node{ID: name + "_src", AbsX: 0, AbsY: srcY, Width: 10}
	dest := &topology.Node{ID: name + "_dest", AbsX: 100, AbsY: destY, Width: 10}
	f.nodes.Add(src)
	f.nodes.Add(dest)
	return topology.NewWire(src.ID, dest.ID, group)
}

func manual(v float64) *float64 {
	return &v
}

func TestSingleWireCentred(t *testing.T) {
	f := newFixture()
	w := f.wire("a", "g", 0, 100)
	if err := Route(f.nodes, []*topology.Wire{w}); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if w.XDropNorm != 0.5 {
		t.Errorf("expected xDropNorm 0.5, got %f", w.XDropNorm)
	}
	if len(w.PathCurrent) != 4 {
		t.Fatalf("expected 4 path points, got %d", len(w.PathCurrent))
	}
	if w.PathCurrent[1].X != 55 || w.PathCurrent[2].X != 55 {
		t.Errorf("expected vertical run at x=55, got %+v", w.PathCurrent)
	}
}

func TestOverlappingWiresGetDistinctDrops(t *testing.T) {
	f := newFixture()
	var wires []*topology.Wire
	for i, y := range []float64{0, 10, 20, 30, 40} {
		wires = append(wires, f.wire(string(rune('a'+i)), "g", y, 100))
	}
	if err := Route(f.nodes, wires); err != nil {
		t.Fatalf("Route failed: %v", err)
	}

	seen := make(map[float64]string)
	for _, w := range wires {
		if other, dup := seen[w.XDropNorm]; dup {
			t.Errorf("wires %s and %s share xDropNorm %f", w.ID, other, w.XDropNorm)
		}
		seen[w.XDropNorm] = w.ID
		if w.XDropNorm <= 0 || w.XDropNorm >= 1 {
			t.Errorf("wire %s has xDropNorm %f outside (0,1)", w.ID, w.XDropNorm)
		}
	}
}

func TestDropOrderFollowsDirection(t *testing.T) {
	tests := []struct {
		name  string
		spans [][2]float64
		want  []float64
	}{
		{"going down", [][2]float64{{0, 100}, {10, 110}, {20, 120}}, []float64{0.75, 0.5, 0.25}},
		{"going up", [][2]float64{{100, 0}, {110, 10}, {120, 20}}, []float64{0.25, 0.5, 0.75}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			var wires []*topology.Wire
			// add in reverse so the router has to sort
			for i := len(tt.spans) - 1; i >= 0; i-- {
				wires = append(wires, f.wire(string(rune('a'+i)), "g", tt.spans[i][0], tt.spans[i][1]))
			}
			if err := Route(f.nodes, wires); err != nil {
				t.Fatalf("Route failed: %v", err)
			}
			for i := range tt.spans {
				w := wires[len(tt.spans)-1-i]
				if w.XDropNorm != tt.want[i] {
					t.Errorf("wire %d: expected xDropNorm %f, got %f", i, tt.want[i], w.XDropNorm)
				}
			}
		})
	}
}

func TestManualOverride(t *testing.T) {
	f := newFixture()
	a := f.wire("a", "g", 0, 100)
	b := f.wire("b", "g", 10, 110)
	a.ManualXDropNorm = manual(0.9)
	b.ManualXDropNorm = manual(0.9)
	if err := Route(f.nodes, []*topology.Wire{a, b}); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if a.XDropNorm != 0.9 || b.XDropNorm != 0.9 {
		t.Errorf("expected manual overrides to apply, got %f and %f", a.XDropNorm, b.XDropNorm)
	}
}

func TestSeparateComponentsAndGroups(t *testing.T) {
	f := newFixture()
	a := f.wire("a", "g", 0, 10)
	b := f.wire("b", "g", 100, 110)
	c := f.wire("c", "other", 0, 10)
	if err := Route(f.nodes, []*topology.Wire{a, b, c}); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	for _, w := range []*topology.Wire{a, b, c} {
		if w.XDropNorm != 0.5 {
			t.Errorf("wire %s: expected xDropNorm 0.5, got %f", w.ID, w.XDropNorm)
		}
	}
}

func TestToleranceBand(t *testing.T) {
	f := newFixture()
	a := f.wire("a", "g", 0, 10)
	b := f.wire("b", "g", 15, 30)
	if err := Route(f.nodes, []*topology.Wire{a, b}); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if a.XDropNorm == b.XDropNorm {
		t.Errorf("expected spans 5 units apart to overlap within the tolerance, both got %f", a.XDropNorm)
	}

	f = newFixture()
	a = f.wire("a", "g", 0, 10)
	b = f.wire("b", "g", 17, 30)
	if err := Route(f.nodes, []*topology.Wire{a, b}); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if a.XDropNorm != 0.5 || b.XDropNorm != 0.5 {
		t.Errorf("expected spans 7 units apart to stay independent, got %f and %f", a.XDropNorm, b.XDropNorm)
	}
}

func TestJumps(t *testing.T) {
	f := newFixture()
	w0 := f.wire("w0", "g", 0, 100)
	w1 := f.wire("w1", "g", 50, 60)
	w2 := f.wire("w2", "g", 20, 20)
	w0.ManualXDropNorm = manual(0.75)
	w1.ManualXDropNorm = manual(0.25)
	w2.ManualXDropNorm = manual(1)

	if err := Route(f.nodes, []*topology.Wire{w0, w1, w2}); err != nil {
		t.Fatalf("Route failed: %v", err)
	}

	if !slices.Equal(w0.YJumps, []float64{20, 60}) {
		t.Errorf("expected w0 jumps [20 60], got %v", w0.YJumps)
	}
	if len(w1.YJumps) != 0 {
		t.Errorf("expected no jumps on w1, got %v", w1.YJumps)
	}
	if len(w2.YJumps) != 0 {
		t.Errorf("expected no jumps on flat w2, got %v", w2.YJumps)
	}
}

func TestConvergingWiresDoNotJumpAtSharedPort(t *testing.T) {
	nodes := topology.NewNodeSet()
	nodes.Add(&topology.Node{ID: "a", AbsY: 0, Width: 10})
	nodes.Add(&topology.Node{ID: "b", AbsY: 50, Width: 10})
	nodes.Add(&topology.Node{ID: "hop", AbsX: 100, AbsY: 100, Width: 10})
	wa := topology.NewWire("a", "hop", "g")
	wb := topology.NewWire("b", "hop", "g")

	if err := Route(nodes, []*topology.Wire{wa, wb}); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if wa.XDropNorm <= wb.XDropNorm {
		t.Fatalf("expected wa to drop further right than wb, got %f and %f", wa.XDropNorm, wb.XDropNorm)
	}
	// wb's last run ends at the port where wa's vertical run also ends
	if len(wa.YJumps) != 0 || len(wb.YJumps) != 0 {
		t.Errorf("expected no jumps at the shared port, got %v and %v", wa.YJumps, wb.YJumps)
	}
}

func TestSVGPath(t *testing.T) {
	down := &topology.Wire{XDropNorm: 0.75, YJumps: []float64{60}}
	got := SVGPath(down, topology.Point{X: 10, Y: 0}, topology.Point{X: 100, Y: 100})
	want := "M10 0 L77.5 0 L77.5 52 a8 8 0 0 1 0 16 L77.5 100 L100 100"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	up := &topology.Wire{XDropNorm: 0.5, YJumps: []float64{30, 60}}
	got = SVGPath(up, topology.Point{X: 10, Y: 100}, topology.Point{X: 100, Y: 0})
	want = "M10 100 L55 100 L55 68 a8 8 0 0 0 0 -16 L55 38 a8 8 0 0 0 0 -16 L55 0 L100 0"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if d := PathD(PathWithoutJumps(topology.Point{X: 0, Y: 0}, topology.Point{X: 10, Y: 10}, 0.5)); d != "M0 0 L5 0 L5 10 L10 10" {
		t.Errorf("unexpected PathD output %q", d)
	}
	if PathD(nil) != "" {
		t.Error("expected empty path to render as empty string")
	}
}

func TestDanglingWire(t *testing.T) {
	f := newFixture()
	good := f.wire("a", "g", 0, 100)
	bad := topology.NewWire("a_src", "missing", "g")
	err := Route(f.nodes, []*topology.Wire{good, bad})
	if !errors.Is(err, ErrDanglingWire) {
		t.Fatalf("expected ErrDanglingWire, got %v", err)
	}
	if good.PathCurrent != nil || good.XDropNorm != 0 {
		t.Error("expected wires to stay untouched when routing fails")
	}
}

func TestEmptyGroup(t *testing.T) {
	if err := Route(topology.NewNodeSet(), nil); err != nil {
		t.Errorf("expected no error for zero wires, got %v", err)
	}
}
