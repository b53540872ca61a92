package routing

import (
	"strconv"
	"strings"

	"github.com/xiaonanln/dtnview/topology"
)

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SVGPath renders the routed wire as an SVG path, replacing each jump on the
// vertical run with a half circle of ArcRadius.
func SVGPath(w *topology.Wire, src, dest topology.Point) string {
	xMid := src.X + (dest.X-src.X)*w.XDropNorm
	r := ArcRadius

	var b strings.Builder
	b.WriteString("M" + num(src.X) + " " + num(src.Y))
	b.WriteString(" L" + num(xMid) + " " + num(src.Y))
	if src.Y < dest.Y {
		for _, y := range w.YJumps {
			b.WriteString(" L" + num(xMid) + " " + num(y-r))
			b.WriteString(" a" + num(r) + " " + num(r) + " 0 0 1 0 " + num(2*r))
		}
	} else {
		for i := len(w.YJumps) - 1; i >= 0; i-- {
			y := w.YJumps[i]
			b.WriteString(" L" + num(xMid) + " " + num(y+r))
			b.WriteString(" a" + num(r) + " " + num(r) + " 0 0 0 0 " + num(-2*r))
		}
	}
	b.WriteString(" L" + num(xMid) + " " + num(dest.Y))
	b.WriteString(" L" + num(dest.X) + " " + num(dest.Y))
	return b.String()
}

// PathD renders a polyline as an SVG path. An empty path renders as "".
func PathD(p topology.Path) string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("M" + num(p[0].X) + " " + num(p[0].Y))
	for _, pt := range p[1:] {
		b.WriteString(" L" + num(pt.X) + " " + num(pt.Y))
	}
	return b.String()
}
