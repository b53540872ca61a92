package topology

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	DefaultFontSize   = 14
	DefaultTextMargin = 2
	DefaultDecimals   = 2

	SideMargin     = 5.0
	BusbarWidth    = 5.0
	WireTextOffset = 7.0
	// FinalDestGutter is the horizontal space between the next-hop column
	// and the final destinations.
	FinalDestGutter = 100.0
)

// Fixed node ids.
const (
	IngressID           = "ingress"
	EgressID            = "egress"
	StorageID           = "storage"
	ActiveConnectionsID = "active_connections"
	FinalDestinationsID = "final_dests"
)

// InductID is the id of the induct row at index.
func InductID(index int) string {
	return "induct_" + strconv.Itoa(index)
}

// InductConnectionID is the id of conn's row inside induct index.
func InductConnectionID(index int, conn string) string {
	return "induct_conn_" + InductID(index) + "_" + conn
}

// ActiveConnectionID is the id of conn in the active connections panel.
func ActiveConnectionID(index int, conn string) string {
	return "conn_induct_" + strconv.Itoa(index) + "_conn_" + conn
}

// OutductID is the id of the outduct row at index.
func OutductID(index int) string {
	return "outduct_" + strconv.Itoa(index)
}

// NextHopGroupID is the id of the group shared by outducts towards nodeID.
func NextHopGroupID(nodeID uint64) string {
	return "next_hop_node_id_" + strconv.FormatUint(nodeID, 10)
}

// NextHopPortID is the id of uri's port inside the nodeID group.
func NextHopPortID(nodeID uint64, uri string) string {
	return "next_hop_" + strconv.FormatUint(nodeID, 10) + "_" + uri
}

// FinalDestinationID is the id of uri in the final destinations panel.
func FinalDestinationID(uri string) string {
	return "fd_" + uri
}

var convergenceLayerNames = map[string]string{
	"ltp_over_udp": "LTP",
	"udp":          "UDP",
	"tcpcl_v3":     "TCP3",
	"tcpcl_v4":     "TCP4",
	"stcp":         "STCP",
}

// ConvergenceLayerName returns the short display name of a convergence layer.
func ConvergenceLayerName(cl string) string {
	if name, ok := convergenceLayerNames[cl]; ok {
		return name
	}
	return "??"
}

// Rect is a slot in absolute layout units.
type Rect struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Slots are the fixed positions of the top-level columns.
type Slots struct {
	Ingress           Rect `yaml:"ingress"`
	Egress            Rect `yaml:"egress"`
	Storage           Rect `yaml:"storage"`
	ActiveConnections Rect `yaml:"active_connections"`
	NextHops          Rect `yaml:"next_hops"`
	FinalDestinations Rect `yaml:"final_destinations"`
}

// DefaultSlots returns the stock dashboard geometry.
func DefaultSlots() Slots {
	return Slots{
		ActiveConnections: Rect{X: 0, Y: 40, Width: 160, Height: 300},
		Ingress:           Rect{X: 320, Y: 40, Width: 200, Height: 300},
		Storage:           Rect{X: 560, Y: 360, Width: 160, Height: 120},
		Egress:            Rect{X: 760, Y: 40, Width: 200, Height: 300},
		NextHops:          Rect{X: 0, Y: 40, Width: 160, Height: 300},
		FinalDestinations: Rect{X: 0, Y: 40, Width: 160, Height: 300},
	}
}

// DisplayConfig holds the options that affect layout and labels.
type DisplayConfig struct {
	FontSize   float64
	TextMargin float64
	Decimals   int
	// Declutter omits wires whose link is down.
	Declutter bool
	// DeclutterNodes additionally hides outducts whose physical link is down.
	DeclutterNodes bool
	// Shrink drops zero-size nodes and empty panels from the scene.
	Shrink bool
}

// DefaultDisplay returns the stock display options.
func DefaultDisplay() DisplayConfig {
	return DisplayConfig{
		FontSize:   DefaultFontSize,
		TextMargin: DefaultTextMargin,
		Decimals:   DefaultDecimals,
	}
}

// RowHeight is the height of a single text row.
func (d DisplayConfig) RowHeight() float64 {
	return d.FontSize + 2*d.TextMargin
}

// RowGap is the vertical space below each row.
func (d DisplayConfig) RowGap() float64 {
	return d.FontSize / 2
}

// Header is the height of a container's title band.
func (d DisplayConfig) Header() float64 {
	return d.RowHeight()
}

// TextMeasurer estimates the rendered width of a label.
type TextMeasurer interface {
	Width(text string, fontSize float64) float64
}

// EstimateMeasurer approximates text width from the rune count.
type EstimateMeasurer struct {
	// CharWidth is the average glyph width as a fraction of the font size.
	CharWidth float64
}

// Width estimates the rendered width of text at fontSize. A non-positive
// CharWidth uses 0.6.
func (m EstimateMeasurer) Width(text string, fontSize float64) float64 {
	cw := m.CharWidth
	if cw <= 0 {
		cw = 0.6
	}
	return cw * fontSize * float64(utf8.RuneCountInString(text))
}

// widestLabel is the longest wire label expected for the given precision.
func widestLabel(decimals int, singleLine bool) string {
	frac := ""
	if decimals > 0 {
		frac = "." + strings.Repeat("0", decimals)
	}
	items := "300" + frac + " KBun/s"
	if !singleLine {
		return items
	}
	return "300" + frac + " Kbit/s" + "  " + items
}

// Layout is the output of one rebuild: every node, the unrouted wires and
// the ids of the top-level containers in render order.
type Layout struct {
	Nodes *NodeSet
	Wires []*Wire

	Ingress           []string
	Egress            []string
	Storage           []string
	Inducts           []string
	ActiveConnections []string
	NextHops          []string
	FinalDestinations []string
}

// Model owns the persistent Ingress, Egress and Storage containers and lays
// out everything else around them on each rebuild.
type Model struct {
	slots    Slots
	measurer TextMeasurer

	ingress *Node
	egress  *Node
	storage *Node
}

// NewModel creates a Model. A nil measurer selects EstimateMeasurer.
func NewModel(slots Slots, measurer TextMeasurer) *Model {
	if measurer == nil {
		measurer = EstimateMeasurer{}
	}
	return &Model{slots: slots, measurer: measurer}
}

// Slots returns the slot geometry in use.
func (m *Model) Slots() Slots {
	return m.slots
}

func (m *Model) container(slot **Node, id, name string, kind Kind, r Rect) *Node {
	if *slot == nil {
		*slot = &Node{ID: id, Name: name, Kind: kind}
	}
	n := *slot
	n.AbsX, n.AbsY = r.X, r.Y
	n.Width, n.Height = r.Width, r.Height
	n.LinkUp = LinkUp
	return n
}

type hopGroup struct {
	nodeID uint64
	uris   []string
	seen   map[string]bool
}

// Rebuild lays out state. Positions are derived top-down: containers first,
// then rows within them, so every port is final before the wires are listed.
func (m *Model) Rebuild(state *State, display DisplayConfig) *Layout {
	rh := display.RowHeight()
	gap := display.RowGap()
	header := display.Header()

	nodes := NewNodeSet()
	layout := &Layout{Nodes: nodes}
	var wires []*Wire

	storage := m.container(&m.storage, StorageID, "Storage", KindStorage, m.slots.Storage)
	storage.Children = nil
	nodes.Add(storage)
	layout.Storage = []string{storage.ID}

	// ingress side
	ingress := m.container(&m.ingress, IngressID, "Ingress", KindIngress, m.slots.Ingress)
	ingress.Children = []string{}
	nodes.Add(ingress)
	layout.Ingress = []string{ingress.ID}

	singleGutter := m.measurer.Width(widestLabel(display.Decimals, true), display.FontSize) + 2*WireTextOffset
	connSlot := m.slots.ActiveConnections
	panel := &Node{
		ID:       ActiveConnectionsID,
		Kind:     KindActiveConnectionPanel,
		AbsX:     ingress.AbsX - singleGutter - connSlot.Width,
		AbsY:     connSlot.Y,
		Width:    connSlot.Width,
		Children: []string{},
	}
	nodes.Add(panel)
	layout.ActiveConnections = []string{panel.ID}
	panelBottom := panel.AbsY

	inductWidth := (ingress.Width-2*SideMargin)*3/4 - BusbarWidth/2
	relY := header
	for _, ind := range state.Inducts {
		in := &Node{
			ID:       InductID(ind.Index),
			Name:     fmt.Sprintf("%s[%d]", ConvergenceLayerName(ind.ConvergenceLayer), ind.Index),
			Kind:     KindInduct,
			ParentID: ingress.ID,
			RelX:     SideMargin,
			RelY:     relY,
			AbsX:     ingress.AbsX + SideMargin,
			AbsY:     ingress.AbsY + relY,
			Width:    inductWidth,
			Height:   rh,
			Children: []string{},
			LinkUp:   LinkUp,
		}
		nodes.Add(in)
		ingress.Children = append(ingress.Children, in.ID)
		layout.Inducts = append(layout.Inducts, in.ID)

		rowY := header
		for _, conn := range ind.Connections {
			name := ind.InputNames[conn]
			if name == "" {
				name = conn
			}
			row := &Node{
				ID:       InductConnectionID(ind.Index, conn),
				Name:     name,
				Kind:     KindInductConnection,
				ParentID: in.ID,
				RelX:     SideMargin,
				RelY:     rowY,
				AbsX:     in.AbsX + SideMargin,
				AbsY:     in.AbsY + rowY,
				Width:    in.Width - 2*SideMargin,
				Height:   rh,
				LinkUp:   LinkUp,
			}
			if rp := ind.ConnRates[conn]; rp != nil {
				row.Rates = rp.Rates()
			}
			nodes.Add(row)
			in.Children = append(in.Children, row.ID)
			rowY += rh + gap
			in.Height = rowY

			if conn == NullConnection {
				continue
			}
			remote := &Node{
				ID:       ActiveConnectionID(ind.Index, conn),
				Name:     conn,
				Kind:     KindActiveConnection,
				ParentID: panel.ID,
				RelX:     SideMargin,
				RelY:     row.AbsY - panel.AbsY,
				AbsX:     panel.AbsX + SideMargin,
				AbsY:     row.AbsY,
				Width:    panel.Width - 2*SideMargin,
				Height:   rh,
				LinkUp:   LinkUp,
			}
			nodes.Add(remote)
			panel.Children = append(panel.Children, remote.ID)
			panelBottom = math.Max(panelBottom, remote.Bottom())
			wires = append(wires, NewWire(remote.ID, row.ID, GroupConnInduct))
		}
		relY += in.Height + gap
	}
	ingress.Height = math.Max(m.slots.Ingress.Height, relY)
	ingress.Busbar = &Busbar{X: ingress.Width * 3 / 4, Y1: header, Y2: ingress.Height - gap}
	panel.Height = math.Max(connSlot.Height, panelBottom-panel.AbsY+gap)

	// egress side
	egress := m.container(&m.egress, EgressID, "Egress", KindEgress, m.slots.Egress)
	egress.Children = []string{}
	nodes.Add(egress)
	layout.Egress = []string{egress.ID}

	doubleGutter := m.measurer.Width(widestLabel(display.Decimals, false), display.FontSize) + 2*WireTextOffset
	hopSlot := m.slots.NextHops
	hopX := egress.AbsX + egress.Width + doubleGutter

	fdSlot := m.slots.FinalDestinations
	fdPanel := &Node{
		ID:       FinalDestinationsID,
		Kind:     KindFinalDestinationPanel,
		AbsX:     hopX + hopSlot.Width + FinalDestGutter,
		AbsY:     fdSlot.Y,
		Width:    fdSlot.Width,
		Children: []string{},
	}
	nodes.Add(fdPanel)
	layout.FinalDestinations = []string{fdPanel.ID}
	fdBottom := fdPanel.AbsY

	// one group per distinct next hop, in order of first appearance
	groups := make(map[uint64]*hopGroup)
	var order []uint64
	for _, od := range state.Outducts {
		g, ok := groups[od.NextHopNodeID]
		if !ok {
			g = &hopGroup{nodeID: od.NextHopNodeID, seen: make(map[string]bool)}
			groups[od.NextHopNodeID] = g
			order = append(order, od.NextHopNodeID)
		}
		for _, uri := range od.Destinations {
			if !g.seen[uri] {
				g.seen[uri] = true
				g.uris = append(g.uris, uri)
			}
		}
	}

	portWidth := (hopSlot.Width-2*SideMargin)/2 - BusbarWidth/2
	portRelX := SideMargin + (hopSlot.Width-2*SideMargin)/2 + BusbarWidth/2
	hopY := hopSlot.Y
	for _, id := range order {
		g := groups[id]
		hop := &Node{
			ID:       NextHopGroupID(id),
			Name:     fmt.Sprintf("Node %d", id),
			Kind:     KindNextHopGroup,
			AbsX:     hopX,
			AbsY:     hopY,
			Width:    hopSlot.Width,
			Height:   rh,
			Children: []string{},
			LinkUp:   LinkUp,
		}
		nodes.Add(hop)
		layout.NextHops = append(layout.NextHops, hop.ID)

		rowY := header
		for _, uri := range g.uris {
			port := &Node{
				ID:       NextHopPortID(id, uri),
				Kind:     KindNextHopPort,
				ParentID: hop.ID,
				RelX:     portRelX,
				RelY:     rowY,
				AbsX:     hop.AbsX + portRelX,
				AbsY:     hop.AbsY + rowY,
				Width:    portWidth,
				Height:   rh,
				LinkUp:   LinkUp,
			}
			nodes.Add(port)
			hop.Children = append(hop.Children, port.ID)
			rowY += rh + gap
			hop.Height = rowY

			fdID := FinalDestinationID(uri)
			if !nodes.Has(fdID) {
				fd := &Node{
					ID:       fdID,
					Name:     uri,
					Kind:     KindFinalDestination,
					ParentID: fdPanel.ID,
					RelX:     SideMargin,
					RelY:     port.AbsY - fdPanel.AbsY,
					AbsX:     fdPanel.AbsX + SideMargin,
					AbsY:     port.AbsY,
					Width:    fdPanel.Width - 2*SideMargin,
					Height:   rh,
					LinkUp:   LinkUp,
				}
				nodes.Add(fd)
				fdPanel.Children = append(fdPanel.Children, fd.ID)
				fdBottom = math.Max(fdBottom, fd.Bottom())
			}
			wires = append(wires, NewWire(port.ID, fdID, GroupNextHopFinalDest))
		}
		if len(g.uris) > 0 {
			hop.Busbar = &Busbar{X: hop.Width / 2, Y1: header, Y2: hop.Height - gap}
		}
		hopY += hop.Height + rh
	}
	fdPanel.Height = math.Max(fdSlot.Height, fdBottom-fdPanel.AbsY+gap)

	outductWidth := (egress.Width-2*SideMargin)*3/4 - BusbarWidth/2
	outductRelX := SideMargin + (egress.Width-2*SideMargin)/4 + BusbarWidth/2
	prevBottom := egress.AbsY + header - gap
	for _, od := range state.Outducts {
		hop := nodes.MustGet(NextHopGroupID(od.NextHopNodeID))
		// centre on the next hop unless that would overlap the previous outduct
		absY := math.Max(hop.AbsY+hop.Height/2-rh/2, prevBottom+gap)
		out := &Node{
			ID:           OutductID(od.Index),
			Name:         fmt.Sprintf("%s[%d]", ConvergenceLayerName(od.ConvergenceLayer), od.Index),
			Kind:         KindOutduct,
			ParentID:     egress.ID,
			RelX:         outductRelX,
			RelY:         absY - egress.AbsY,
			AbsX:         egress.AbsX + outductRelX,
			AbsY:         absY,
			Width:        outductWidth,
			Height:       rh,
			LinkUp:       od.LinkSchedule,
			LinkPhysical: od.LinkPhysical,
		}
		if od.Rates != nil {
			out.Rates = od.Rates.Rates()
		}
		nodes.Add(out)
		egress.Children = append(egress.Children, out.ID)
		prevBottom = out.Bottom()

		if od.LinkPhysical.IsUp() || !display.Declutter {
			w := NewWire(out.ID, hop.ID, GroupOutductNextHop)
			w.MiddleText = true
			wires = append(wires, w)
		}
	}
	egress.Height = math.Max(m.slots.Egress.Height, prevBottom-egress.AbsY+gap)
	egress.Busbar = &Busbar{X: egress.Width / 4, Y1: header, Y2: egress.Height - gap}

	layout.Wires = wires
	return layout
}

// RefreshRates copies the latest rates from state onto the nodes of an
// existing layout without moving anything.
func RefreshRates(layout *Layout, state *State) {
	for _, ind := range state.Inducts {
		for conn, rp := range ind.ConnRates {
			if n, ok := layout.Nodes.Get(InductConnectionID(ind.Index, conn)); ok {
				n.Rates = rp.Rates()
			}
		}
	}
	for _, od := range state.Outducts {
		n, ok := layout.Nodes.Get(OutductID(od.Index))
		if !ok {
			continue
		}
		if od.Rates != nil {
			n.Rates = od.Rates.Rates()
		}
		n.LinkUp = od.LinkSchedule
		n.LinkPhysical = od.LinkPhysical
	}
}
