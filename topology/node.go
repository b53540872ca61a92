// Package topology holds the relay diagram model: positioned nodes addressed
// by id, the wires between them, the structural state merged from telemetry,
// and the layout that turns that state into absolute coordinates.
package topology

import "fmt"

// Kind is the role a node plays in the diagram.
type Kind int

const (
	KindIngress Kind = iota
	KindEgress
	KindStorage
	KindInduct
	KindOutduct
	KindInductConnection
	KindNextHopGroup
	KindNextHopPort
	KindFinalDestination
	KindActiveConnection
	KindActiveConnectionPanel
	KindFinalDestinationPanel
)

var kindNames = map[Kind]string{
	KindIngress:               "ingress",
	KindEgress:                "egress",
	KindStorage:               "storage",
	KindInduct:                "induct",
	KindOutduct:               "outduct",
	KindInductConnection:      "induct_connection",
	KindNextHopGroup:          "next_hop_group",
	KindNextHopPort:           "next_hop_port",
	KindFinalDestination:      "final_destination",
	KindActiveConnection:      "active_connection",
	KindActiveConnectionPanel: "active_connection_panel",
	KindFinalDestinationPanel: "final_destination_panel",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind by name so scenes stay readable on the wire.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", text)
}

// LinkState is a tri-state link flag. Unknown means the relay has not
// reported the flag.
type LinkState int

const (
	LinkUnknown LinkState = iota
	LinkUp
	LinkDown
)

// LinkStateOf maps an optional telemetry flag to a LinkState.
func LinkStateOf(flag *bool) LinkState {
	switch {
	case flag == nil:
		return LinkUnknown
	case *flag:
		return LinkUp
	default:
		return LinkDown
	}
}

// IsUp reports whether the link should be treated as up. Unknown counts as up.
func (s LinkState) IsUp() bool {
	return s != LinkDown
}

func (s LinkState) String() string {
	switch s {
	case LinkUp:
		return "up"
	case LinkDown:
		return "down"
	default:
		return "unknown"
	}
}

func (s LinkState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Point is an absolute position in layout units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rates are the latest telemetry-derived rates of a node.
type Rates struct {
	BitsPerSec  float64 `json:"bitsPerSec"`
	ItemsPerSec float64 `json:"itemsPerSec"`
}

// Busbar is a vertical line in container-relative coordinates.
type Busbar struct {
	X  float64 `json:"x"`
	Y1 float64 `json:"y1"`
	Y2 float64 `json:"y2"`
}

// Node is a positioned rectangle. ParentID and Children are id references
// into the owning NodeSet. A nil Children means the kind renders no child
// rows; an empty one is a container that currently holds none.
type Node struct {
	ID       string
	Name     string
	Kind     Kind
	AbsX     float64
	AbsY     float64
	RelX     float64
	RelY     float64
	Width    float64
	Height   float64
	ParentID string
	Children []string

	LinkUp       LinkState
	LinkPhysical LinkState
	Rates        *Rates
	Busbar       *Busbar
}

// PortOut is where outgoing wires attach: the right edge at mid height.
func (n *Node) PortOut() Point {
	return Point{X: n.AbsX + n.Width, Y: n.AbsY + n.Height/2}
}

// PortIn is where incoming wires attach: the left edge at mid height.
func (n *Node) PortIn() Point {
	return Point{X: n.AbsX, Y: n.AbsY + n.Height/2}
}

// Up reports whether neither link flag of the node is down.
func (n *Node) Up() bool {
	return n.LinkUp.IsUp() && n.LinkPhysical.IsUp()
}

// Bottom returns the absolute y of the node's lower edge.
func (n *Node) Bottom() float64 {
	return n.AbsY + n.Height
}

// NodeSet is an arena of nodes keyed by id that remembers insertion order.
type NodeSet struct {
	nodes map[string]*Node
	order []string
}

// NewNodeSet creates an empty NodeSet.
func NewNodeSet() *NodeSet {
	return &NodeSet{nodes: make(map[string]*Node)}
}

// Add inserts n and reports whether it was added. A node whose id is
// already present is not replaced.
func (s *NodeSet) Add(n *Node) bool {
	if _, exists := s.nodes[n.ID]; exists {
		return false
	}
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	return true
}

// Get returns the node with the given id.
func (s *NodeSet) Get(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// MustGet returns the node with the given id and panics if it is missing.
func (s *NodeSet) MustGet(id string) *Node {
	n, ok := s.nodes[id]
	if !ok {
		panic(fmt.Sprintf("node %q not found", id))
	}
	return n
}

// Has reports whether a node with the given id exists.
func (s *NodeSet) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (s *NodeSet) Len() int {
	return len(s.order)
}

// All returns the nodes in insertion order.
func (s *NodeSet) All() []*Node {
	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id])
	}
	return out
}

// Children resolves the child ids of the node with the given id.
func (s *NodeSet) Children(id string) []*Node {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c, ok := s.nodes[cid]; ok {
			out = append(out, c)
		}
	}
	return out
}

// OfKind returns the nodes of the given kind in insertion order.
func (s *NodeSet) OfKind(kind Kind) []*Node {
	var out []*Node
	for _, id := range s.order {
		if n := s.nodes[id]; n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
