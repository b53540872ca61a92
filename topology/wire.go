package topology

// Wire groups. Routing only separates wires that share a group.
const (
	GroupConnInduct       = "conn_induct"
	GroupOutductNextHop   = "outduct_nextHop"
	GroupNextHopFinalDest = "nextHop_finalDest"
)

// Path is an axis-aligned polyline.
type Path []Point

// Wire is a directed connection from the src node's out port to the dest
// node's in port. Endpoints are id references into a NodeSet.
type Wire struct {
	ID     string
	SrcID  string
	DestID string
	Group  string
	// MiddleText places the rate label at the wire's vertical segment
	// instead of next to the source port.
	MiddleText bool

	XDropNorm       float64
	ManualXDropNorm *float64
	YJumps          []float64
	PathPrev        Path
	PathCurrent     Path
}

// WireID derives the stable id of the wire between src and dest.
func WireID(srcID, destID string) string {
	return srcID + "_" + destID
}

// NewWire creates an unrouted wire.
func NewWire(srcID, destID, group string) *Wire {
	return &Wire{
		ID:     WireID(srcID, destID),
		SrcID:  srcID,
		DestID: destID,
		Group:  group,
	}
}
