// Package dashboard runs the per-message pipeline that turns relay telemetry
// into scenes: validate, merge into state, fingerprint, then either a full
// rebuild (layout, reconcile, route, build) or a relabel of the last scene.
package dashboard

import (
	"fmt"
	"sync"
	"time"

	"github.com/xiaonanln/dtnview/fingerprint"
	"github.com/xiaonanln/dtnview/history"
	"github.com/xiaonanln/dtnview/reconcile"
	"github.com/xiaonanln/dtnview/routing"
	"github.com/xiaonanln/dtnview/scene"
	"github.com/xiaonanln/dtnview/telemetry"
	"github.com/xiaonanln/dtnview/topology"
	"github.com/xiaonanln/dtnview/util/logger"
	"github.com/xiaonanln/dtnview/util/metrics"
)

var log = logger.NewLogger("dashboard")

// EventType is the kind of scene change pushed to observers.
type EventType string

const (
	// EventScene carries a scene produced by a full rebuild.
	EventScene EventType = "scene"
	// EventLabels carries a scene whose geometry is unchanged and whose
	// rates and labels were refreshed.
	EventLabels EventType = "labels"
)

// Event is pushed to observers after each update.
type Event struct {
	Type       EventType    `json:"type"`
	Generation uint64       `json:"generation"`
	Scene      *scene.Scene `json:"scene"`
}

// Observer receives dashboard events. Calls happen outside the dashboard
// lock, one update at a time.
type Observer interface {
	OnDashboardEvent(event Event)
}

// Recorder receives the ready rate points of each applied record.
type Recorder interface {
	Record(points []history.Point)
}

// Options configure a Dashboard.
type Options struct {
	Slots    topology.Slots
	Display  topology.DisplayConfig
	Measurer topology.TextMeasurer
	Recorder Recorder
}

// DefaultOptions returns the stock geometry and display options.
func DefaultOptions() Options {
	return Options{
		Slots:   topology.DefaultSlots(),
		Display: topology.DefaultDisplay(),
	}
}

// Update is the outcome of one Apply. Scene is nil until the relay
// configuration has been received.
type Update struct {
	Redrawn bool
	Scene   *scene.Scene
}

// Dashboard owns the retained topology and wire generations.
type Dashboard struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	state    *topology.State
	model    *topology.Model
	display  topology.DisplayConfig
	recorder Recorder

	fp         *fingerprint.Snapshot
	layout     *topology.Layout
	nodes      map[string]*topology.Node
	wires      map[string]*topology.Wire
	current    *scene.Scene
	generation uint64

	obsMu     sync.RWMutex
	observers map[Observer]struct{}
}

// New creates a Dashboard.
func New(opts Options) *Dashboard {
	return &Dashboard{
		state:     topology.NewState(),
		model:     topology.NewModel(opts.Slots, opts.Measurer),
		display:   opts.Display,
		recorder:  opts.Recorder,
		observers: make(map[Observer]struct{}),
	}
}

// AddObserver registers an observer to receive dashboard events
func (d *Dashboard) AddObserver(observer Observer) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	d.observers[observer] = struct{}{}
}

// RemoveObserver unregisters an observer
func (d *Dashboard) RemoveObserver(observer Observer) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	delete(d.observers, observer)
}

// notifyObservers must be called without holding d.mu
func (d *Dashboard) notifyObservers(event Event) {
	d.obsMu.RLock()
	observers := make([]Observer, 0, len(d.observers))
	for obs := range d.observers {
		observers = append(observers, obs)
	}
	d.obsMu.RUnlock()

	log.Debugf("Dashboard event: %s (generation=%d)", event.Type, event.Generation)

	for _, obs := range observers {
		obs.OnDashboardEvent(event)
	}
}

// Scene returns the latest scene, or nil before the first one.
func (d *Dashboard) Scene() *scene.Scene {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Display returns the display options in use.
func (d *Dashboard) Display() topology.DisplayConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.display
}

// Configured reports whether the relay configuration has been received.
func (d *Dashboard) Configured() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Configured()
}

// ApplyJSON decodes one telemetry message and applies it.
func (d *Dashboard) ApplyJSON(data []byte) (Update, error) {
	rec, err := telemetry.Decode(data)
	if err != nil {
		metrics.RecordTelemetryRecord("", false)
		return Update{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return d.Apply(rec)
}

// Apply runs the pipeline for one record. A rejected record returns an
// error and leaves every retained generation untouched.
func (d *Dashboard) Apply(rec telemetry.Record) (Update, error) {
	if rec == nil {
		return Update{}, &RecordError{Kind: "unknown", Index: -1, Reason: "nil record"}
	}
	kind := rec.Kind()

	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	d.mu.Lock()
	if err := validate(d.state, rec); err != nil {
		d.mu.Unlock()
		metrics.RecordTelemetryRecord(string(kind), false)
		log.Warnf("Dropping %s record: %v", kind, err)
		return Update{}, err
	}
	applyRecord(d.state, rec)
	metrics.RecordTelemetryRecord(string(kind), true)
	points := readyPoints(d.state, rec)

	event, update, err := d.refreshLocked()
	d.mu.Unlock()

	if d.recorder != nil && len(points) > 0 {
		d.recorder.Record(points)
	}
	if err != nil {
		return Update{}, err
	}
	if event != nil {
		d.notifyObservers(*event)
	}
	return update, nil
}

// SetDisplay changes the display options and redraws if anything was drawn.
func (d *Dashboard) SetDisplay(display topology.DisplayConfig) (Update, error) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	d.mu.Lock()
	d.display = display
	event, update, err := d.refreshLocked()
	d.mu.Unlock()

	if err != nil {
		return Update{}, err
	}
	if event != nil {
		d.notifyObservers(*event)
	}
	return update, nil
}

// SetManualXDrop pins the x-drop of a wire, or releases it with a nil value.
// The pin survives rebuilds for as long as the wire exists.
func (d *Dashboard) SetManualXDrop(wireID string, value *float64) (Update, error) {
	if value != nil && (*value < 0 || *value > 1) {
		return Update{}, fmt.Errorf("x-drop %f outside [0,1]", *value)
	}

	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	d.mu.Lock()
	w, ok := d.wires[wireID]
	if !ok {
		d.mu.Unlock()
		return Update{}, fmt.Errorf("%w: %s", ErrUnknownWire, wireID)
	}
	if value != nil {
		v := *value
		w.ManualXDropNorm = &v
	} else {
		w.ManualXDropNorm = nil
	}
	event, update, err := d.rerouteLocked()
	d.mu.Unlock()

	if err != nil {
		return Update{}, err
	}
	d.notifyObservers(*event)
	return update, nil
}

// refreshLocked produces the next scene if one can be drawn.
func (d *Dashboard) refreshLocked() (*Event, Update, error) {
	if !d.state.Configured() {
		return nil, Update{}, nil
	}
	snap := fingerprint.Take(d.state, d.display)
	if d.current == nil || fingerprint.NeedsRedraw(d.fp, snap) {
		return d.redrawLocked(snap)
	}
	return d.relabelLocked()
}

func nodeKey(n *topology.Node) string { return n.ID }
func wireKey(w *topology.Wire) string { return w.ID }

func (d *Dashboard) redrawLocked(snap fingerprint.Snapshot) (*Event, Update, error) {
	start := time.Now()

	layout := d.model.Rebuild(d.state, d.display)
	nodes := layout.Nodes.All()
	nodeRes := reconcile.Reconcile(d.nodes, nodes, nodeKey)
	wireRes := reconcile.Reconcile(d.wires, layout.Wires, wireKey)
	for _, p := range wireRes.Updating {
		p.New.PathPrev = p.Old.PathCurrent
		p.New.ManualXDropNorm = p.Old.ManualXDropNorm
	}

	if err := routing.Route(layout.Nodes, layout.Wires); err != nil {
		log.Errorf("Routing failed, keeping generation %d: %v", d.generation, err)
		return nil, Update{}, fmt.Errorf("failed to route wires: %w", err)
	}

	s := scene.Build(layout, scene.PolicyFrom(d.display))
	s.Summary = scene.BuildSummary(&d.state.Summary, d.display.Decimals)
	s.Changes = scene.Changes{
		Nodes: reconcile.Keys(nodeRes, nodeKey),
		Wires: reconcile.Keys(wireRes, wireKey),
	}
	d.generation++
	s.Generation = d.generation

	d.layout = layout
	d.nodes = reconcile.Index(nodes, nodeKey)
	d.wires = reconcile.Index(layout.Wires, wireKey)
	d.fp = &snap
	d.current = s

	metrics.RecordRedraw(metrics.ModeFull, time.Since(start).Seconds())
	metrics.SetSceneSize(sceneNodeCount(s), len(s.Wires))
	log.Infof("Redrew generation %d: %d nodes (+%d -%d), %d wires (+%d -%d)",
		s.Generation, len(nodes), len(nodeRes.Entering), len(nodeRes.Exiting),
		len(layout.Wires), len(wireRes.Entering), len(wireRes.Exiting))

	return &Event{Type: EventScene, Generation: s.Generation, Scene: s}, Update{Redrawn: true, Scene: s}, nil
}

func (d *Dashboard) relabelLocked() (*Event, Update, error) {
	start := time.Now()

	topology.RefreshRates(d.layout, d.state)
	s := d.current.Clone()
	scene.Relabel(s, d.layout.Nodes, scene.PolicyFrom(d.display))
	s.Summary = scene.BuildSummary(&d.state.Summary, d.display.Decimals)
	s.Changes = scene.Changes{}
	d.current = s

	metrics.RecordRedraw(metrics.ModeLabels, time.Since(start).Seconds())
	return &Event{Type: EventLabels, Generation: s.Generation, Scene: s}, Update{Scene: s}, nil
}

// rerouteLocked routes the retained wires again, for a manual x-drop change.
func (d *Dashboard) rerouteLocked() (*Event, Update, error) {
	start := time.Now()

	for _, w := range d.layout.Wires {
		w.PathPrev = w.PathCurrent
	}
	if err := routing.Route(d.layout.Nodes, d.layout.Wires); err != nil {
		return nil, Update{}, fmt.Errorf("failed to route wires: %w", err)
	}
	s := scene.Build(d.layout, scene.PolicyFrom(d.display))
	s.Summary = scene.BuildSummary(&d.state.Summary, d.display.Decimals)
	d.generation++
	s.Generation = d.generation
	d.current = s

	metrics.RecordRedraw(metrics.ModeFull, time.Since(start).Seconds())
	return &Event{Type: EventScene, Generation: s.Generation, Scene: s}, Update{Redrawn: true, Scene: s}, nil
}

func sceneNodeCount(s *scene.Scene) int {
	n := 0
	for _, list := range [][]scene.NodeView{s.Ingress, s.Egress, s.Storage, s.NextHops, s.FinalDestinations, s.ActiveConnections} {
		n += scene.CountNodes(list)
	}
	return n
}

func applyRecord(state *topology.State, rec telemetry.Record) {
	switch r := rec.(type) {
	case *telemetry.Config:
		log.Infof("Relay configuration %q (node %d): %d inducts, %d outducts",
			r.Name, r.MyNodeID, len(r.Inducts.InductVector), len(r.Outducts.OutductVector))
		state.ApplyConfig(r)
	case *telemetry.IngressTelemetry:
		state.ApplyIngress(r)
	case *telemetry.EgressTelemetry:
		state.ApplyEgress(r)
	case *telemetry.CapabilityTelemetry:
		state.ApplyCapabilities(r)
	case *telemetry.StorageTelemetry:
		state.ApplyStorage(r)
	}
}
