package ringnet

// engine.go holds the RingEngine, the context object that owns one simulated
// ring: its model, router, token, transit queue, metrics, and harnesses.
// Everything the engine does happens either in a command called by its owner
// or in an event handler run by the evtm event manager it was built with,
// both on the same goroutine.

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/rngstream"
	"golang.org/x/exp/slices"
)

// RingMetrics counts what has happened on the ring since it was built or reset
type RingMetrics struct {
	TokenPasses   int `json:"tokenpasses" yaml:"tokenpasses"`
	RingBreaks    int `json:"ringbreaks" yaml:"ringbreaks"`
	TokenTimeouts int `json:"tokentimeouts" yaml:"tokentimeouts"`
	RingHeals     int `json:"ringheals" yaml:"ringheals"`
	Collisions    int `json:"collisions" yaml:"collisions"`
	Delivered     int `json:"delivered" yaml:"delivered"`
	Lost          int `json:"lost" yaml:"lost"`
}

// RingEngine is one simulated ring
type RingEngine struct {
	evtMgr *evtm.EventManager
	desc   *RingDesc

	ring   *RingModel
	router *PathRouter
	token  *TokenCirculator
	queue  *transitQueue
	layout Layout

	metrics  RingMetrics
	loadtest *loadTest
	bench    *benchmark
	auto     *autoSim
	rng      *rngstream.RngStream

	listeners []Listener
	trace     *TraceManager
	logger    *Logger

	gapPending bool // the queue is held for an inter-packet gap
	epoch      int  // bumped by Reset to orphan scheduled events
}

// CreateRingEngine is a constructor.  The description is copied, its parameters
// applied to the copy, and the result validated before anything is built
func CreateRingEngine(evtMgr *evtm.EventManager, desc *RingDesc) (*RingEngine, error) {
	if evtMgr == nil {
		return nil, fmt.Errorf("%w: nil event manager", ErrBadParameter)
	}
	rd := *desc
	rd.Nodes = slices.Clone(desc.Nodes)
	rd.Parameters = slices.Clone(desc.Parameters)
	if err := rd.ApplyParameters(); err != nil {
		return nil, err
	}
	if err := rd.Validate(); err != nil {
		return nil, err
	}

	ring, err := CreateRingModel(rd.Size)
	if err != nil {
		return nil, err
	}
	errs := []error{}
	for _, nd := range rd.Nodes {
		idx, _ := NodeIndex(nd.Name)
		if idx >= rd.Size {
			continue
		}
		if len(nd.Address) > 0 {
			errs = append(errs, ring.SetAddress(idx, nd.Address))
		}
		if nd.Inactive {
			errs = append(errs, ring.SetLive(idx, false))
		}
	}
	if err := ReportErrs(errs); err != nil {
		return nil, err
	}

	re := new(RingEngine)
	re.evtMgr = evtMgr
	re.desc = &rd
	re.ring = ring
	re.router = CreatePathRouter(ring)
	re.token = CreateTokenCirculator(rd.Direction, rd.TokenPeriod)
	re.queue = createTransitQueue(rd.TransitSlots)
	re.layout = CircleLayout{Radius: rd.LayoutRadius}
	re.loadtest = createLoadTest()
	re.bench = createBenchmark()
	re.rng = rngstream.New(rd.RngName)
	re.auto = &autoSim{rng: rngstream.New(rd.RngName + "-auto")}
	re.listeners = []Listener{}
	re.logger = GetLogger().ForRing(rd.Name, re.now)

	re.trace = CreateTraceManager(rd.Name, rd.Trace)
	for idx := 0; idx < ring.Size(); idx++ {
		re.trace.AddName(idx, NodeName(idx))
	}

	if rd.StartToken {
		re.StartToken()
	}
	return re, nil
}

// BuildRingEngine reads a ring description from a yaml or json file and builds
// an engine for it on a new event manager
func BuildRingEngine(filename string) (*evtm.EventManager, *RingEngine, error) {
	rd, err := LoadRingDesc(filename)
	if err != nil {
		return nil, nil, err
	}
	evtMgr := evtm.New()
	re, err := CreateRingEngine(evtMgr, rd)
	if err != nil {
		return nil, nil, err
	}
	return evtMgr, re, nil
}

// SetLogger directs the engine's log output
func (re *RingEngine) SetLogger(l *Logger) {
	if l != nil {
		re.logger = l.ForRing(re.desc.Name, re.now)
	}
}

// SetLayout replaces the node placement used for hop positions and collisions
func (re *RingEngine) SetLayout(layout Layout) {
	if layout != nil {
		re.layout = layout
	}
}

func (re *RingEngine) now() float64 {
	return re.evtMgr.CurrentSeconds()
}

// ToggleNode flips the liveness of a node.  It is refused while a packet is in transit
func (re *RingEngine) ToggleNode(idx int) error {
	if !re.ring.valid(idx) {
		return fmt.Errorf("%w: index %d", ErrUnknownNode, idx)
	}
	if re.queue.busy() {
		return ErrAnimationInProgress
	}
	re.setNodeLive(idx, !re.ring.IsLive(idx))
	return nil
}

// FailNode takes a node down at once, whatever is in transit
func (re *RingEngine) FailNode(idx int) error {
	if !re.ring.valid(idx) {
		return fmt.Errorf("%w: index %d", ErrUnknownNode, idx)
	}
	re.setNodeLive(idx, false)
	return nil
}

// setNodeLive changes the liveness of a node and reports every consequence
func (re *RingEngine) setNodeLive(idx int, live bool) {
	if re.ring.IsLive(idx) == live {
		return
	}
	wasIntact := re.ring.IsIntact()
	re.ring.SetLive(idx, live)

	evt := nodeEvent(NodeStateChanged, idx)
	evt.Live = live
	re.emit(evt)
	re.emitEdges(idx)
	if live {
		re.logger.Infof("%s activated", NodeName(idx))
	} else {
		re.logger.Warnf("%s deactivated", NodeName(idx))
	}

	if !live && re.token.active && re.token.position == idx {
		re.moveTokenToLive()
	}
	re.noteIntact(wasIntact)
}

// emitEdges reports the state of the two edges meeting at idx
func (re *RingEngine) emitEdges(idx int) {
	prev := re.ring.NeighborOf(idx, -1)
	next := re.ring.NeighborOf(idx, 1)
	re.emit(RingEvent{Type: EdgeStateChanged, Node: prev, Peer: idx, Live: re.ring.EdgeLive(prev)})
	re.emit(RingEvent{Type: EdgeStateChanged, Node: idx, Peer: next, Live: re.ring.EdgeLive(idx)})
}

// noteIntact reports a change in whether the ring is intact
func (re *RingEngine) noteIntact(wasIntact bool) {
	intact := re.ring.IsIntact()
	switch {
	case wasIntact && !intact:
		re.metrics.RingBreaks += 1
		re.emit(nodeEvent(RingBroken, -1))
		re.logger.Warnf("ring broken, %d of %d nodes live", re.ring.LiveCount(), re.ring.Size())
	case !wasIntact && intact:
		re.emit(nodeEvent(RingHealed, -1))
		re.logger.Infof("ring intact")
		re.resumeToken()
	}
}

// AddNode grows the ring by one live node, returning its index.  Token
// circulation is stopped while the ring is restructured
func (re *RingEngine) AddNode() (int, error) {
	if re.queue.busy() {
		return -1, ErrAnimationInProgress
	}
	if re.ring.Size() >= MaxRingSize {
		return -1, fmt.Errorf("%w (%d nodes)", ErrCapacity, MaxRingSize)
	}
	circulating, suspended := re.token.circulating, re.token.suspended
	re.token.halt()

	idx, err := re.ring.AddNode(re.now())
	if err != nil {
		return -1, err
	}
	re.trace.AddName(idx, NodeName(idx))
	evt := nodeEvent(NodeStateChanged, idx)
	evt.Live = true
	re.emit(evt)
	re.emitEdges(idx)
	re.logger.Infof("%s added at %s, ring size %d", NodeName(idx), re.ring.Address(idx), re.ring.Size())

	re.restartToken(circulating, suspended)
	return idx, nil
}

// RemoveNode drops the highest-indexed node, returning the index it had
func (re *RingEngine) RemoveNode() (int, error) {
	if re.queue.busy() {
		return -1, ErrAnimationInProgress
	}
	if re.ring.Size() <= MinRingSize {
		return -1, fmt.Errorf("%w (%d nodes)", ErrMinimumSize, MinRingSize)
	}
	circulating, suspended := re.token.circulating, re.token.suspended
	re.token.halt()
	wasIntact := re.ring.IsIntact()

	idx, err := re.ring.RemoveNode()
	if err != nil {
		return -1, err
	}
	if re.token.position >= re.ring.Size() {
		re.token.position = 0
	}
	re.emit(nodeEvent(NodeStateChanged, idx))
	last := re.ring.Size() - 1
	re.emit(RingEvent{Type: EdgeStateChanged, Node: last, Peer: 0, Live: re.ring.EdgeLive(last)})
	re.logger.Infof("%s removed, ring size %d", NodeName(idx), re.ring.Size())
	re.noteIntact(wasIntact)

	re.restartToken(circulating, suspended)
	return idx, nil
}

// restartToken puts the token back into circulation after the ring has been
// restructured.  A suspension in force before the change carries over, and
// ends at once if the change left the ring intact
func (re *RingEngine) restartToken(circulating, suspended bool) {
	if !circulating {
		return
	}
	re.StartToken()
	if suspended && re.token.circulating {
		re.token.suspended = true
		re.resumeToken()
	}
}

// SetLatency changes the latency added to hops and gaps
func (re *RingEngine) SetLatency(latency float64) error {
	if latency < 0 || latency > 5.0 {
		return fmt.Errorf("%w: latency %g outside [0,5]", ErrBadParameter, latency)
	}
	re.desc.Latency = latency
	return nil
}

// SetPacketSize changes the payload of packets sent from now on
func (re *RingEngine) SetPacketSize(size int) error {
	if size <= 0 || size > MaxPacketSize {
		return fmt.Errorf("%w: packet size %d outside (0,%d]", ErrBadParameter, size, MaxPacketSize)
	}
	re.desc.PacketSize = size
	return nil
}

// SetCollisions turns collision detection on or off
func (re *RingEngine) SetCollisions(on bool) {
	re.desc.Collisions = on
}

// SetTransitSlots changes how many packets may be in transit at once
func (re *RingEngine) SetTransitSlots(slots int) error {
	if slots < 1 {
		return fmt.Errorf("%w: %d transit slots", ErrBadParameter, slots)
	}
	re.desc.TransitSlots = slots
	re.queue.setSlots(slots)
	re.pump()
	return nil
}

// Reset returns the ring to its starting condition: every node live, no
// traffic, zeroed counters, and the token circulating from node 0
func (re *RingEngine) Reset() {
	re.epoch += 1
	for _, pckt := range re.queue.clear() {
		pckt.State = Cancelled
	}
	re.gapPending = false
	re.loadtest.active = false
	re.loadtest.run += 1
	re.loadtest.pending = 0
	re.bench.active = false
	re.StopAutoSimulation()

	re.token.halt()
	for idx := 0; idx < re.ring.Size(); idx++ {
		re.setNodeLive(idx, true)
	}
	re.ring.resetTraffic(re.now())
	re.metrics = RingMetrics{}
	re.token.position = 0
	re.StartToken()
	re.logger.Infof("ring reset, %d nodes", re.ring.Size())
}

// Metrics returns a copy of the ring counters
func (re *RingEngine) Metrics() RingMetrics {
	return re.metrics
}

// TokenState returns a snapshot of the token
func (re *RingEngine) TokenState() TokenState {
	return re.token.State()
}

// Traffic returns the counters of one node
func (re *RingEngine) Traffic(idx int) Traffic {
	return re.ring.Traffic(idx)
}

// Size is the number of nodes in the ring
func (re *RingEngine) Size() int {
	return re.ring.Size()
}

// Ring gives read access to the ring model
func (re *RingEngine) Ring() *RingModel {
	return re.ring
}

// Router gives access to path computation over the ring
func (re *RingEngine) Router() *PathRouter {
	return re.router
}

// Desc returns a copy of the description the engine is running with
func (re *RingEngine) Desc() RingDesc {
	return *re.desc
}

// Trace returns the engine's trace manager
func (re *RingEngine) Trace() *TraceManager {
	return re.trace
}
