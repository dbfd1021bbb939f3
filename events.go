package ringnet

// events.go defines the notifications the engine emits for whatever renders
// or records it.  Listeners are called synchronously, inside the event handler
// or command that caused the change, and must not call back into the engine.

type EventType int

const (
	NodeStateChanged EventType = iota
	EdgeStateChanged
	TokenMoved
	TokenSuspended
	TokenResumed
	TokenFault
	PacketQueued
	PacketStarted
	HopStarted
	HopCompleted
	PacketDelivered
	BroadcastComplete
	PacketCollided
	PacketDropped
	RingBroken
	RingHealed
	LoadTestComplete
	BenchmarkComplete
)

var evtToStr map[EventType]string = map[EventType]string{
	NodeStateChanged:  "node-state-changed",
	EdgeStateChanged:  "edge-state-changed",
	TokenMoved:        "token-moved",
	TokenSuspended:    "token-suspended",
	TokenResumed:      "token-resumed",
	TokenFault:        "token-fault",
	PacketQueued:      "packet-queued",
	PacketStarted:     "packet-started",
	HopStarted:        "packet-hop-started",
	HopCompleted:      "packet-hop-completed",
	PacketDelivered:   "packet-delivered",
	BroadcastComplete: "broadcast-complete",
	PacketCollided:    "packet-collided",
	PacketDropped:     "packet-dropped",
	RingBroken:        "ring-broken",
	RingHealed:        "ring-healed",
	LoadTestComplete:  "load-test-complete",
	BenchmarkComplete: "benchmark-complete",
}

func (et EventType) String() string {
	str, present := evtToStr[et]
	if !present {
		return "unknown"
	}
	return str
}

// RingEvent carries what a listener needs to know about one change.
// Fields that do not apply to the event type are left at their zero value,
// except Node and Peer which are -1 when unused
type RingEvent struct {
	Type     EventType
	Time     float64 // simulation time, in seconds
	Node     int     // node the event concerns (token holder, hop origin, ...)
	Peer     int     // second node, e.g. the far end of an edge or hop
	Live     bool    // node or edge liveness after the change
	PacketID string
	OtherID  string  // the other packet in a collision
	From     Point   // hop start position
	To       Point   // hop end position
	Duration float64 // nominal hop duration
	Err      error   // why a packet was dropped or a token fault occurred
}

// Listener receives engine events
type Listener func(RingEvent)

// Subscribe registers a listener for every event the engine emits
func (re *RingEngine) Subscribe(l Listener) {
	if l != nil {
		re.listeners = append(re.listeners, l)
	}
}

func (re *RingEngine) emit(evt RingEvent) {
	evt.Time = re.now()
	for _, l := range re.listeners {
		l(evt)
	}
	re.trace.AddEvent(evt)
}

// nodeEvent is shorthand for events that concern a single node
func nodeEvent(et EventType, node int) RingEvent {
	return RingEvent{Type: et, Node: node, Peer: -1}
}
