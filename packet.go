package ringnet

// packet.go defines the unit of traffic carried around the ring, its
// lifecycle states, and the timing model that turns a packet's size into
// the duration of one hop.

import (
	"fmt"
	"github.com/google/uuid"
)

// NoTarget is the target of a broadcast packet
const NoTarget = -1

// reference size for the hop timing model, in bytes
const (
	BasePacketSize = 64
	MaxPacketSize  = 1500
)

type PacketKind int

const (
	UnicastPacket PacketKind = iota
	BroadcastPacket
)

func (pk PacketKind) String() string {
	if pk == BroadcastPacket {
		return "broadcast"
	}
	return "unicast"
}

type PacketState int

const (
	Queued PacketState = iota
	InTransit
	Delivered
	Collided
	Broken
	Dropped
	Cancelled
)

var pcktStateToStr map[PacketState]string = map[PacketState]string{
	Queued:    "queued",
	InTransit: "in-transit",
	Delivered: "delivered",
	Collided:  "collided",
	Broken:    "broken",
	Dropped:   "dropped",
	Cancelled: "cancelled",
}

func (ps PacketState) String() string {
	return pcktStateToStr[ps]
}

// Terminal is true for states a packet never leaves
func (ps PacketState) Terminal() bool {
	return ps != Queued && ps != InTransit
}

// hopState describes the hop a packet is currently making
type hopState struct {
	from, to int
	start    float64 // simulation time the hop began
	duration float64
	active   bool // false between hops
}

// Packet is one unicast or broadcast transmission
type Packet struct {
	ID      string
	Kind    PacketKind
	Src     int
	Dst     int // NoTarget for broadcast
	Size    int // bytes
	Created float64
	State   PacketState
	Err     error // set when the packet ends in any state other than Delivered

	path   []int // node indices visited, source first
	cursor int   // index into path of the node the packet last reached
	hop    hopState
	hopNum int // count of hops started, tags scheduled events
}

// createPacket is a constructor.  It refuses structurally impossible packets;
// whether the endpoints are live is checked by the caller
func createPacket(kind PacketKind, src, dst, size int, now float64) (*Packet, error) {
	if src < 0 {
		return nil, fmt.Errorf("%w: source index %d", ErrUnknownNode, src)
	}
	if size <= 0 || size > MaxPacketSize {
		return nil, fmt.Errorf("%w: packet size %d outside (0,%d]", ErrBadParameter, size, MaxPacketSize)
	}
	switch kind {
	case UnicastPacket:
		if dst < 0 {
			return nil, fmt.Errorf("%w: target index %d", ErrUnknownNode, dst)
		}
		if src == dst {
			return nil, fmt.Errorf("%w: %s", ErrSameEndpoints, NodeName(src))
		}
	case BroadcastPacket:
		dst = NoTarget
	default:
		return nil, fmt.Errorf("%w: packet kind %d", ErrBadParameter, kind)
	}

	pckt := new(Packet)
	pckt.ID = uuid.NewString()
	pckt.Kind = kind
	pckt.Src = src
	pckt.Dst = dst
	pckt.Size = size
	pckt.Created = now
	pckt.State = Queued
	return pckt, nil
}

// Path returns a copy of the route assigned when transit began
func (pckt *Packet) Path() []int {
	return append([]int{}, pckt.path...)
}

// Hops is the number of hops completed so far
func (pckt *Packet) Hops() int {
	return pckt.cursor
}

// atEnd is true when the packet has reached the last node of its path
func (pckt *Packet) atEnd() bool {
	return pckt.cursor >= len(pckt.path)-1
}

func (pckt *Packet) String() string {
	if pckt.Kind == BroadcastPacket {
		return fmt.Sprintf("broadcast %s from %s", pckt.ID[:8], NodeName(pckt.Src))
	}
	return fmt.Sprintf("packet %s %s->%s", pckt.ID[:8], NodeName(pckt.Src), NodeName(pckt.Dst))
}

// sizeFactor scales hop time with payload size: 1 at 64 bytes, 2 at 1500
func sizeFactor(size int) float64 {
	return 1.0 + float64(size-BasePacketSize)/float64(MaxPacketSize-BasePacketSize)
}

// hopDuration is the time one hop of a packet of the given size takes
func hopDuration(speed float64, size int, latency float64) float64 {
	return speed*sizeFactor(size) + latency
}
