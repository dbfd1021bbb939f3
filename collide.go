package ringnet

// collide.go places nodes in the plane and detects packets that come too close
// to each other while moving between them.  A packet mid-hop is taken to be on
// the straight segment between its hop's endpoints, at the fraction of the hop
// time already elapsed.

import (
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"math"
)

// Point is a position in the layout plane
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Dist is the euclidean distance between two points
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// lerp is the point a fraction frac of the way from p to q
func lerp(p, q Point, frac float64) Point {
	return Point{X: p.X + (q.X-p.X)*frac, Y: p.Y + (q.Y-p.Y)*frac}
}

// Layout gives the position of node idx in a ring of n nodes
type Layout interface {
	Position(idx, n int) Point
}

// CircleLayout spaces the nodes evenly on a circle centered at the origin,
// node 0 at the top, indices increasing clockwise
type CircleLayout struct {
	Radius float64
}

func (cl CircleLayout) Position(idx, n int) Point {
	angle := 2.0*math.Pi*float64(idx)/float64(n) - math.Pi/2.0
	return Point{X: cl.Radius * math.Cos(angle), Y: cl.Radius * math.Sin(angle)}
}

// Collides is true when two points are strictly closer than radius
func Collides(a, b Point, radius float64) bool {
	return a.Dist(b) < radius
}

// position returns where a packet is at time now, and false if it is not in a hop
func (re *RingEngine) position(pckt *Packet, now float64) (Point, bool) {
	if pckt.State != InTransit || !pckt.hop.active {
		return Point{}, false
	}
	n := re.ring.Size()
	from := re.layout.Position(pckt.hop.from, n)
	to := re.layout.Position(pckt.hop.to, n)
	frac := 1.0
	if pckt.hop.duration > 0 {
		frac = math.Min(math.Max((now-pckt.hop.start)/pckt.hop.duration, 0.0), 1.0)
	}
	return lerp(from, to, frac), true
}

// probeTag identifies the hop a collision probe was scheduled for
type probeTag struct {
	pckt   *Packet
	hopNum int
}

// scheduleProbes sets up the instants during the packet's current hop at which
// it is compared against the other packets in transit
func (re *RingEngine) scheduleProbes(pckt *Packet) {
	if !re.desc.Collisions || re.desc.CollisionProbes < 2 {
		return
	}
	for k := 1; k < re.desc.CollisionProbes; k++ {
		offset := pckt.hop.duration * float64(k) / float64(re.desc.CollisionProbes)
		re.evtMgr.Schedule(re, probeTag{pckt: pckt, hopNum: pckt.hopNum}, collisionProbe, vrtime.SecondsToTime(offset))
	}
}

// collisionProbe is an event handler that checks one packet against every other
// packet currently mid-hop
func collisionProbe(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*RingEngine)
	tag := data.(probeTag)
	pckt := tag.pckt

	// stale if the packet has moved on to another hop or left transit
	if tag.hopNum != pckt.hopNum || !re.desc.Collisions {
		return nil
	}
	now := evtMgr.CurrentSeconds()
	here, moving := re.position(pckt, now)
	if !moving {
		return nil
	}
	for _, other := range re.queue.inservice {
		if other == pckt {
			continue
		}
		there, ok := re.position(other, now)
		if ok && Collides(here, there, re.desc.CollisionRadius) {
			re.collide(pckt, other)
			return nil
		}
	}
	return nil
}
