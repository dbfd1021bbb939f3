package ringnet

// deliver.go moves packets around the ring.  A packet waits in the transit
// queue until a slot is free, then walks its path one hop at a time.  Each hop
// is an interval of simulation time bounded by two events; the liveness of the
// hop's endpoints is checked when the hop begins, and a hop that has begun
// always runs to its end.  When a packet leaves transit for any reason the
// queue is held for a short gap, starting before any event about the packet
// is emitted.

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// SendPacket validates and queues a unicast packet of the configured size.
// The packet starts at once if a transit slot is free
func (re *RingEngine) SendPacket(src, dst int) (*Packet, error) {
	return re.sendSized(src, dst, re.desc.PacketSize)
}

func (re *RingEngine) sendSized(src, dst, size int) (*Packet, error) {
	if err := re.canTransmit(src, dst); err != nil {
		return nil, err
	}
	if _, _, err := re.router.BestAvailablePath(src, dst); err != nil {
		return nil, err
	}
	pckt, err := createPacket(UnicastPacket, src, dst, size, re.now())
	if err != nil {
		return nil, err
	}
	re.submit(pckt)
	return pckt, nil
}

// canTransmit checks that both ends of a unicast exist, differ, and are live
func (re *RingEngine) canTransmit(src, dst int) error {
	if err := re.router.checkEndpoints(src, dst); err != nil {
		return err
	}
	if !re.ring.IsLive(src) {
		return fmt.Errorf("%w: %s", ErrSourceInactive, NodeName(src))
	}
	if !re.ring.IsLive(dst) {
		return fmt.Errorf("%w: %s", ErrTargetInactive, NodeName(dst))
	}
	return nil
}

// Broadcast queues a packet that visits every node once, starting from src and
// moving in the ring direction
func (re *RingEngine) Broadcast(src int) (*Packet, error) {
	if err := re.canBroadcast(src); err != nil {
		return nil, err
	}
	pckt, err := createPacket(BroadcastPacket, src, NoTarget, re.desc.PacketSize, re.now())
	if err != nil {
		return nil, err
	}
	re.submit(pckt)
	return pckt, nil
}

func (re *RingEngine) canBroadcast(src int) error {
	if !re.ring.valid(src) {
		return fmt.Errorf("%w: index %d", ErrUnknownNode, src)
	}
	if !re.ring.IsLive(src) {
		return fmt.Errorf("%w: %s", ErrSourceInactive, NodeName(src))
	}
	if re.ring.LiveCount() < 2 {
		return fmt.Errorf("%w: broadcast needs 2 live nodes", ErrInsufficientNodes)
	}
	return nil
}

// submit puts a packet in the transit queue and starts whatever can start
func (re *RingEngine) submit(pckt *Packet) {
	re.queue.join(pckt)
	re.emit(RingEvent{Type: PacketQueued, Node: pckt.Src, Peer: pckt.Dst, PacketID: pckt.ID})
	re.pump()
}

// pump moves waiting packets into transit while slots are free and no
// inter-packet gap is running
func (re *RingEngine) pump() {
	for !re.gapPending {
		pckt := re.queue.next()
		if pckt == nil {
			break
		}
		re.beginTransit(pckt)
	}
	re.checkLoadTestDone()
}

// resumeAfter holds the queue for gap seconds
func (re *RingEngine) resumeAfter(gap float64) {
	re.gapPending = true
	re.evtMgr.Schedule(re, re.epoch, queueResume, vrtime.SecondsToTime(gap))
}

// queueResume is the event handler ending an inter-packet gap
func queueResume(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*RingEngine)
	if data.(int) != re.epoch {
		return nil
	}
	re.gapPending = false
	re.pump()
	return nil
}

// beginTransit re-validates a packet that has just been given a slot, fixes
// its path, and starts its first hop.  The topology may have changed while
// the packet waited, in which case it is dropped
func (re *RingEngine) beginTransit(pckt *Packet) {
	var err error
	switch pckt.Kind {
	case UnicastPacket:
		if err = re.canTransmit(pckt.Src, pckt.Dst); err == nil {
			var alternative bool
			pckt.path, alternative, err = re.router.BestAvailablePath(pckt.Src, pckt.Dst)
			if alternative {
				re.logger.Warnf("%s: shortest arc broken, using alternative path %v", pckt, pckt.path)
			}
		}
	case BroadcastPacket:
		if err = re.canBroadcast(pckt.Src); err == nil {
			pckt.path = re.router.walk(pckt.Src, re.desc.Direction, re.ring.Size()-1)
		}
	}
	if err != nil {
		re.drop(pckt, err)
		return
	}

	pckt.State = InTransit
	pckt.cursor = 0
	re.emit(RingEvent{Type: PacketStarted, Node: pckt.Src, Peer: pckt.Dst, PacketID: pckt.ID})
	re.logger.Debugf("%s started on path %v", pckt, pckt.path)
	re.startHop(pckt)
}

// startHop begins the hop out of the node the packet last reached
func (re *RingEngine) startHop(pckt *Packet) {
	from := pckt.path[pckt.cursor]
	to := pckt.path[pckt.cursor+1]
	if !re.ring.IsLive(from) || !re.ring.IsLive(to) {
		re.abort(pckt, fmt.Errorf("%w: %s-%s", ErrPathBroken, NodeName(from), NodeName(to)))
		return
	}

	duration := hopDuration(re.desc.PacketSpeed, pckt.Size, re.desc.Latency)
	pckt.hopNum += 1
	pckt.hop = hopState{from: from, to: to, start: re.now(), duration: duration, active: true}

	n := re.ring.Size()
	re.emit(RingEvent{Type: HopStarted, Node: from, Peer: to, PacketID: pckt.ID,
		From: re.layout.Position(from, n), To: re.layout.Position(to, n), Duration: duration})

	re.evtMgr.Schedule(re, probeTag{pckt: pckt, hopNum: pckt.hopNum}, hopComplete, vrtime.SecondsToTime(duration))
	re.scheduleProbes(pckt)
}

// hopComplete is the event handler for a packet reaching the far end of a hop
func hopComplete(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*RingEngine)
	tag := data.(probeTag)
	pckt := tag.pckt
	if pckt.State != InTransit || tag.hopNum != pckt.hopNum {
		return nil
	}

	hop := pckt.hop
	pckt.hop.active = false
	pckt.cursor += 1
	n := re.ring.Size()
	re.emit(RingEvent{Type: HopCompleted, Node: hop.from, Peer: hop.to, PacketID: pckt.ID,
		From: re.layout.Position(hop.from, n), To: re.layout.Position(hop.to, n), Duration: hop.duration})

	if pckt.Kind == BroadcastPacket {
		re.ring.recordReceived(hop.to, re.now())
		re.emit(RingEvent{Type: PacketDelivered, Node: hop.to, Peer: pckt.Src, PacketID: pckt.ID})
	}

	if pckt.atEnd() {
		re.complete(pckt)
		return nil
	}
	evtMgr.Schedule(re, tag, hopBegin, vrtime.SecondsToTime(re.desc.HopGap+re.desc.Latency))
	return nil
}

// hopBegin is the event handler that starts a packet's next hop after the inter-hop gap
func hopBegin(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*RingEngine)
	tag := data.(probeTag)
	if tag.pckt.State != InTransit || tag.hopNum != tag.pckt.hopNum {
		return nil
	}
	re.startHop(tag.pckt)
	return nil
}

// complete finishes a packet that has reached the end of its path
func (re *RingEngine) complete(pckt *Packet) {
	now := re.now()
	pckt.State = Delivered
	re.queue.release(pckt)
	re.resumeAfter(re.desc.QueueGap)
	re.ring.recordSent(pckt.Src, now)
	re.metrics.Delivered += 1

	if pckt.Kind == UnicastPacket {
		re.ring.recordReceived(pckt.Dst, now)
		re.emit(RingEvent{Type: PacketDelivered, Node: pckt.Dst, Peer: pckt.Src, PacketID: pckt.ID})
		re.logger.Infof("%s delivered in %d hops", pckt, pckt.Hops())
	} else {
		re.emit(RingEvent{Type: BroadcastComplete, Node: pckt.Src, Peer: -1, PacketID: pckt.ID})
		re.logger.Infof("%s reached all %d nodes", pckt, re.ring.Size())
	}
	re.packetDone(pckt, now-pckt.Created)
}

// abort discards a packet whose next hop has a dead endpoint
func (re *RingEngine) abort(pckt *Packet, err error) {
	pckt.State = Broken
	pckt.Err = err
	pckt.hop.active = false
	re.queue.release(pckt)
	re.resumeAfter(re.desc.CollisionGap)
	re.metrics.Lost += 1
	re.emit(RingEvent{Type: PacketDropped, Node: pckt.Src, Peer: pckt.Dst, PacketID: pckt.ID, Err: err})
	re.logger.Warnf("%s aborted after %d hops: %v", pckt, pckt.Hops(), err)
	re.packetDone(pckt, 0)
}

// drop discards a packet that cannot begin transit.  The caller keeps pumping
func (re *RingEngine) drop(pckt *Packet, err error) {
	pckt.State = Dropped
	pckt.Err = err
	re.queue.release(pckt)
	re.metrics.Lost += 1
	re.emit(RingEvent{Type: PacketDropped, Node: pckt.Src, Peer: pckt.Dst, PacketID: pckt.ID, Err: err})
	re.logger.Warnf("%s dropped before transit: %v", pckt, err)
	re.packetDone(pckt, 0)
}

// collide discards two packets found too close to each other
func (re *RingEngine) collide(pckt, other *Packet) {
	now := re.now()
	where, _ := re.position(pckt, now)
	for _, p := range []*Packet{pckt, other} {
		p.State = Collided
		p.Err = fmt.Errorf("collided with %s", p.otherID(pckt, other))
		p.hop.active = false
		re.queue.release(p)
	}
	re.resumeAfter(re.desc.CollisionGap)
	re.metrics.Collisions += 1
	re.metrics.Lost += 2
	if re.loadtest.active {
		re.loadtest.metrics.Collisions += 1
	}
	re.emit(RingEvent{Type: PacketCollided, Node: pckt.hop.from, Peer: pckt.hop.to,
		PacketID: pckt.ID, OtherID: other.ID, From: where, To: where})
	re.logger.Warnf("collision between %s and %s", pckt, other)
	re.packetDone(pckt, 0)
	re.packetDone(other, 0)
}

// otherID names whichever of a and b is not pckt
func (pckt *Packet) otherID(a, b *Packet) string {
	if pckt == a {
		return b.ID
	}
	return a.ID
}

// packetDone does the bookkeeping shared by every way a packet leaves the
// system.  latency is meaningful only for delivered packets
func (re *RingEngine) packetDone(pckt *Packet, latency float64) {
	re.loadtest.record(pckt, latency)
	re.bench.record(re, pckt, latency)
	re.checkLoadTestDone()
}

// PacketQueueLength is the number of packets waiting for a transit slot
func (re *RingEngine) PacketQueueLength() int {
	return len(re.queue.waiting)
}

// InTransit lists the packets currently holding transit slots
func (re *RingEngine) InTransit() []*Packet {
	return append([]*Packet{}, re.queue.inservice...)
}

// Animating is true while any packet holds a transit slot
func (re *RingEngine) Animating() bool {
	return re.queue.busy()
}
