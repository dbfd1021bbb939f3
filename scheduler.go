package ringnet

// scheduler.go holds the structure that governs access to the ring medium.
// Packets wait first-come first-serve for one of a limited number of transit
// slots; a packet holds its slot from the start of transit until it is
// delivered, discarded, or aborted.

import (
	"golang.org/x/exp/slices"
)

// transitQueue holds packets waiting for, and in, transit
type transitQueue struct {
	slots     int       // packets allowed in transit at once
	waiting   []*Packet // FIFO, not in service
	inservice []*Packet // in transit, in order of admission
}

// createTransitQueue is a constructor
func createTransitQueue(slots int) *transitQueue {
	if slots < 1 {
		slots = 1
	}
	tq := new(transitQueue)
	tq.slots = slots
	tq.waiting = []*Packet{}
	tq.inservice = []*Packet{}
	return tq
}

// join puts a packet at the end of the waiting line
func (tq *transitQueue) join(pckt *Packet) {
	tq.waiting = append(tq.waiting, pckt)
}

// free is true when a slot is available
func (tq *transitQueue) free() bool {
	return len(tq.inservice) < tq.slots
}

// next moves the first waiting packet into service and returns it, or
// returns nil when nothing waits or no slot is available
func (tq *transitQueue) next() *Packet {
	if !tq.free() || len(tq.waiting) == 0 {
		return nil
	}
	pckt := tq.waiting[0]
	tq.waiting = tq.waiting[1:]
	tq.inservice = append(tq.inservice, pckt)
	return pckt
}

// release gives up the slot a packet holds.  The return is false if the
// packet was not in service
func (tq *transitQueue) release(pckt *Packet) bool {
	idx := slices.Index(tq.inservice, pckt)
	if idx < 0 {
		return false
	}
	tq.inservice = slices.Delete(tq.inservice, idx, idx+1)
	return true
}

// busy is true while any packet is in service
func (tq *transitQueue) busy() bool {
	return len(tq.inservice) > 0
}

// idle is true when nothing waits and nothing is in service
func (tq *transitQueue) idle() bool {
	return len(tq.waiting) == 0 && len(tq.inservice) == 0
}

// drain empties the waiting line, returning what it held
func (tq *transitQueue) drain() []*Packet {
	drained := tq.waiting
	tq.waiting = []*Packet{}
	return drained
}

// clear empties both the waiting line and the service set
func (tq *transitQueue) clear() []*Packet {
	all := append(tq.drain(), tq.inservice...)
	tq.inservice = []*Packet{}
	return all
}

// setSlots changes the number of transit slots.  Packets already in service
// keep theirs
func (tq *transitQueue) setSlots(slots int) {
	if slots < 1 {
		slots = 1
	}
	tq.slots = slots
}
