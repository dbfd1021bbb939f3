package ringnet

// ring.go holds the canonical state of the simulated ring: the node set,
// the liveness of each node, per-node traffic counters, and the adjacency
// rule that closes the nodes into a cycle.

import (
	"fmt"
	"golang.org/x/exp/slices"
	"strconv"
	"strings"
)

const (
	MinRingSize     = 3
	MaxRingSize     = 12
	DefaultRingSize = 6
)

// Traffic counts the packets a node has originated and absorbed, with the
// simulation time (in seconds) of the last change
type Traffic struct {
	Sent       int     `json:"sent" yaml:"sent"`
	Received   int     `json:"received" yaml:"received"`
	LastUpdate float64 `json:"lastupdate" yaml:"lastupdate"`
}

// ringNode is the run-time representation of one station on the ring
type ringNode struct {
	index   int
	addr    string
	live    bool
	traffic Traffic
}

// RingModel is the node set and its liveness. Edges are not stored: the
// edge (i, i+1 mod N) exists for every i and is live iff both ends are
type RingModel struct {
	nodes  []*ringNode
	intact bool
}

// CreateRingModel is a constructor, building a ring of n live nodes
func CreateRingModel(n int) (*RingModel, error) {
	if n < MinRingSize || n > MaxRingSize {
		return nil, fmt.Errorf("%w: ring size %d outside [%d,%d]", ErrBadParameter, n, MinRingSize, MaxRingSize)
	}
	rm := new(RingModel)
	rm.nodes = make([]*ringNode, 0, n)
	for idx := 0; idx < n; idx++ {
		rm.nodes = append(rm.nodes, &ringNode{index: idx, addr: rm.freshAddress(idx), live: true})
	}
	rm.intact = true
	return rm, nil
}

// NodeName gives the operator-facing label of the node at index idx
func NodeName(idx int) string {
	return "node" + strconv.Itoa(idx+1)
}

// NodeIndex inverts NodeName
func NodeIndex(name string) (int, error) {
	num, err := strconv.Atoi(strings.TrimPrefix(name, "node"))
	if err != nil || !strings.HasPrefix(name, "node") || num < 1 {
		return -1, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	return num - 1, nil
}

// defaultAddress is the address a node at index idx gets unless configured otherwise
func defaultAddress(idx int) string {
	return "192.168.1." + strconv.Itoa(10+idx)
}

// freshAddress returns the default address for idx, or the next one up
// that no other node holds
func (rm *RingModel) freshAddress(idx int) string {
	for offset := 0; ; offset++ {
		addr := defaultAddress(idx + offset)
		if !rm.addressTaken(addr) {
			return addr
		}
	}
}

func (rm *RingModel) addressTaken(addr string) bool {
	return slices.ContainsFunc(rm.nodes, func(nd *ringNode) bool { return nd.addr == addr })
}

// Size is the number of nodes N
func (rm *RingModel) Size() int {
	return len(rm.nodes)
}

func (rm *RingModel) valid(idx int) bool {
	return idx >= 0 && idx < len(rm.nodes)
}

// SetLive sets the liveness of a node and recomputes the intact flag
func (rm *RingModel) SetLive(idx int, live bool) error {
	if !rm.valid(idx) {
		return fmt.Errorf("%w: index %d", ErrUnknownNode, idx)
	}
	rm.nodes[idx].live = live
	rm.recomputeIntact()
	return nil
}

func (rm *RingModel) recomputeIntact() {
	rm.intact = !slices.ContainsFunc(rm.nodes, func(nd *ringNode) bool { return !nd.live })
}

// IsLive reports the liveness of a node; unknown indices are never live
func (rm *RingModel) IsLive(idx int) bool {
	return rm.valid(idx) && rm.nodes[idx].live
}

// IsIntact is true iff every node 0..N-1 is live
func (rm *RingModel) IsIntact() bool {
	return rm.intact
}

// EdgeLive reports whether the edge between idx and its clockwise neighbor is live
func (rm *RingModel) EdgeLive(idx int) bool {
	return rm.IsLive(idx) && rm.IsLive(rm.NeighborOf(idx, 1))
}

// NeighborOf steps once around the ring in the given direction (+1 or -1)
func (rm *RingModel) NeighborOf(idx, direction int) int {
	n := len(rm.nodes)
	return (idx + direction + n) % n
}

// LiveNodes lists the indices of live nodes in ascending order
func (rm *RingModel) LiveNodes() []int {
	live := []int{}
	for _, nd := range rm.nodes {
		if nd.live {
			live = append(live, nd.index)
		}
	}
	return live
}

// LiveCount is the number of live nodes
func (rm *RingModel) LiveCount() int {
	return len(rm.LiveNodes())
}

// AddNode appends a live node at index N, returning its index
func (rm *RingModel) AddNode(now float64) (int, error) {
	if len(rm.nodes) >= MaxRingSize {
		return -1, fmt.Errorf("%w (%d nodes)", ErrCapacity, MaxRingSize)
	}
	idx := len(rm.nodes)
	nd := &ringNode{index: idx, addr: rm.freshAddress(idx), live: true}
	nd.traffic.LastUpdate = now
	rm.nodes = append(rm.nodes, nd)
	rm.recomputeIntact()
	return idx, nil
}

// RemoveNode drops the highest-indexed node, returning the index it had
func (rm *RingModel) RemoveNode() (int, error) {
	if len(rm.nodes) <= MinRingSize {
		return -1, fmt.Errorf("%w (%d nodes)", ErrMinimumSize, MinRingSize)
	}
	idx := len(rm.nodes) - 1
	rm.nodes = rm.nodes[:idx]
	rm.recomputeIntact()
	return idx, nil
}

// Address gives the address assigned to a node, or "" for unknown indices
func (rm *RingModel) Address(idx int) string {
	if !rm.valid(idx) {
		return ""
	}
	return rm.nodes[idx].addr
}

// SetAddress assigns an address, refusing one another node already holds
func (rm *RingModel) SetAddress(idx int, addr string) error {
	if !rm.valid(idx) {
		return fmt.Errorf("%w: index %d", ErrUnknownNode, idx)
	}
	if rm.nodes[idx].addr == addr {
		return nil
	}
	if rm.addressTaken(addr) {
		return fmt.Errorf("%w: address %s already assigned", ErrBadParameter, addr)
	}
	rm.nodes[idx].addr = addr
	return nil
}

// Traffic returns a copy of a node's traffic counters
func (rm *RingModel) Traffic(idx int) Traffic {
	if !rm.valid(idx) {
		return Traffic{}
	}
	return rm.nodes[idx].traffic
}

func (rm *RingModel) recordSent(idx int, now float64) {
	if rm.valid(idx) {
		rm.nodes[idx].traffic.Sent += 1
		rm.nodes[idx].traffic.LastUpdate = now
	}
}

func (rm *RingModel) recordReceived(idx int, now float64) {
	if rm.valid(idx) {
		rm.nodes[idx].traffic.Received += 1
		rm.nodes[idx].traffic.LastUpdate = now
	}
}

// resetTraffic zeroes every node's traffic counters
func (rm *RingModel) resetTraffic(now float64) {
	for _, nd := range rm.nodes {
		nd.traffic = Traffic{LastUpdate: now}
	}
}
