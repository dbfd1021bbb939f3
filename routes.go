package ringnet

// routes.go provides functions to compute paths around the ring: the shortest
// and alternative arcs between two nodes, their viability given node liveness,
// and the failover choice between them.
//
// A ring offers exactly two arcs between distinct nodes s and t, clockwise and
// counter-clockwise, with hop counts that sum to N.  The shortest arc is used when
// all of its nodes are live; failing that the other arc carries the traffic.
//
// For analysis (not for delivery) the live part of the ring is also converted into
// the data structures of gonum's graph package, so that its path and topology
// algorithms can report reachability and segment structure.

import (
	"fmt"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"math"
	"sort"
)

// PathRouter computes cyclic paths over a RingModel
type PathRouter struct {
	ring *RingModel
}

// CreatePathRouter is a constructor
func CreatePathRouter(ring *RingModel) *PathRouter {
	return &PathRouter{ring: ring}
}

// arcDistances returns the clockwise and counter-clockwise hop counts from src to dst
func (pr *PathRouter) arcDistances(src, dst int) (int, int) {
	n := pr.ring.Size()
	cw := (dst - src + n) % n
	ccw := (src - dst + n) % n
	return cw, ccw
}

// walk lists hops+1 indices starting at src, stepping in the given direction
func (pr *PathRouter) walk(src, direction, hops int) []int {
	route := make([]int, 0, hops+1)
	here := src
	route = append(route, here)
	for step := 0; step < hops; step++ {
		here = pr.ring.NeighborOf(here, direction)
		route = append(route, here)
	}
	return route
}

func (pr *PathRouter) checkEndpoints(src, dst int) error {
	if !pr.ring.valid(src) {
		return fmt.Errorf("%w: index %d", ErrUnknownNode, src)
	}
	if !pr.ring.valid(dst) {
		return fmt.Errorf("%w: index %d", ErrUnknownNode, dst)
	}
	if src == dst {
		return fmt.Errorf("%w: %s", ErrSameEndpoints, NodeName(src))
	}
	return nil
}

// ShortestPath returns the arc with fewer hops from src to dst inclusive.
// When both arcs have the same length the clockwise one is chosen
func (pr *PathRouter) ShortestPath(src, dst int) ([]int, error) {
	if err := pr.checkEndpoints(src, dst); err != nil {
		return nil, err
	}
	cw, ccw := pr.arcDistances(src, dst)
	if cw <= ccw {
		return pr.walk(src, 1, cw), nil
	}
	return pr.walk(src, -1, ccw), nil
}

// AlternativePath returns the arc ShortestPath does not, i.e. the failover
// route around the other side of the ring
func (pr *PathRouter) AlternativePath(src, dst int) ([]int, error) {
	if err := pr.checkEndpoints(src, dst); err != nil {
		return nil, err
	}
	cw, ccw := pr.arcDistances(src, dst)
	if cw > ccw {
		return pr.walk(src, 1, cw), nil
	}
	return pr.walk(src, -1, ccw), nil
}

// Viable is true iff every node on the path is live
func (pr *PathRouter) Viable(route []int) bool {
	for _, idx := range route {
		if !pr.ring.IsLive(idx) {
			return false
		}
	}
	return true
}

// BestAvailablePath prefers the shortest arc, falls back to the alternative one,
// and reports ErrNoPath when neither is viable.  The boolean return flags use of
// the alternative arc
func (pr *PathRouter) BestAvailablePath(src, dst int) ([]int, bool, error) {
	shortest, err := pr.ShortestPath(src, dst)
	if err != nil {
		return nil, false, err
	}
	if pr.Viable(shortest) {
		return shortest, false, nil
	}

	alternative, _ := pr.AlternativePath(src, dst)
	if pr.Viable(alternative) {
		return alternative, true, nil
	}
	return nil, false, fmt.Errorf("%w: %s to %s", ErrNoPath, NodeName(src), NodeName(dst))
}

// liveGraph builds a gonum representation of the live part of the ring.
// Every live node is a graph node, and every live edge has weight 1, so a
// shortest path minimizes the number of hops
func (pr *PathRouter) liveGraph() *simple.WeightedUndirectedGraph {
	liveG := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, idx := range pr.ring.LiveNodes() {
		liveG.AddNode(simple.Node(idx))
	}
	n := pr.ring.Size()
	for idx := 0; idx < n; idx++ {
		nbr := pr.ring.NeighborOf(idx, 1)
		if nbr == idx || !pr.ring.EdgeLive(idx) {
			continue
		}
		liveG.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(idx), T: simple.Node(nbr), W: 1.0})
	}
	return liveG
}

// convertNodeSeq extracts ring indices from a sequence of graph nodes
func convertNodeSeq(nsQ []graph.Node) []int {
	rtn := make([]int, 0, len(nsQ))
	for _, node := range nsQ {
		rtn = append(rtn, int(node.ID()))
	}
	return rtn
}

// LiveRoute returns a minimum-hop route from src to dst that crosses only live
// nodes, or nil when the live subgraph does not connect them
func (pr *PathRouter) LiveRoute(src, dst int) []int {
	if !pr.ring.IsLive(src) || !pr.ring.IsLive(dst) {
		return nil
	}
	if src == dst {
		return []int{src}
	}
	liveG := pr.liveGraph()
	spTree := path.DijkstraFrom(simple.Node(src), liveG)
	nodeSeq, weight := spTree.To(int64(dst))
	if math.IsInf(weight, 1) || len(nodeSeq) == 0 {
		return nil
	}
	return convertNodeSeq(nodeSeq)
}

// LiveSegments returns the maximal runs of connected live nodes, each sorted
// by index, ordered by their smallest member
func (pr *PathRouter) LiveSegments() [][]int {
	components := topo.ConnectedComponents(pr.liveGraph())
	segments := make([][]int, 0, len(components))
	for _, cc := range components {
		seg := convertNodeSeq(cc)
		sort.Ints(seg)
		segments = append(segments, seg)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i][0] < segments[j][0] })
	return segments
}
