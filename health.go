package ringnet

// health.go reports on the integrity of the ring and tries to restore it.

import (
	"fmt"
)

// HealthReport summarizes the state of the ring at one instant
type HealthReport struct {
	Total             int     `json:"total" yaml:"total"`
	Active            int     `json:"active" yaml:"active"`
	Inactive          int     `json:"inactive" yaml:"inactive"`
	HealthPercentage  float64 `json:"healthpercentage" yaml:"healthpercentage"`
	RingIntact        bool    `json:"ringintact" yaml:"ringintact"`
	BrokenConnections int     `json:"brokenconnections" yaml:"brokenconnections"`
	TokenActive       bool    `json:"tokenactive" yaml:"tokenactive"`
	Segments          [][]int `json:"segments" yaml:"segments"`
	LargestSegment    int     `json:"largestsegment" yaml:"largestsegment"`
	Time              float64 `json:"time" yaml:"time"`
}

// Health computes the current HealthReport
func (re *RingEngine) Health() HealthReport {
	hr := HealthReport{Total: re.ring.Size(), Active: re.ring.LiveCount(), Time: re.now()}
	hr.Inactive = hr.Total - hr.Active
	hr.HealthPercentage = 100.0 * float64(hr.Active) / float64(hr.Total)
	hr.RingIntact = re.ring.IsIntact()
	hr.TokenActive = re.token.active
	for idx := 0; idx < hr.Total; idx++ {
		if !re.ring.EdgeLive(idx) {
			hr.BrokenConnections += 1
		}
	}
	hr.Segments = re.router.LiveSegments()
	for _, seg := range hr.Segments {
		hr.LargestSegment = max(hr.LargestSegment, len(seg))
	}
	return hr
}

// CheckHealth computes the HealthReport and judges it.  The ring is healthy
// when it is intact and at least half its nodes are live.  Each problem found
// is returned as a description
func (re *RingEngine) CheckHealth() (HealthReport, bool, []string) {
	hr := re.Health()
	problems := []string{}
	if !hr.RingIntact {
		problems = append(problems, fmt.Sprintf("ring broken: %d of %d connections down", hr.BrokenConnections, hr.Total))
	}
	if hr.HealthPercentage < 50.0 {
		problems = append(problems, fmt.Sprintf("only %.0f%% of nodes live", hr.HealthPercentage))
	}
	healthy := len(problems) == 0
	if healthy {
		re.logger.Infof("health check: %d/%d nodes live, ring intact", hr.Active, hr.Total)
	} else {
		for _, p := range problems {
			re.logger.Warnf("health check: %s", p)
		}
	}
	return hr, healthy, problems
}

// Heal reactivates the lowest-indexed inactive node and succeeds only if that
// leaves the ring intact.  If the ring is still broken the node stays live and
// ErrHealIncomplete is returned
func (re *RingEngine) Heal() error {
	if re.ring.IsIntact() {
		return nil
	}
	inactive := -1
	for idx := 0; idx < re.ring.Size(); idx++ {
		if !re.ring.IsLive(idx) {
			inactive = idx
			break
		}
	}
	if inactive < 0 {
		return ErrHealFailed
	}

	re.logger.Infof("healing: reactivating %s", NodeName(inactive))
	re.setNodeLive(inactive, true)
	if !re.ring.IsIntact() {
		return fmt.Errorf("%w: %d nodes still inactive", ErrHealIncomplete, re.ring.Size()-re.ring.LiveCount())
	}
	re.metrics.RingHeals += 1
	return nil
}

// AttemptHealing looks for the longest run of consecutive live nodes, walking
// clockwise from every live node.  It reports the run and whether it is long
// enough (3 nodes) to operate as a segment
func (re *RingEngine) AttemptHealing() ([]int, bool) {
	n := re.ring.Size()
	best := []int{}
	for _, start := range re.ring.LiveNodes() {
		run := []int{start}
		for next := re.ring.NeighborOf(start, 1); next != start && re.ring.IsLive(next); next = re.ring.NeighborOf(next, 1) {
			run = append(run, next)
		}
		if len(run) > len(best) {
			best = run
		}
		if len(best) == n {
			break
		}
	}
	ok := len(best) >= MinRingSize
	if ok {
		re.logger.Infof("healing: operating segment of %d nodes from %s", len(best), NodeName(best[0]))
	} else {
		re.logger.Warnf("healing: no operating segment, longest run is %d nodes", len(best))
	}
	return best, ok
}
