package ringnet

// token.go implements the circulating access token.  While circulating, a tick
// every token period moves the token to the next live node in the ring
// direction.  Ticks on a broken ring leave the token where it is until the
// ring is intact again.  Stopping bumps a generation counter so that a tick
// already on the event list is ignored when it fires.

import (
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// TokenState reports the token for display and diagnostics
type TokenState struct {
	Position    int  `json:"position" yaml:"position"`
	Active      bool `json:"active" yaml:"active"`
	Circulating bool `json:"circulating" yaml:"circulating"`
	Suspended   bool `json:"suspended" yaml:"suspended"`
	Direction   int  `json:"direction" yaml:"direction"`
}

// TokenCirculator holds the single token of a ring
type TokenCirculator struct {
	position    int
	direction   int     // +1 clockwise, -1 counter-clockwise
	period      float64 // seconds between ticks
	active      bool    // token logically exists
	circulating bool    // tick timer running
	suspended   bool    // ticks are no-ops because the ring is broken
	gen         int     // tags the tick chain started by the most recent start
}

// CreateTokenCirculator is a constructor.  The token starts at node 0, stopped
func CreateTokenCirculator(direction int, period float64) *TokenCirculator {
	tc := new(TokenCirculator)
	tc.direction = 1
	if direction < 0 {
		tc.direction = -1
	}
	tc.period = period
	return tc
}

// State returns a snapshot of the token
func (tc *TokenCirculator) State() TokenState {
	return TokenState{Position: tc.position, Active: tc.active, Circulating: tc.circulating,
		Suspended: tc.suspended, Direction: tc.direction}
}

// halt stops circulation, invalidating any tick in flight
func (tc *TokenCirculator) halt() {
	tc.active = false
	tc.circulating = false
	tc.suspended = false
	tc.gen += 1
}

// StartToken begins circulation.  It does nothing if the token is already circulating
func (re *RingEngine) StartToken() {
	tc := re.token
	if tc.circulating {
		return
	}
	tc.active = true
	tc.circulating = true
	tc.suspended = false
	tc.gen += 1
	if !re.ring.IsLive(tc.position) {
		re.moveTokenToLive()
		if !tc.circulating {
			return
		}
	}
	re.evtMgr.Schedule(re, tc.gen, tokenTick, vrtime.SecondsToTime(tc.period))
	re.logger.Infof("token circulation started at %s", NodeName(tc.position))
}

// StopToken ends circulation, leaving the token at its last node
func (re *RingEngine) StopToken() {
	if !re.token.active && !re.token.circulating {
		return
	}
	re.token.halt()
	re.logger.Infof("token circulation stopped at %s", NodeName(re.token.position))
}

// ReleaseToken hands the token on by hand.  A stopped token is put back into
// circulation; a circulating one is passed one step immediately
func (re *RingEngine) ReleaseToken() error {
	if !re.ring.IsIntact() {
		return ErrRingBroken
	}
	if !re.token.circulating {
		re.StartToken()
		return nil
	}
	re.passToken()
	return nil
}

// tokenTick is the event handler for one period of token circulation
func tokenTick(evtMgr *evtm.EventManager, context any, data any) any {
	re := context.(*RingEngine)
	tc := re.token
	if data.(int) != tc.gen || !tc.circulating {
		return nil
	}

	if !re.ring.IsIntact() {
		if !tc.suspended {
			tc.suspended = true
			re.emit(nodeEvent(TokenSuspended, tc.position))
			re.logger.Warnf("ring broken, token held at %s", NodeName(tc.position))
		}
	} else {
		re.resumeToken()
		if !re.passToken() {
			return nil
		}
	}
	evtMgr.Schedule(re, tc.gen, tokenTick, vrtime.SecondsToTime(tc.period))
	return nil
}

// resumeToken clears the suspension of a circulating token once the ring is intact
func (re *RingEngine) resumeToken() {
	tc := re.token
	if tc.suspended && re.ring.IsIntact() {
		tc.suspended = false
		re.emit(nodeEvent(TokenResumed, tc.position))
		re.logger.Infof("ring intact, token circulation resumed at %s", NodeName(tc.position))
	}
}

// passToken moves the token to the next live node in the ring direction,
// trying at most N nodes.  Finding none stops circulation and reports a fault
func (re *RingEngine) passToken() bool {
	tc := re.token
	from := tc.position
	next := from
	for attempt := 0; attempt < re.ring.Size(); attempt++ {
		next = re.ring.NeighborOf(next, tc.direction)
		if re.ring.IsLive(next) {
			tc.position = next
			re.metrics.TokenPasses += 1
			re.emit(RingEvent{Type: TokenMoved, Node: next, Peer: from})
			return true
		}
	}
	re.tokenFault()
	return false
}

// moveTokenToLive puts a token sitting on a dead node onto the next live one
func (re *RingEngine) moveTokenToLive() {
	tc := re.token
	from := tc.position
	for attempt := 0; attempt < re.ring.Size(); attempt++ {
		if re.ring.IsLive(tc.position) {
			if tc.position != from {
				re.emit(RingEvent{Type: TokenMoved, Node: tc.position, Peer: from})
			}
			return
		}
		tc.position = re.ring.NeighborOf(tc.position, tc.direction)
	}
	tc.position = from
	re.tokenFault()
}

func (re *RingEngine) tokenFault() {
	re.token.halt()
	re.metrics.TokenTimeouts += 1
	re.emit(RingEvent{Type: TokenFault, Node: re.token.position, Peer: -1, Err: ErrInsufficientNodes})
	re.logger.Errorf("token lost: no live node to hold it")
}
