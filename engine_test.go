package ringnet

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

func TestMain(m *testing.M) {
	SetLogger(NewLogger(io.Discard, LogLevelError, ""))
	os.Exit(m.Run())
}

// newTestEngine builds a 6-node ring with the token stopped, after letting
// mutate adjust the description
func newTestEngine(t *testing.T, mutate func(rd *RingDesc)) (*evtm.EventManager, *RingEngine) {
	t.Helper()
	rd := CreateRingDesc(t.Name())
	rd.StartToken = false
	if mutate != nil {
		mutate(rd)
	}
	evtMgr := evtm.New()
	re, err := CreateRingEngine(evtMgr, rd)
	if err != nil {
		t.Fatalf("CreateRingEngine: %v", err)
	}
	return evtMgr, re
}

// at runs fn secs after the current simulation time
func at(evtMgr *evtm.EventManager, secs float64, fn func()) {
	evtMgr.Schedule(nil, nil, func(*evtm.EventManager, any, any) any {
		fn()
		return nil
	}, vrtime.SecondsToTime(secs))
}

// record collects every event the engine emits
func record(re *RingEngine) *[]RingEvent {
	evts := &[]RingEvent{}
	re.Subscribe(func(evt RingEvent) { *evts = append(*evts, evt) })
	return evts
}

func countEvents(evts []RingEvent, et EventType) int {
	count := 0
	for _, evt := range evts {
		if evt.Type == et {
			count++
		}
	}
	return count
}

func TestCreateRingEngineRejectsBadDesc(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rd *RingDesc)
	}{
		{"too small", func(rd *RingDesc) { rd.Size = 2 }},
		{"too large", func(rd *RingDesc) { rd.Size = 13 }},
		{"direction", func(rd *RingDesc) { rd.Direction = 0 }},
		{"slots", func(rd *RingDesc) { rd.TransitSlots = 0 }},
		{"packet size", func(rd *RingDesc) { rd.PacketSize = 2000 }},
		{"arrivals", func(rd *RingDesc) { rd.Arrivals = "poisson-ish" }},
		{"duplicate address", func(rd *RingDesc) {
			rd.Nodes = []NodeDesc{{Name: "node1", Address: "10.0.0.1"}, {Name: "node2", Address: "10.0.0.1"}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rd := CreateRingDesc("bad")
			tc.mutate(rd)
			if _, err := CreateRingEngine(evtm.New(), rd); !errors.Is(err, ErrBadParameter) {
				t.Errorf("got %v, want ErrBadParameter", err)
			}
		})
	}
}

func TestToggleNodeEmitsEvents(t *testing.T) {
	_, re := newTestEngine(t, nil)
	evts := record(re)

	if err := re.ToggleNode(2); err != nil {
		t.Fatal(err)
	}
	if re.Ring().IsLive(2) || re.Ring().IsIntact() {
		t.Fatal("node 2 should be down and the ring broken")
	}
	if got := re.Metrics().RingBreaks; got != 1 {
		t.Errorf("RingBreaks = %d, want 1", got)
	}
	if countEvents(*evts, NodeStateChanged) != 1 || countEvents(*evts, EdgeStateChanged) != 2 ||
		countEvents(*evts, RingBroken) != 1 {
		t.Errorf("unexpected events %v", *evts)
	}

	// a second failure does not break the ring again
	if err := re.ToggleNode(4); err != nil {
		t.Fatal(err)
	}
	if got := re.Metrics().RingBreaks; got != 1 {
		t.Errorf("RingBreaks = %d after second failure, want 1", got)
	}

	re.ToggleNode(2)
	re.ToggleNode(4)
	if !re.Ring().IsIntact() || countEvents(*evts, RingHealed) != 1 {
		t.Error("ring should be healed once")
	}

	if err := re.ToggleNode(6); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("ToggleNode(6) = %v, want ErrUnknownNode", err)
	}
}

func TestAddRemoveLimits(t *testing.T) {
	_, re := newTestEngine(t, func(rd *RingDesc) { rd.Size = MaxRingSize })
	if _, err := re.AddNode(); !errors.Is(err, ErrCapacity) {
		t.Errorf("AddNode at capacity = %v, want ErrCapacity", err)
	}
	if re.Size() != MaxRingSize {
		t.Errorf("size changed to %d", re.Size())
	}

	_, re = newTestEngine(t, func(rd *RingDesc) { rd.Size = MinRingSize })
	if _, err := re.RemoveNode(); !errors.Is(err, ErrMinimumSize) {
		t.Errorf("RemoveNode at minimum = %v, want ErrMinimumSize", err)
	}
	if re.Size() != MinRingSize {
		t.Errorf("size changed to %d", re.Size())
	}
}

func TestAddNodeAssignsFreshNode(t *testing.T) {
	_, re := newTestEngine(t, nil)
	idx, err := re.AddNode()
	if err != nil {
		t.Fatal(err)
	}
	if idx != 6 || re.Size() != 7 {
		t.Fatalf("AddNode gave index %d, size %d", idx, re.Size())
	}
	if addr := re.Ring().Address(idx); addr != "192.168.1.16" {
		t.Errorf("address = %s", addr)
	}
	if tr := re.Traffic(idx); tr.Sent != 0 || tr.Received != 0 {
		t.Errorf("traffic not zero: %+v", tr)
	}
	if !re.Ring().IsLive(idx) || !re.Ring().IsIntact() {
		t.Error("new node should be live and ring intact")
	}
}

func TestRemoveNodeResetsTokenAndResumes(t *testing.T) {
	evtMgr, re := newTestEngine(t, nil)
	re.StartToken()

	// five ticks put the token on node index 5
	at(evtMgr, 3.2, func() {
		if pos := re.TokenState().Position; pos != 5 {
			t.Errorf("token at %d before removal, want 5", pos)
		}
		idx, err := re.RemoveNode()
		if err != nil || idx != 5 {
			t.Fatalf("RemoveNode = %d, %v", idx, err)
		}
		ts := re.TokenState()
		if ts.Position != 0 || !ts.Circulating {
			t.Errorf("token after removal %+v, want circulating at 0", ts)
		}
	})
	evtMgr.Run(4.0)
	if re.Size() != 5 {
		t.Errorf("size = %d", re.Size())
	}
	if pos := re.TokenState().Position; pos != 1 {
		t.Errorf("token at %d after restart, want 1", pos)
	}
}

func TestRemovingDeadNodeHealsRing(t *testing.T) {
	_, re := newTestEngine(t, nil)
	evts := record(re)
	re.ToggleNode(5)
	if _, err := re.RemoveNode(); err != nil {
		t.Fatal(err)
	}
	if !re.Ring().IsIntact() || countEvents(*evts, RingHealed) != 1 {
		t.Error("removing the only dead node should leave the ring intact")
	}
}

func TestTopologyLockedDuringTransit(t *testing.T) {
	evtMgr, re := newTestEngine(t, nil)
	if _, err := re.SendPacket(0, 3); err != nil {
		t.Fatal(err)
	}
	at(evtMgr, 0.5, func() {
		if err := re.ToggleNode(4); !errors.Is(err, ErrAnimationInProgress) {
			t.Errorf("ToggleNode in transit = %v", err)
		}
		if _, err := re.AddNode(); !errors.Is(err, ErrAnimationInProgress) {
			t.Errorf("AddNode in transit = %v", err)
		}
		if _, err := re.RemoveNode(); !errors.Is(err, ErrAnimationInProgress) {
			t.Errorf("RemoveNode in transit = %v", err)
		}
	})
	evtMgr.Run(5.0)
	if err := re.ToggleNode(4); err != nil {
		t.Errorf("ToggleNode after delivery = %v", err)
	}
}

func TestRuntimeKnobs(t *testing.T) {
	_, re := newTestEngine(t, nil)
	if err := re.SetLatency(-1); !errors.Is(err, ErrBadParameter) {
		t.Errorf("SetLatency(-1) = %v", err)
	}
	if err := re.SetPacketSize(0); !errors.Is(err, ErrBadParameter) {
		t.Errorf("SetPacketSize(0) = %v", err)
	}
	if err := re.SetTransitSlots(0); !errors.Is(err, ErrBadParameter) {
		t.Errorf("SetTransitSlots(0) = %v", err)
	}
	re.SetLatency(0.2)
	re.SetPacketSize(512)
	re.SetCollisions(false)
	rd := re.Desc()
	if rd.Latency != 0.2 || rd.PacketSize != 512 || rd.Collisions {
		t.Errorf("knobs not applied: %+v", rd)
	}
}

func TestReset(t *testing.T) {
	evtMgr, re := newTestEngine(t, nil)
	re.SendPacket(0, 2)
	re.SendPacket(1, 4)
	at(evtMgr, 5.0, func() {
		if err := re.RunLoadTest(5); err != nil {
			t.Fatal(err)
		}
	})
	at(evtMgr, 5.2, func() { re.FailNode(3) })
	at(evtMgr, 5.5, func() { re.Reset() })
	evtMgr.Run(6.5)

	if !re.Ring().IsIntact() {
		t.Error("ring not intact after reset")
	}
	ts := re.TokenState()
	if !ts.Circulating || ts.Position != 1 {
		// the token restarted at node 0 and has ticked once by 6.5
		t.Errorf("token %+v", ts)
	}
	if re.PacketQueueLength() != 0 || len(re.InTransit()) != 0 || re.LoadTestActive() {
		t.Error("traffic left after reset")
	}
	m := re.Metrics()
	if m.Delivered != 0 || m.RingBreaks != 0 || m.TokenPasses != 1 {
		t.Errorf("metrics after reset %+v", m)
	}
	if tr := re.Traffic(0); tr.Sent != 0 {
		t.Errorf("traffic after reset %+v", tr)
	}
}
