package ringnet

import (
	"math"
	"testing"
)

func TestCollides(t *testing.T) {
	tests := []struct {
		a, b   Point
		radius float64
		want   bool
	}{
		{Point{0, 0}, Point{0, 0}, 30, true},
		{Point{0, 0}, Point{29.9, 0}, 30, true},
		{Point{0, 0}, Point{30, 0}, 30, false},
		{Point{0, 0}, Point{18, 24}, 30, false},
		{Point{-10, -10}, Point{10, 10}, 30, true},
	}
	for _, tc := range tests {
		if got := Collides(tc.a, tc.b, tc.radius); got != tc.want {
			t.Errorf("Collides(%v, %v, %g) = %v", tc.a, tc.b, tc.radius, got)
		}
	}
}

func TestCircleLayout(t *testing.T) {
	cl := CircleLayout{Radius: 200}
	near := func(p, q Point) bool { return p.Dist(q) < 1e-9 }

	if p := cl.Position(0, 4); !near(p, Point{0, -200}) {
		t.Errorf("node 0 at %v, want top", p)
	}
	if p := cl.Position(1, 4); !near(p, Point{200, 0}) {
		t.Errorf("node 1 at %v, want a quarter turn clockwise", p)
	}
	for idx := 0; idx < 6; idx++ {
		d := cl.Position(idx, 6).Dist(cl.Position((idx+1)%6, 6))
		if math.Abs(d-200) > 1e-9 {
			t.Errorf("chord %d-%d = %g, want 200", idx, (idx+1)%6, d)
		}
	}
}

func TestHeadOnPacketsCollide(t *testing.T) {
	evtMgr, re := newTestEngine(t, func(rd *RingDesc) { rd.TransitSlots = 2 })
	evts := record(re)
	a, _ := re.SendPacket(0, 1)
	b, _ := re.SendPacket(1, 0)
	if len(re.InTransit()) != 2 {
		t.Fatalf("%d packets in transit, want 2", len(re.InTransit()))
	}
	evtMgr.Run(5.0)

	// the two meet halfway through the hop
	if a.State != Collided || b.State != Collided {
		t.Fatalf("states %s, %s", a.State, b.State)
	}
	m := re.Metrics()
	if m.Collisions != 1 || m.Lost != 2 || m.Delivered != 0 {
		t.Errorf("metrics %+v", m)
	}
	for idx := 0; idx < re.Size(); idx++ {
		if tr := re.Traffic(idx); tr.Sent != 0 || tr.Received != 0 {
			t.Errorf("traffic of %s: %+v", NodeName(idx), tr)
		}
	}
	if countEvents(*evts, PacketCollided) != 1 {
		t.Error("expected one PacketCollided event")
	}
	for _, evt := range *evts {
		if evt.Type == PacketCollided && evt.From.Dist(Point{}) > 200 {
			t.Errorf("collision placed outside the ring at %v", evt.From)
		}
	}
}

func TestCollisionsDisabled(t *testing.T) {
	evtMgr, re := newTestEngine(t, func(rd *RingDesc) {
		rd.TransitSlots = 2
		rd.Collisions = false
	})
	a, _ := re.SendPacket(0, 1)
	b, _ := re.SendPacket(1, 0)
	evtMgr.Run(5.0)
	if a.State != Delivered || b.State != Delivered {
		t.Errorf("states %s, %s, want both delivered", a.State, b.State)
	}
	if re.Metrics().Collisions != 0 {
		t.Errorf("collisions counted while disabled")
	}
}

func TestDistantPacketsPass(t *testing.T) {
	evtMgr, re := newTestEngine(t, func(rd *RingDesc) { rd.TransitSlots = 2 })
	a, _ := re.SendPacket(0, 1)
	b, _ := re.SendPacket(3, 4)
	evtMgr.Run(5.0)
	if a.State != Delivered || b.State != Delivered {
		t.Errorf("states %s, %s, want both delivered", a.State, b.State)
	}
}
