package ringnet

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestHealthReport(t *testing.T) {
	_, re := newTestEngine(t, nil)
	hr := re.Health()
	if !hr.RingIntact || hr.Active != 6 || hr.HealthPercentage != 100.0 || hr.BrokenConnections != 0 {
		t.Errorf("intact ring %+v", hr)
	}

	re.ToggleNode(1)
	re.ToggleNode(4)
	hr = re.Health()
	if hr.RingIntact || hr.Active != 4 || hr.Inactive != 2 {
		t.Errorf("broken ring %+v", hr)
	}
	if math.Abs(hr.HealthPercentage-200.0/3.0) > 1e-9 {
		t.Errorf("HealthPercentage = %g", hr.HealthPercentage)
	}
	if hr.BrokenConnections != 4 {
		t.Errorf("BrokenConnections = %d, want 4", hr.BrokenConnections)
	}
	if want := [][]int{{0, 5}, {2, 3}}; !reflect.DeepEqual(hr.Segments, want) || hr.LargestSegment != 2 {
		t.Errorf("segments %v, largest %d", hr.Segments, hr.LargestSegment)
	}
}

func TestCheckHealth(t *testing.T) {
	_, re := newTestEngine(t, nil)
	if _, healthy, problems := re.CheckHealth(); !healthy || len(problems) != 0 {
		t.Errorf("intact ring judged unhealthy: %v", problems)
	}
	// the token state plays no part in the judgement
	for _, toggle := range []func(){re.StartToken, re.StopToken} {
		toggle()
		if _, healthy, problems := re.CheckHealth(); !healthy || len(problems) != 0 {
			t.Errorf("token %+v: healthy %v, problems %v", re.TokenState(), healthy, problems)
		}
	}

	for _, idx := range []int{0, 2, 4, 5} {
		re.ToggleNode(idx)
	}
	_, healthy, problems := re.CheckHealth()
	if healthy || len(problems) != 2 {
		t.Errorf("ring with 2 of 6 live: healthy %v, problems %v", healthy, problems)
	}
}

func TestHeal(t *testing.T) {
	_, re := newTestEngine(t, nil)
	if err := re.Heal(); err != nil {
		t.Errorf("Heal on intact ring = %v", err)
	}

	re.ToggleNode(1)
	re.ToggleNode(4)
	if err := re.Heal(); !errors.Is(err, ErrHealIncomplete) {
		t.Errorf("first Heal = %v, want ErrHealIncomplete", err)
	}
	if !re.Ring().IsLive(1) || re.Ring().IsLive(4) {
		t.Error("Heal should reactivate the lowest inactive node only")
	}
	if err := re.Heal(); err != nil {
		t.Errorf("second Heal = %v", err)
	}
	if !re.Ring().IsIntact() || re.Metrics().RingHeals != 1 {
		t.Errorf("intact %v, heals %d", re.Ring().IsIntact(), re.Metrics().RingHeals)
	}
}

func TestAttemptHealing(t *testing.T) {
	_, re := newTestEngine(t, nil)
	re.ToggleNode(2)
	run, ok := re.AttemptHealing()
	if want := []int{3, 4, 5, 0, 1}; !ok || !reflect.DeepEqual(run, want) {
		t.Errorf("AttemptHealing = %v, %v, want %v", run, ok, want)
	}

	re.ToggleNode(5)
	run, ok = re.AttemptHealing()
	if want := []int{0, 1}; ok || !reflect.DeepEqual(run, want) {
		t.Errorf("AttemptHealing = %v, %v, want %v (not operable)", run, ok, want)
	}
}
