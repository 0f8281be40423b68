package quality

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func newController(start Level) *Controller {
	return New(Base{SimResolution: 128, DyeResolution: 1024, BloomIterations: 8}, Options{
		Auto:   true,
		Start:  start,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// feed observes a constant fps every 100ms over d, returning the number of
// level changes.
func feed(c *Controller, t0 time.Time, d time.Duration, fps float64) (time.Time, int) {
	changes := 0
	now := t0
	for end := t0.Add(d); !now.After(end); now = now.Add(100 * time.Millisecond) {
		if c.Observe(fps, now) {
			changes++
		}
	}
	return now, changes
}

func TestPresets(t *testing.T) {
	p := Presets(Base{SimResolution: 100, DyeResolution: 1000, BloomIterations: 8, BloomResolution: 250, SunraysResolution: 200})
	want := [4]Preset{
		{Ultra, 100, 1000, 8, 250, 200, true, true},
		{High, 80, 800, 7, 200, 160, true, true},
		{Medium, 60, 600, 6, 150, 120, true, true},
		{Low, 40, 400, 2, 100, 80, false, false},
	}
	if p != want {
		t.Errorf("Presets = %+v, want %+v", p, want)
	}

	few := Presets(Base{SimResolution: 100, DyeResolution: 100, BloomIterations: 3})
	if few[Medium].BloomIterations != 2 {
		t.Errorf("medium bloom iterations = %d, want 2", few[Medium].BloomIterations)
	}
}

func TestController_StepsDownOncePerInterval(t *testing.T) {
	c := newController(Ultra)
	t0 := time.Unix(1000, 0)

	now, changes := feed(c, t0, 4900*time.Millisecond, 30)
	if changes != 0 || c.Level() != Ultra {
		t.Fatalf("stepped before the interval: level %v", c.Level())
	}
	now, changes = feed(c, now, 100*time.Millisecond, 30)
	if changes != 1 || c.Level() != High {
		t.Fatalf("after 5s: changes %d level %v, want 1 step to high", changes, c.Level())
	}
	_, changes = feed(c, now, 4800*time.Millisecond, 30)
	if changes != 0 {
		t.Errorf("stepped %d times within the next interval", changes)
	}
}

func TestController_StopsAtLow(t *testing.T) {
	c := newController(Medium)
	now := time.Unix(0, 0)
	for range 5 {
		now, _ = feed(c, now, 6*time.Second, 5)
	}
	if c.Level() != Low {
		t.Errorf("level = %v, want low", c.Level())
	}
}

func TestController_StepsUpOnlyWhenEverySampleIsFast(t *testing.T) {
	c := newController(Low)
	now := time.Unix(0, 0)

	// Mean above 95% but one sample below 90%.
	for i := 0; i <= 50; i++ {
		fps := 60.0
		if i == 10 {
			fps = 40
		}
		c.Observe(fps, now)
		now = now.Add(100 * time.Millisecond)
	}
	if c.Level() != Low {
		t.Fatalf("stepped up with a slow sample: %v", c.Level())
	}

	_, changes := feed(c, now, 5*time.Second, 60)
	if changes != 1 || c.Level() != Medium {
		t.Errorf("changes %d level %v, want one step to medium", changes, c.Level())
	}
}

func TestController_HoldsInDeadBand(t *testing.T) {
	c := newController(High)
	_, changes := feed(c, time.Unix(0, 0), 30*time.Second, 52)
	if changes != 0 || c.Level() != High {
		t.Errorf("changes %d level %v in the dead band", changes, c.Level())
	}
}

func TestController_StepResetsHistory(t *testing.T) {
	c := newController(Ultra)
	now, _ := feed(c, time.Unix(0, 0), 5*time.Second, 10)
	if c.Level() != High {
		t.Fatalf("level = %v, want high", c.Level())
	}
	if s := c.Stats(); s.Samples != 0 || s.Steps != 1 {
		t.Errorf("stats after step = %+v, want empty window and 1 step", s)
	}
	c.Observe(10, now)
	if s := c.Stats(); s.Samples != 1 || s.MeanFPS != 10 {
		t.Errorf("stats = %+v, want one fresh sample", s)
	}
}

func TestController_ManualIgnoresSamples(t *testing.T) {
	c := newController(Ultra)
	c.SetAuto(false)
	_, changes := feed(c, time.Unix(0, 0), 20*time.Second, 1)
	if changes != 0 || c.Level() != Ultra {
		t.Errorf("manual controller stepped to %v", c.Level())
	}
	c.SetLevel(Low + 3)
	if c.Level() != Low {
		t.Errorf("SetLevel clamp = %v, want low", c.Level())
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"ultra", "High", "MEDIUM", "low"} {
		if _, err := ParseLevel(name); err != nil {
			t.Errorf("ParseLevel(%q): %v", name, err)
		}
	}
	if _, err := ParseLevel("epic"); err == nil {
		t.Error("ParseLevel accepted an unknown name")
	}
	if got := Level(9).String(); got != "level(9)" {
		t.Errorf("String = %q", got)
	}
}
