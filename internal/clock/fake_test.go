package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AdvanceMovesNow(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	c.Advance(1500 * time.Millisecond)
	if got := c.Now().Sub(epoch); got != 1500*time.Millisecond {
		t.Fatalf("elapsed=%s", got)
	}
}

func TestFake_TickerFiresOnAdvance(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	c.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C:
		t.Fatalf("ticker fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatalf("ticker did not fire")
	}
}

func TestFake_StoppedTickerIsSilent(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	ticker.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatalf("stopped ticker fired")
	default:
	}
}

func TestFake_SetBackwards(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	c.Set(epoch.Add(-time.Minute))
	if !c.Now().Equal(epoch.Add(-time.Minute)) {
		t.Fatalf("now=%s", c.Now())
	}
}
