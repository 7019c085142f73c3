package fakeclock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestClock_Now(t *testing.T) {
	c := New(epoch)
	if !c.Now().Equal(epoch) {
		t.Errorf("Now() = %v, want %v", c.Now(), epoch)
	}
}

func TestClock_AfterFiresOnAdvance(t *testing.T) {
	c := New(epoch)
	ch := c.After(10 * time.Second)

	c.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before deadline")
	default:
	}
	if c.Waiters() != 1 {
		t.Errorf("Waiters() = %d, want 1", c.Waiters())
	}

	c.Advance(5 * time.Second)
	select {
	case got := <-ch:
		if !got.Equal(epoch.Add(10 * time.Second)) {
			t.Errorf("fired at %v", got)
		}
	default:
		t.Fatal("After did not fire at deadline")
	}
	if c.Waiters() != 0 {
		t.Errorf("Waiters() = %d, want 0", c.Waiters())
	}
}

func TestClock_AfterZeroFiresImmediately(t *testing.T) {
	c := New(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}
