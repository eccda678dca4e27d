package clock

import (
	"testing"
	"time"
)

func TestManualAdvanceFiresDueWaiters(t *testing.T) {
	start := time.Unix(1000, 0)
	m := NewManual(start)

	short := m.After(time.Second)
	long := m.After(time.Minute)
	if m.Waiters() != 2 {
		t.Fatalf("expected 2 waiters, got %d", m.Waiters())
	}

	m.Advance(2 * time.Second)
	select {
	case got := <-short:
		if !got.Equal(start.Add(2 * time.Second)) {
			t.Errorf("unexpected fire time %v", got)
		}
	default:
		t.Fatal("short waiter did not fire")
	}
	select {
	case <-long:
		t.Fatal("long waiter fired early")
	default:
	}
	if m.Waiters() != 1 {
		t.Errorf("expected 1 waiter left, got %d", m.Waiters())
	}
}

func TestManualAdvanceNegative(t *testing.T) {
	start := time.Unix(1000, 0)
	m := NewManual(start)
	ch := m.After(time.Second)

	if got := m.Advance(-time.Hour); !got.Equal(start) {
		t.Errorf("negative advance moved the clock to %v", got)
	}
	if !m.Now().Equal(start) {
		t.Errorf("expected %v, got %v", start, m.Now())
	}
	select {
	case <-ch:
		t.Fatal("waiter fired without the clock moving")
	default:
	}
}

func TestManualAfterNonPositive(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	select {
	case <-m.After(0):
	default:
		t.Fatal("After(0) must fire immediately")
	}
}

func TestNowMillisNilClock(t *testing.T) {
	before := time.Now().UnixMilli()
	got := NowMillis(nil)
	if got < before {
		t.Errorf("NowMillis(nil) = %d, expected >= %d", got, before)
	}
	if NowMillis(NewManual(time.UnixMilli(42))) != 42 {
		t.Error("NowMillis must use the supplied clock")
	}
}
