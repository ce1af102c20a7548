package syncutil

import (
	"testing"
	"time"
)

func TestEventWaitForTimesOut(t *testing.T) {
	e := NewEvent()
	if e.WaitFor(20 * time.Millisecond) {
		t.Fatal("expected WaitFor to time out on an unset event")
	}
}

func TestEventSetWakesWaiter(t *testing.T) {
	e := NewEvent()
	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Set()
	}()
	if !e.WaitFor(2 * time.Second) {
		t.Fatal("expected WaitFor to observe Set")
	}
	if !e.IsSet() {
		t.Fatal("expected IsSet true after Set")
	}
}

func TestEventClearResets(t *testing.T) {
	e := NewEvent()
	e.Set()
	e.Clear()
	if e.IsSet() {
		t.Fatal("expected IsSet false after Clear")
	}
}
