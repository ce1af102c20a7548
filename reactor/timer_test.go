package reactor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestTimerFDFiresAndRearms(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	fd, err := NewTimerFD(10*time.Millisecond, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fd)

	h := &countingHandler{onRead: func() { DrainTimerFD(fd) }}
	if err := r.AddFD(fd, h); err != nil {
		t.Fatal(err)
	}
	if err := r.SetReadable(fd); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for h.reads.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if h.reads.Load() < 2 {
		t.Fatalf("expected at least 2 timer fires, got %d", h.reads.Load())
	}
}
