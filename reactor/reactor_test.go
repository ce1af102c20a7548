package reactor

import (
	"os"
	"sync/atomic"
	"testing"
	"time"
)

type countingHandler struct {
	reads  atomic.Int32
	writes atomic.Int32
	onRead func()
}

func (h *countingHandler) OnReadable(fd int) {
	h.reads.Add(1)
	if h.onRead != nil {
		h.onRead()
	}
}

func (h *countingHandler) OnWritable(fd int) {
	h.writes.Add(1)
}

func TestReactorDispatchesReadability(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer pr.Close()
	defer pw.Close()

	h := &countingHandler{}
	if err := r.AddFD(int(pr.Fd()), h); err != nil {
		t.Fatal(err)
	}
	if err := r.SetReadable(int(pr.Fd())); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	pw.Write([]byte("x"))

	deadline := time.Now().Add(2 * time.Second)
	for h.reads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if h.reads.Load() == 0 {
		t.Fatal("expected at least one readability callback")
	}
}

func TestRemoveFDStopsDelivering(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer pr.Close()
	defer pw.Close()

	h := &countingHandler{}
	fd := int(pr.Fd())
	if err := r.AddFD(fd, h); err != nil {
		t.Fatal(err)
	}
	if err := r.SetReadable(fd); err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveFD(fd); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	pw.Write([]byte("x"))
	time.Sleep(150 * time.Millisecond)
	r.Stop()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if h.reads.Load() != 0 {
		t.Fatal("expected no readability callback after RemoveFD")
	}
}
