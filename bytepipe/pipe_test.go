package bytepipe

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestPushPopRoundTrip(t *testing.T) {
	p := New()
	want := []byte("hello, world")
	p.Push(want)
	got, ok := p.Data()
	if !ok {
		t.Fatal("expected data")
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
	p.Pop(len(got))
	if _, ok := p.Data(); ok {
		t.Fatal("expected empty after full pop")
	}
}

func TestPushAcrossChunkBoundary(t *testing.T) {
	p := New()
	big := make([]byte, DefaultChunkSize-4)
	for i := range big {
		big[i] = byte(i)
	}
	p.Push(big)

	got, ok := p.Data()
	if !ok || len(got) != len(big) {
		t.Fatalf("unexpected first read: ok=%v len=%d", ok, len(got))
	}
	p.Pop(len(got))

	tail := []byte("0123456789")
	p.Push(tail)
	got, ok = p.Data()
	if !ok {
		t.Fatal("expected data after chunk rollover")
	}
	if !bytes.Equal(got, tail) {
		t.Fatalf("got %q want %q", got, tail)
	}
}

func TestRandomizedPushPop(t *testing.T) {
	p := New()
	var all []byte
	var drained []byte
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		n := r.Intn(5000) + 1
		chunk := make([]byte, n)
		r.Read(chunk)
		all = append(all, chunk...)
		p.Push(chunk)

		if r.Intn(2) == 0 {
			got, ok := p.Data()
			if ok {
				take := r.Intn(len(got)) + 1
				drained = append(drained, got[:take]...)
				p.Pop(take)
			}
		}
	}
	for {
		got, ok := p.Data()
		if !ok {
			break
		}
		drained = append(drained, got...)
		p.Pop(len(got))
	}
	if !bytes.Equal(all, drained) {
		t.Fatalf("round trip mismatch: got %d bytes want %d bytes", len(drained), len(all))
	}
}

func TestSpareChunkReuse(t *testing.T) {
	p := New()
	first := p.head
	big := make([]byte, DefaultChunkSize)
	p.Push(big)
	p.Push([]byte("x"))

	got, _ := p.Data()
	p.Pop(len(got))
	if p.head == first {
		t.Fatal("expected chunk rollover")
	}
}
