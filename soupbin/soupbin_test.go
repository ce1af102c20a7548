package soupbin

import (
	"bytes"
	"testing"
)

func TestFrameParseRoundTrip(t *testing.T) {
	body := []byte("hello")
	framed := Frame(TypeUnsequenced, body)

	length, typ, ok := ParseHeader(framed)
	if !ok {
		t.Fatal("expected header to parse")
	}
	if typ != TypeUnsequenced {
		t.Fatalf("got type %q want %q", typ, TypeUnsequenced)
	}
	if length != len(body) {
		t.Fatalf("got length %d want %d", length, len(body))
	}
	got := framed[HeaderLen : HeaderLen+length]
	if !bytes.Equal(got, body) {
		t.Fatalf("got body %q want %q", got, body)
	}
}

func TestParseHeaderIncomplete(t *testing.T) {
	if _, _, ok := ParseHeader(nil); ok {
		t.Fatal("expected incomplete header to fail")
	}
	if _, _, ok := ParseHeader([]byte{0, 1}); ok {
		t.Fatal("expected two-byte buffer to fail")
	}
}

func TestParseHeaderEmptyPacket(t *testing.T) {
	buf := []byte{0, 1, 'H'}
	length, typ, ok := ParseHeader(buf)
	if !ok || length != 0 || typ != 'H' {
		t.Fatalf("got length=%d typ=%q ok=%v", length, typ, ok)
	}
}

func TestPacketLen(t *testing.T) {
	if PacketLen(10) != HeaderLen+10 {
		t.Fatal("unexpected packet length")
	}
}
