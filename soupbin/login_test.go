package soupbin

import "testing"

func TestLoginRequestRoundTrip(t *testing.T) {
	body := BuildLoginRequest("alice", "secret", 42)
	if len(body) != LoginRequestBodyLen {
		t.Fatalf("expected body length %d, got %d", LoginRequestBodyLen, len(body))
	}
	username, password, seq, ok := ParseLoginRequest(body)
	if !ok {
		t.Fatal("expected ok")
	}
	if username != "alice" || password != "secret" || seq != 42 {
		t.Fatalf("got %q %q %d", username, password, seq)
	}
}

func TestLoginAcceptedRoundTrip(t *testing.T) {
	body := BuildLoginAccepted(12345)
	seq, ok := ParseLoginAccepted(body)
	if !ok || seq != 12345 {
		t.Fatalf("got %d ok=%v", seq, ok)
	}
}

func TestLoginRejectedRoundTrip(t *testing.T) {
	body := BuildLoginRejected(RejectNotAuthorized)
	reason, ok := ParseLoginRejected(body)
	if !ok || reason != RejectNotAuthorized {
		t.Fatalf("got %c ok=%v", reason, ok)
	}
}

func TestParseLoginRequestRejectsWrongLength(t *testing.T) {
	if _, _, _, ok := ParseLoginRequest([]byte("short")); ok {
		t.Fatal("expected ok=false for malformed body")
	}
}
