package store

import (
	"bytes"
	"testing"
)

func TestFileStoreSetGetPersists(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "SNDR", "TRGT")
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Set([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Set([]byte("world")); err != nil {
		t.Fatal(err)
	}
	if fs.NextSenderMsgSeqNum() != 3 {
		t.Fatalf("expected next sender seq 3, got %d", fs.NextSenderMsgSeqNum())
	}

	got, err := fs.Get(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !bytes.Equal(got[0], []byte("hello")) || !bytes.Equal(got[1], []byte("world")) {
		t.Fatalf("unexpected messages: %v", got)
	}
	if err := fs.Stop(false); err != nil {
		t.Fatal(err)
	}
}

func TestFileStoreReopenRestoresSequenceState(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "SNDR", "TRGT")
	if err != nil {
		t.Fatal(err)
	}
	fs.Set([]byte("msg-one"))
	fs.SetNextTargetMsgSeqNum(7)
	creation := fs.CreationTime()
	if err := fs.Stop(false); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFileStore(dir, "SNDR", "TRGT")
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Stop(false)

	if reopened.NextSenderMsgSeqNum() != 2 {
		t.Fatalf("expected reopened sender seq 2, got %d", reopened.NextSenderMsgSeqNum())
	}
	if reopened.NextTargetMsgSeqNum() != 7 {
		t.Fatalf("expected reopened target seq 7, got %d", reopened.NextTargetMsgSeqNum())
	}
	if !reopened.CreationTime().Equal(creation) {
		t.Fatalf("expected creation time preserved: got %v want %v", reopened.CreationTime(), creation)
	}

	got, err := reopened.Get(1, 1)
	if err != nil || len(got) != 1 || string(got[0]) != "msg-one" {
		t.Fatalf("expected to recover message 1, got %v err=%v", got, err)
	}
}

func TestFileStoreResetClearsState(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "SNDR", "TRGT")
	if err != nil {
		t.Fatal(err)
	}
	fs.Set([]byte("one"))
	if err := fs.Reset(); err != nil {
		t.Fatal(err)
	}
	if fs.NextSenderMsgSeqNum() != 1 {
		t.Fatal("expected sender seq reset to 1")
	}
	if got, _ := fs.Get(1, 1); len(got) != 0 {
		t.Fatal("expected no messages after reset")
	}
	fs.Stop(false)
}
