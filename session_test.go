package ouch

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ouchtrade/ouchsession/logsink"
	"github.com/ouchtrade/ouchsession/ouchwire"
	"github.com/ouchtrade/ouchsession/reactor"
	"github.com/ouchtrade/ouchsession/settings"
	"github.com/ouchtrade/ouchsession/soupbin"
	"github.com/ouchtrade/ouchsession/store"
)

type recordingApp struct {
	mu       sync.Mutex
	logons   int
	logouts  int
	received []ouchwire.Message
}

func (a *recordingApp) OnLogon(s *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logons++
}

func (a *recordingApp) OnLogout(s *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logouts++
}

func (a *recordingApp) FromApp(msg ouchwire.Message, s *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.received = append(a.received, msg)
}

func (a *recordingApp) count() (logons, logouts, received int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logons, a.logouts, len(a.received)
}

func newTestSession(t *testing.T, connType settings.ConnectionType) (*Session, *recordingApp) {
	t.Helper()
	cfg := settings.Session{
		Username:          "alice",
		Password:          "secret",
		SenderCompID:      "SND",
		TargetCompID:      "TGT",
		ConnectionType:    connType,
		ReconnectInterval: 2,
	}
	app := &recordingApp{}
	s := New(cfg, app, store.NewMemoryStore(), logsink.NullLog{})
	return s, app
}

func setNonBlocking(t *testing.T, fd int) {
	t.Helper()
	if err := unix.SetNonblock(fd, true); err != nil {
		t.Fatal(err)
	}
}

func TestInitiatorSendsLoginRequestOnAttach(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	setNonBlocking(t, fds[0])
	setNonBlocking(t, fds[1])

	r, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	s, _ := newTestSession(t, settings.Initiator)
	if err := s.Attach(r, fds[0]); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateLogonSent {
		t.Fatalf("expected logon-sent, got %v", s.State())
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	defer func() {
		r.Stop()
		<-done
	}()

	buf := make([]byte, 256)
	n := waitForRead(t, fds[1], buf)
	bodyLen, typ, ok := soupbin.ParseHeader(buf[:n])
	if !ok || typ != soupbin.TypeLoginRequest {
		t.Fatalf("expected login request packet, got typ=%c ok=%v", typ, ok)
	}
	username, password, seq, ok := soupbin.ParseLoginRequest(buf[soupbin.HeaderLen : soupbin.HeaderLen+bodyLen])
	if !ok || username != "alice" || password != "secret" || seq != 1 {
		t.Fatalf("unexpected login request fields: %q %q %d ok=%v", username, password, seq, ok)
	}
}

func TestInitiatorReachesLogonReceivedOnLoginAccepted(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	setNonBlocking(t, fds[0])
	setNonBlocking(t, fds[1])

	r, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	s, app := newTestSession(t, settings.Initiator)
	if err := s.Attach(r, fds[0]); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	defer func() {
		r.Stop()
		<-done
	}()

	// Drain the login request the session just sent.
	buf := make([]byte, 256)
	waitForRead(t, fds[1], buf)

	accepted := soupbin.Frame(soupbin.TypeLoginAccepted, soupbin.BuildLoginAccepted(1))
	if _, err := unix.Write(fds[1], accepted); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateLogonReceived && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.State() != StateLogonReceived {
		t.Fatalf("expected logon-received, got %v", s.State())
	}
	logons, _, _ := app.count()
	if logons != 1 {
		t.Fatalf("expected 1 OnLogon call, got %d", logons)
	}
}

func TestSendOnDisconnectedSessionIsSilentNoOp(t *testing.T) {
	s, _ := newTestSession(t, settings.Initiator)
	order := ouchwire.NewOrder("ORD1", 'B', 100, "AAPL", 1000000, "FIRM", 'Y')
	if err := s.Send(order); err != nil {
		t.Fatalf("expected silent no-op, got error %v", err)
	}
}

func TestRejectedTestModeReasonDoesNotAdvanceSequence(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	setNonBlocking(t, fds[0])
	setNonBlocking(t, fds[1])

	r, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	s, app := newTestSession(t, settings.Initiator)
	if err := s.Attach(r, fds[0]); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	defer func() {
		r.Stop()
		<-done
	}()

	buf := make([]byte, 256)
	waitForRead(t, fds[1], buf) // drain login request

	rejected := ouchwire.Rejected{ClOrdID: [14]byte{'O', 'R', 'D', '1'}, Reason: ouchwire.CancelReasonNotCounted}
	for i := 4; i < len(rejected.ClOrdID); i++ {
		rejected.ClOrdID[i] = ' '
	}
	body, _ := ouchwire.EncodeAny(rejected)
	packet := soupbin.Frame(soupbin.TypeSequencedData, body)
	if _, err := unix.Write(fds[1], packet); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, _, n := app.count(); n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for FromApp callback")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := s.expectedTargetNum(); got != 1 {
		t.Fatalf("expected target seq num to stay at 1 for a test-mode rejection, got %d", got)
	}
}

func waitForRead(t *testing.T, fd int, buf []byte) int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			return n
		}
		if err != nil && err != unix.EAGAIN {
			t.Fatalf("read: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for data")
	return 0
}

func waitUntilSession(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

// TestHeartbeatEmittedPeriodically checks a logged-on session that has
// sent nothing for a second emits its role-appropriate heartbeat on its
// own, driven purely by onTimer.
func TestHeartbeatEmittedPeriodically(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	setNonBlocking(t, fds[0])
	setNonBlocking(t, fds[1])

	r, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	s, _ := newTestSession(t, settings.Initiator)
	if err := s.Attach(r, fds[0]); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	defer func() {
		r.Stop()
		<-done
	}()

	buf := make([]byte, 256)
	waitForRead(t, fds[1], buf) // drain the login request

	n := waitForRead(t, fds[1], buf)
	_, typ, ok := soupbin.ParseHeader(buf[:n])
	if !ok || typ != soupbin.TypeClientHeartbt {
		t.Fatalf("expected a client heartbeat packet, got typ=%c ok=%v", typ, ok)
	}
}

// TestHeartbeatTimeoutClosesAndReconnects checks that a session which
// stops hearing from its peer past its reconnect interval closes, fires
// OnLogout, and then redials through its Dialer on the next timer tick,
// sending a fresh login request on the new connection.
func TestHeartbeatTimeoutClosesAndReconnects(t *testing.T) {
	cfg := settings.Session{
		Username:          "alice",
		Password:          "secret",
		SenderCompID:      "SND",
		TargetCompID:      "TGT",
		ConnectionType:    settings.Initiator,
		ReconnectInterval: 1,
	}
	app := &recordingApp{}
	s := New(cfg, app, store.NewMemoryStore(), logsink.NullLog{})

	r, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var mu sync.Mutex
	var peers []int
	dial := func() (int, error) {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		if err != nil {
			return -1, err
		}
		setNonBlocking(t, fds[0])
		setNonBlocking(t, fds[1])
		mu.Lock()
		peers = append(peers, fds[1])
		mu.Unlock()
		return fds[0], nil
	}
	s.SetDialer(dial)
	if err := s.Init(r); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	defer func() {
		r.Stop()
		<-done
	}()

	peerAt := func(i int) (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(peers) {
			return -1, false
		}
		return peers[i], true
	}

	waitUntilSession(t, 2*time.Second, func() bool {
		_, ok := peerAt(0)
		return ok
	})
	firstPeer, _ := peerAt(0)
	buf := make([]byte, 256)
	waitForRead(t, firstPeer, buf) // drain the first login request

	// Say nothing further: the session should time out waiting for a
	// heartbeat, close, and redial for a second connection.
	waitUntilSession(t, 6*time.Second, func() bool {
		_, ok := peerAt(1)
		return ok
	})
	_, logouts, _ := app.count()
	if logouts < 1 {
		t.Fatalf("expected at least one OnLogout from the timeout, got %d", logouts)
	}

	secondPeer, _ := peerAt(1)
	n := waitForRead(t, secondPeer, buf)
	_, typ, ok := soupbin.ParseHeader(buf[:n])
	if !ok || typ != soupbin.TypeLoginRequest {
		t.Fatalf("expected a fresh login request on reconnect, got typ=%c ok=%v", typ, ok)
	}
}

// TestOrderAcceptRoundTripBetweenSessions drives two live Sessions
// (initiator and acceptor) over a real connected socket pair through a
// full logon and one application-message round trip each way, rather
// than exercising the codec alone.
func TestOrderAcceptRoundTripBetweenSessions(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	setNonBlocking(t, fds[0])
	setNonBlocking(t, fds[1])

	r, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	initiator, initApp := newTestSession(t, settings.Initiator)

	acceptorCfg := settings.Session{
		Username:          "alice",
		Password:          "secret",
		SenderCompID:      "OUCH",
		TargetCompID:      "alice",
		ConnectionType:    settings.Acceptor,
		ReconnectInterval: 2,
	}
	acceptorApp := &recordingApp{}
	acceptor := New(acceptorCfg, acceptorApp, store.NewMemoryStore(), logsink.NullLog{})

	if err := acceptor.Attach(r, fds[1]); err != nil {
		t.Fatal(err)
	}
	if err := initiator.Attach(r, fds[0]); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	defer func() {
		r.Stop()
		<-done
	}()

	waitUntilSession(t, 2*time.Second, func() bool {
		return initiator.IsLoggedOn() && acceptor.IsLoggedOn()
	})

	order := ouchwire.NewOrder("ORD9", 'B', 100, "AAPL", 1000000, "FIRM", 'Y')
	if err := initiator.Send(order); err != nil {
		t.Fatal(err)
	}

	waitUntilSession(t, 2*time.Second, func() bool {
		_, _, n := acceptorApp.count()
		return n >= 1
	})
	acceptorApp.mu.Lock()
	received := acceptorApp.received[0]
	acceptorApp.mu.Unlock()
	gotOrder, ok := received.(ouchwire.Order)
	if !ok {
		t.Fatalf("expected acceptor to receive an Order, got %T", received)
	}
	if got := string(bytes.TrimRight(gotOrder.ClOrdID[:], " ")); got != "ORD9" {
		t.Fatalf("expected ClOrdID ORD9, got %q", got)
	}

	accepted := ouchwire.Accepted{ClOrdID: gotOrder.ClOrdID, Side: gotOrder.Side, Shares: gotOrder.Shares, Symbol: gotOrder.Symbol}
	if err := acceptor.Send(accepted); err != nil {
		t.Fatal(err)
	}

	waitUntilSession(t, 2*time.Second, func() bool {
		_, _, n := initApp.count()
		return n >= 1
	})
	initApp.mu.Lock()
	receivedBack := initApp.received[0]
	initApp.mu.Unlock()
	gotAccepted, ok := receivedBack.(ouchwire.Accepted)
	if !ok {
		t.Fatalf("expected initiator to receive an Accepted, got %T", receivedBack)
	}
	if got := string(bytes.TrimRight(gotAccepted.ClOrdID[:], " ")); got != "ORD9" {
		t.Fatalf("expected echoed ClOrdID ORD9, got %q", got)
	}
}

// TestUnknownSequencedTagClosesSession checks that an unrecognized OUCH
// tag byte inside counted SEQ_DATA closes the session instead of being
// silently skipped.
func TestUnknownSequencedTagClosesSession(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	setNonBlocking(t, fds[0])
	setNonBlocking(t, fds[1])

	r, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	s, app := newTestSession(t, settings.Initiator)
	if err := s.Attach(r, fds[0]); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	defer func() {
		r.Stop()
		<-done
	}()

	buf := make([]byte, 256)
	waitForRead(t, fds[1], buf) // drain the login request

	packet := soupbin.Frame(soupbin.TypeSequencedData, []byte{0x00})
	if _, err := unix.Write(fds[1], packet); err != nil {
		t.Fatal(err)
	}

	waitUntilSession(t, 2*time.Second, func() bool {
		return s.State() == StateTerminated
	})
	_, logouts, _ := app.count()
	if logouts != 1 {
		t.Fatalf("expected exactly one OnLogout from the unknown-tag close, got %d", logouts)
	}
}
