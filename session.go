package ouch

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ouchtrade/ouchsession/bytepipe"
	"github.com/ouchtrade/ouchsession/logsink"
	"github.com/ouchtrade/ouchsession/ouchwire"
	"github.com/ouchtrade/ouchsession/reactor"
	"github.com/ouchtrade/ouchsession/settings"
	"github.com/ouchtrade/ouchsession/soupbin"
	"github.com/ouchtrade/ouchsession/store"
)

// State is one of the five points in a Session's lifecycle.
type State int

const (
	StateNone State = iota
	StateLogonSent
	StateLogonReceived
	StateLogoffSent
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateLogonSent:
		return "logon-sent"
	case StateLogonReceived:
		return "logon-received"
	case StateLogoffSent:
		return "logoff-sent"
	case StateTerminated:
		return "session-terminated"
	default:
		return "unknown"
	}
}

// Dialer attempts to establish the one connection an initiator session
// owns at a time, returning a non-blocking, connected socket fd. An
// endpoint manager supplies this; Session itself has no notion of how a
// connection actually gets made, only when to ask for one.
type Dialer func() (fd int, err error)

const defaultReconnectInterval = 15 * time.Second

// Session runs one SoupBinTCP v3 + OUCH v4.2 connection's full
// lifecycle. It is affined to exactly one reactor goroutine: in_event,
// out_event, the timer callback and close all run there and touch
// unsynchronized fields freely. Send is the only method safe to call
// from other goroutines, serialized by mu.
type Session struct {
	cfg settings.Session
	app Application

	store store.MessageStore
	log   logsink.Log

	outpipe *bytepipe.Pipe

	mu sync.Mutex

	poll    *reactor.Reactor
	fd      int
	timerFD int
	dialer  Dialer

	state State
	rxbuf rxBuffer

	lastRx time.Time
	lastTx time.Time

	reconnectInterval time.Duration
}

// New builds a Session from a resolved settings.Session. The session is
// inert until Attach (acceptor: immediately after accept; initiator:
// via SetDialer + the timer's first reconnect tick) gives it a live fd.
func New(cfg settings.Session, app Application, st store.MessageStore, lg logsink.Log) *Session {
	interval := time.Duration(cfg.ReconnectInterval) * time.Second
	if interval <= 0 {
		interval = defaultReconnectInterval
	}
	return &Session{
		cfg:               cfg,
		app:               app,
		store:             st,
		log:               lg,
		outpipe:           bytepipe.New(),
		fd:                -1,
		timerFD:           -1,
		state:             StateNone,
		reconnectInterval: interval,
	}
}

// Config returns the resolved settings this session was built from.
func (s *Session) Config() settings.Session { return s.cfg }

func (s *Session) Username() string { return s.cfg.Username }
func (s *Session) Password() string { return s.cfg.Password }
func (s *Session) Firm() string     { return s.cfg.Firm }
func (s *Session) SenderCompID() string { return s.cfg.SenderCompID }
func (s *Session) TargetCompID() string { return s.cfg.TargetCompID }
func (s *Session) ID() string       { return s.cfg.SenderCompID + "->" + s.cfg.TargetCompID }
func (s *Session) IsInitiator() bool { return s.cfg.ConnectionType == settings.Initiator }
func (s *Session) State() State     { return s.state }
func (s *Session) IsLoggedOn() bool { return s.state == StateLogonReceived }
func (s *Session) ReconnectInterval() time.Duration { return s.reconnectInterval }

func (s *Session) expectedSenderNum() int { return s.store.NextSenderMsgSeqNum() }
func (s *Session) expectedTargetNum() int { return s.store.NextTargetMsgSeqNum() }

// SetDialer installs the reconnect callback used by the timer tick when
// an initiator session has no live connection. Only meaningful for
// initiator sessions.
func (s *Session) SetDialer(d Dialer) { s.dialer = d }

func (s *Session) event(format string, args ...any) {
	s.log.OnEvent(fmt.Sprintf(format, args...))
}

// ensureTimer registers the session's 1-second ticker with poll the
// first time it's called and (re)arms it every time, so both Init (no
// socket yet) and Attach (socket in hand) share one code path.
func (s *Session) ensureTimer(poll *reactor.Reactor) error {
	s.poll = poll
	if s.timerFD < 0 {
		tfd, err := reactor.CreateTimerFD()
		if err != nil {
			return fmt.Errorf("ouch: %s: %w", s.ID(), err)
		}
		s.timerFD = tfd
		if err := poll.AddFD(tfd, s); err != nil {
			return fmt.Errorf("ouch: %s: %w", s.ID(), err)
		}
		if err := poll.SetReadable(tfd); err != nil {
			return fmt.Errorf("ouch: %s: %w", s.ID(), err)
		}
	}
	return reactor.ArmTimerFD(s.timerFD, time.Second, time.Second)
}

// Init registers an initiator session's timer with poll and attempts an
// immediate first dial, without waiting for the first tick. Acceptor
// sessions don't need this: they become live only when Manager.Listen
// hands them a connected fd via Attach/AttachWithPrefill.
func (s *Session) Init(poll *reactor.Reactor) error {
	if err := s.ensureTimer(poll); err != nil {
		return err
	}
	if s.IsInitiator() && s.dialer != nil {
		fd, err := s.dialer()
		if err != nil {
			s.event("Connection failed: %v", err)
			return nil
		}
		return s.Attach(poll, fd)
	}
	return nil
}

// Attach gives the session a live, already non-blocking connected fd
// and registers it and the 1-second timer with poll. Called by an
// endpoint manager after accept() or a successful dial.
func (s *Session) Attach(poll *reactor.Reactor, fd int) error {
	return s.attach(poll, fd, nil)
}

// AttachWithPrefill is Attach for the acceptor path, where the
// listener has already read one or more bytes (at least the login
// request that identified which Session this connection belongs to)
// off fd before handing it over; those bytes are replayed into the
// session's receive buffer before normal dispatch resumes.
func (s *Session) AttachWithPrefill(poll *reactor.Reactor, fd int, prefill []byte) error {
	return s.attach(poll, fd, prefill)
}

func (s *Session) attach(poll *reactor.Reactor, fd int, prefill []byte) error {
	s.fd = fd
	s.rxbuf.reset()
	s.outpipe.Reset()

	if err := poll.AddFD(fd, s); err != nil {
		return fmt.Errorf("ouch: attach %s: %w", s.ID(), err)
	}
	if err := poll.SetReadable(fd); err != nil {
		return fmt.Errorf("ouch: attach %s: %w", s.ID(), err)
	}
	if err := s.ensureTimer(poll); err != nil {
		return err
	}

	s.lastRx = time.Now()
	s.lastTx = s.lastRx

	if len(prefill) > 0 {
		copy(s.rxbuf.end(), prefill)
		s.rxbuf.len += len(prefill)
		s.drainFrames()
	}

	if s.IsInitiator() {
		s.Logon()
	}
	return nil
}

// OnReadable implements reactor.Handler, dispatching by which of the
// session's two registered fds fired.
func (s *Session) OnReadable(fd int) {
	switch fd {
	case s.fd:
		s.inEvent()
	case s.timerFD:
		reactor.DrainTimerFD(fd)
		s.onTimer()
	}
}

// OnWritable implements reactor.Handler.
func (s *Session) OnWritable(fd int) {
	if fd == s.fd {
		s.outEvent()
	}
}

func (s *Session) inEvent() {
	if s.rxbuf.full() {
		s.rxbuf.compact()
	}
	n, err := unix.Read(s.fd, s.rxbuf.end())
	if n > 0 {
		s.lastRx = time.Now()
		s.rxbuf.len += n
		s.drainFrames()
		return
	}
	if n == 0 || (err != unix.EAGAIN && err != unix.EINTR) {
		s.event("Connection reset by peer: n=%d err=%v", n, err)
		s.close()
	}
}

// drainFrames parses as many complete SoupBin packets as the receive
// buffer currently holds, dispatching each in turn. A packet that
// closes the session (login rejected, end-of-session, unknown OUCH
// type) stops the loop immediately, matching the original's early
// return out of in_event.
func (s *Session) drainFrames() {
	for s.rxbuf.len >= soupbin.HeaderLen {
		buf := s.rxbuf.begin()
		bodyLen, typ, ok := soupbin.ParseHeader(buf)
		if !ok {
			return
		}
		total := soupbin.PacketLen(bodyLen)
		if total > len(buf) {
			return
		}
		body := buf[soupbin.HeaderLen:total]
		if s.dispatch(typ, body) {
			return
		}
		s.rxbuf.advance(total)
	}
}

// dispatch handles one SoupBin packet and reports whether the session
// was closed as a result (in which case the caller must stop parsing
// the buffer it no longer owns).
func (s *Session) dispatch(typ byte, body []byte) (closed bool) {
	switch typ {
	case soupbin.TypeSequencedData:
		return s.dispatchApp(body, ouchwire.DecodeInbound)
	case soupbin.TypeUnsequenced:
		// For test only, per the original: unsequenced data never
		// advances sequence counters.
		msg, err := ouchwire.DecodeFromClient(body)
		if err != nil {
			s.event("unknown OUCH message type in unsequenced data: %v", err)
			return false
		}
		s.log.OnIncoming(msg)
		s.app.FromApp(msg, s)
		return false
	case soupbin.TypeLoginAccepted:
		s.handleLoginAccepted(body)
		return false
	case soupbin.TypeLoginRejected:
		reason, _ := soupbin.ParseLoginRejected(body)
		s.event("Login rejected: %c", reason)
		s.close()
		return true
	case soupbin.TypeServerHeartbt, soupbin.TypeClientHeartbt:
		return false
	case soupbin.TypeEndOfSession:
		s.event("End of session by peer")
		s.close()
		return true
	case soupbin.TypeLoginRequest:
		s.handleLoginRequest(body)
		return false
	default:
		return false
	}
}

// dispatchApp decodes one counted application message, hands it to the
// callback, and advances the target sequence counter unless it was a
// test-mode rejection (RejectedMsg.Reason == CancelReasonNotCounted).
func (s *Session) dispatchApp(body []byte, decode func([]byte) (ouchwire.Message, error)) (closed bool) {
	msg, err := decode(body)
	if err != nil {
		s.event("unknown OUCH message type: %v", err)
		s.close()
		return true
	}
	countSeq := true
	if r, ok := msg.(ouchwire.Rejected); ok && r.Reason == ouchwire.CancelReasonNotCounted {
		countSeq = false
	}
	s.log.OnIncoming(msg)
	s.app.FromApp(msg, s)
	if countSeq {
		s.store.IncrNextTargetMsgSeqNum()
	}
	return false
}

func (s *Session) handleLoginAccepted(body []byte) {
	n, ok := soupbin.ParseLoginAccepted(body)
	if !ok {
		s.event("malformed login-accepted packet")
		s.close()
		return
	}
	s.event("Login accepted, resume sequence %d", n)
	if n != s.expectedTargetNum() {
		s.store.SetNextTargetMsgSeqNum(n)
	}
	s.state = StateLogonReceived
	s.app.OnLogon(s)
}

func (s *Session) handleLoginRequest(body []byte) {
	username, password, _, ok := soupbin.ParseLoginRequest(body)
	if !ok {
		s.event("malformed login-request packet")
		s.close()
		return
	}
	s.event("Received logon request from %s", username)
	if username != s.Username() || password != s.Password() {
		s.sendRaw(soupbin.Frame(soupbin.TypeLoginRejected, soupbin.BuildLoginRejected(soupbin.RejectNotAuthorized)))
		s.close()
		return
	}
	s.sendRaw(soupbin.Frame(soupbin.TypeLoginAccepted, soupbin.BuildLoginAccepted(s.expectedSenderNum())))
	s.state = StateLogonReceived
	s.app.OnLogon(s)
}

func (s *Session) outEvent() {
	data, ok := s.outpipe.Data()
	if !ok {
		s.poll.ResetWritable(s.fd)
		return
	}
	n, err := unix.Write(s.fd, data)
	if n > 0 {
		s.outpipe.Pop(n)
	}
	if err != nil && err != unix.EAGAIN && err != unix.EINTR {
		s.event("write failed: %v", err)
		s.close()
	}
}

// onTimer runs every second: it dials a fresh connection for a
// disconnected initiator, closes a session that's gone quiet past its
// reconnect interval, or sends a heartbeat when nothing has gone out
// for a second.
func (s *Session) onTimer() {
	if s.fd < 0 {
		if s.IsInitiator() && s.dialer != nil {
			fd, err := s.dialer()
			if err != nil {
				s.event("Connection failed: %v", err)
				reactor.ArmTimerFD(s.timerFD, s.reconnectInterval, 0)
				return
			}
			if err := s.Attach(s.poll, fd); err != nil {
				s.event("attach after reconnect failed: %v", err)
			}
		}
		return
	}

	now := time.Now()
	if now.Sub(s.lastRx) >= s.reconnectInterval {
		s.event("Timed out waiting for heartbeat")
		s.close()
		return
	}
	if now.Sub(s.lastTx) >= time.Second {
		s.Heartbeat()
	}
}

// close tears the connection down: notifies the application, removes
// both fds from the reactor, closes the socket, resets the buffers,
// and rearms the timer either for a one-shot reconnect (initiator) or
// disarms it entirely (acceptor).
func (s *Session) close() {
	if s.state == StateTerminated && s.fd < 0 {
		return
	}
	s.event("Disconnecting")
	s.app.OnLogout(s)
	s.poll.RemoveFD(s.fd)
	unix.Close(s.fd)
	s.rxbuf.reset()
	s.outpipe.Reset()
	if s.IsInitiator() {
		reactor.ArmTimerFD(s.timerFD, s.reconnectInterval, 0)
	} else {
		reactor.ArmTimerFD(s.timerFD, 0, 0)
	}
	s.fd = -1
	s.state = StateTerminated
}

func (s *Session) sendRaw(packet []byte) {
	if s.fd < 0 {
		return
	}
	s.mu.Lock()
	s.lastTx = time.Now()
	s.outpipe.Push(packet)
	s.poll.SetWritable(s.fd)
	s.mu.Unlock()
}

// Send frames and enqueues msg as counted application data. A silent
// no-op on a disconnected session, matching the original: the caller
// never needs to special-case "not connected right now".
func (s *Session) Send(msg ouchwire.Message) error {
	if s.fd < 0 {
		return nil
	}
	body, err := ouchwire.EncodeAny(msg)
	if err != nil {
		return err
	}
	typ := byte(soupbin.TypeUnsequenced)
	if !s.IsInitiator() {
		typ = soupbin.TypeSequencedData
	}
	s.sendRaw(soupbin.Frame(typ, body))
	if err := s.store.Set(body); err != nil {
		s.event("store failed: %v", err)
	}
	s.log.OnOutgoing(msg)
	return nil
}

// Logon sends a login request and moves to the logon-sent state.
// Meaningful only for initiator sessions.
func (s *Session) Logon() {
	body := soupbin.BuildLoginRequest(s.Username(), s.Password(), s.expectedTargetNum())
	s.event("Initiated logon request for %s", s.Username())
	s.sendRaw(soupbin.Frame(soupbin.TypeLoginRequest, body))
	s.state = StateLogonSent
	s.lastRx = time.Now()
	s.lastTx = s.lastRx
}

// Logout sends a logout request and moves to the logoff-sent state.
func (s *Session) Logout() {
	s.event("Initiated logout request")
	s.sendRaw(soupbin.Frame(soupbin.TypeLogoutRequest, nil))
	s.state = StateLogoffSent
}

// Heartbeat sends the role-appropriate heartbeat packet.
func (s *Session) Heartbeat() {
	typ := byte(soupbin.TypeServerHeartbt)
	if s.IsInitiator() {
		typ = soupbin.TypeClientHeartbt
	}
	s.sendRaw(soupbin.Frame(typ, nil))
}

// Stop releases the session's store and log resources. If wait is
// true, it blocks until any pending asynchronous writes have flushed.
func (s *Session) Stop(wait bool) error {
	if s.fd >= 0 {
		s.close()
	}
	if err := s.log.Stop(wait); err != nil {
		return err
	}
	return s.store.Stop(wait)
}
