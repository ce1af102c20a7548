package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	ouch "github.com/ouchtrade/ouchsession"
	"github.com/ouchtrade/ouchsession/reactor"
	"github.com/ouchtrade/ouchsession/soupbin"
)

// pendingLoginBodyMax bounds how many bytes a not-yet-identified
// acceptor connection may buffer while waiting for a complete login
// request; a connection that never sends one within this budget is
// dropped.
const pendingLoginBodyMax = 256

// Manager owns one reactor goroutine and every Session attached to it:
// it dials initiator sessions, fans accepted connections for acceptor
// sessions out to the right Session by login identity, and joins the
// reactor goroutine on Stop.
type Manager struct {
	log *slog.Logger

	poll *reactor.Reactor

	mu        sync.Mutex
	sessions  []*ouch.Session
	listeners map[int]*portListener

	eg     *errgroup.Group
	egCtx  context.Context
	cancel context.CancelFunc
}

// portListener fans one shared listening socket out to every Session
// configured to accept on that port; which Session a given connection
// belongs to is resolved from its login request's username.
type portListener struct {
	fd         int
	port       int
	candidates []*ouch.Session
}

// NewManager returns a Manager backed by a single reactor. logger
// defaults to slog.Default() when nil.
func NewManager(logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	poll, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("endpoint: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)
	return &Manager{
		log:       logger,
		poll:      poll,
		listeners: make(map[int]*portListener),
		eg:        eg,
		egCtx:     egCtx,
		cancel:    cancel,
	}, nil
}

// Add registers a Session the Manager will dial or accept for,
// depending on its configured ConnectionType.
func (m *Manager) Add(s *ouch.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
}

// Connect initializes every initiator Session added so far: it wires a
// Dialer closure and attempts an immediate first connection, falling
// back to the session's own 1-second timer for retries on failure.
func (m *Manager) Connect() error {
	m.mu.Lock()
	sessions := append([]*ouch.Session(nil), m.sessions...)
	m.mu.Unlock()

	for _, s := range sessions {
		if !s.IsInitiator() {
			continue
		}
		s.SetDialer(m.dialerFor(s))
		if err := s.Init(m.poll); err != nil {
			return fmt.Errorf("endpoint: connect %s: %w", s.ID(), err)
		}
	}
	return nil
}

func (m *Manager) dialerFor(s *ouch.Session) ouch.Dialer {
	return func() (int, error) {
		connID := uuid.NewString()
		host, port := sessionDialTarget(s)
		m.log.Info("dialing", "session", s.ID(), "conn_id", connID, "host", host, "port", port)
		fd, err := dialTCP(host, port)
		if err != nil {
			m.log.Warn("dial failed", "session", s.ID(), "conn_id", connID, "error", err)
			return -1, err
		}
		cfg := s.Config()
		applyBufferSizes(fd, cfg.ReceiveBufferSize, cfg.SendBufferSize)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("endpoint: set non-blocking: %w", err)
		}
		m.log.Info("connected", "session", s.ID(), "conn_id", connID)
		return fd, nil
	}
}

// Listen binds one shared listening socket per distinct SocketAcceptPort
// among every acceptor Session added so far, and registers each with the
// reactor so incoming connections get routed to the right Session by
// login identity.
func (m *Manager) Listen() error {
	m.mu.Lock()
	sessions := append([]*ouch.Session(nil), m.sessions...)
	m.mu.Unlock()

	byPort := make(map[int][]*ouch.Session)
	for _, s := range sessions {
		if s.IsInitiator() {
			continue
		}
		port := acceptPort(s)
		byPort[port] = append(byPort[port], s)
	}

	for port, candidates := range byPort {
		if _, exists := m.listeners[port]; exists {
			continue
		}
		fd, err := listenTCP(port)
		if err != nil {
			return fmt.Errorf("endpoint: listen: %w", err)
		}
		pl := &portListener{fd: fd, port: port, candidates: candidates}
		m.listeners[port] = pl
		if err := m.poll.AddFD(fd, &listenerHandler{pl: pl, m: m}); err != nil {
			return fmt.Errorf("endpoint: listen: %w", err)
		}
		if err := m.poll.SetReadable(fd); err != nil {
			return fmt.Errorf("endpoint: listen: %w", err)
		}
		m.log.Info("listening", "port", port, "sessions", len(candidates))
	}
	return nil
}

// listenerHandler implements reactor.Handler for one shared acceptor
// socket, accepting connections and spawning a pendingConn to identify
// which candidate Session each one belongs to.
type listenerHandler struct {
	pl *portListener
	m  *Manager
}

func (h *listenerHandler) OnReadable(fd int) {
	for {
		connFD, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK)
		if err != nil {
			return
		}
		connID := uuid.NewString()
		h.m.log.Info("accepted", "port", h.pl.port, "conn_id", connID)
		// mirrors the listener's own socket options onto the accepted peer
		unix.SetsockoptInt(connFD, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		if len(h.pl.candidates) > 0 {
			cfg := h.pl.candidates[0].Config()
			applyBufferSizes(connFD, cfg.ReceiveBufferSize, cfg.SendBufferSize)
		}
		pc := &pendingConn{fd: connFD, pl: h.pl, m: h.m, connID: connID}
		if err := h.m.poll.AddFD(connFD, pc); err != nil {
			unix.Close(connFD)
			continue
		}
		h.m.poll.SetReadable(connFD)
	}
}

func (h *listenerHandler) OnWritable(fd int) {}

// pendingConn buffers an accepted connection's bytes until a complete
// SoupBin login-request packet arrives, then hands the fd off to
// whichever candidate Session the username names.
type pendingConn struct {
	fd     int
	pl     *portListener
	m      *Manager
	connID string
	buf    []byte
}

func (p *pendingConn) OnReadable(fd int) {
	chunk := make([]byte, pendingLoginBodyMax)
	n, err := unix.Read(fd, chunk)
	if n > 0 {
		p.buf = append(p.buf, chunk[:n]...)
	}
	if n <= 0 {
		if err != nil && err != unix.EAGAIN && err != unix.EINTR {
			p.reject("read failed before login")
		}
		return
	}
	p.tryIdentify()
}

func (p *pendingConn) OnWritable(fd int) {}

func (p *pendingConn) tryIdentify() {
	headerAndBody := soupbin.HeaderLen + soupbin.LoginRequestBodyLen
	if len(p.buf) < headerAndBody {
		if len(p.buf) > pendingLoginBodyMax {
			p.reject("login request too large")
		}
		return
	}

	username, ok := peekLoginUsername(p.buf)
	if !ok {
		p.reject("malformed login request")
		return
	}

	for _, candidate := range p.pl.candidates {
		if candidate.Username() == username {
			p.m.poll.RemoveFD(p.fd)
			prefill := append([]byte(nil), p.buf...)
			if err := candidate.AttachWithPrefill(p.m.poll, p.fd, prefill); err != nil {
				p.m.log.Error("attach failed", "conn_id", p.connID, "error", err)
				unix.Close(p.fd)
			}
			return
		}
	}
	p.reject(fmt.Sprintf("no session configured for username %q", username))
}

func (p *pendingConn) reject(reason string) {
	p.m.log.Warn("rejecting connection", "conn_id", p.connID, "reason", reason)
	p.m.poll.RemoveFD(p.fd)
	unix.Close(p.fd)
}

// Wait runs the reactor loop until Stop is called, returning the first
// error any joined goroutine reports.
func (m *Manager) Wait() error {
	m.eg.Go(func() error { return m.poll.Run() })
	return m.eg.Wait()
}

// Stop stops the reactor and every registered session, releasing their
// stores/logs. If wait is true, each session's Stop blocks on its own
// pending async work draining first.
func (m *Manager) Stop(wait bool) error {
	m.mu.Lock()
	sessions := append([]*ouch.Session(nil), m.sessions...)
	listeners := m.listeners
	m.mu.Unlock()

	m.poll.Stop()
	m.cancel()

	var firstErr error
	for _, s := range sessions {
		if err := s.Stop(wait); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, l := range listeners {
		unix.Close(l.fd)
	}
	return firstErr
}

func sessionDialTarget(s *ouch.Session) (string, int) {
	cfg := s.Config()
	return cfg.SocketConnectHost, cfg.SocketConnectPort
}

func acceptPort(s *ouch.Session) int {
	return s.Config().SocketAcceptPort
}

// peekLoginUsername extracts just the username field from a buffered
// login-request packet, without validating the password: identifying
// which candidate Session a connection belongs to only needs the
// username, the Session itself re-validates both fields once the
// packet is replayed through its normal dispatch path.
func peekLoginUsername(buf []byte) (string, bool) {
	bodyLen, typ, ok := soupbin.ParseHeader(buf)
	if !ok || typ != soupbin.TypeLoginRequest {
		return "", false
	}
	total := soupbin.PacketLen(bodyLen)
	if total > len(buf) {
		return "", false
	}
	username, _, _, ok := soupbin.ParseLoginRequest(buf[soupbin.HeaderLen:total])
	return username, ok
}
