package ouch

import "github.com/ouchtrade/ouchsession/ouchwire"

// Application receives a Session's lifecycle and inbound-message
// callbacks. It replaces the virtual-method App base class of the
// original system with a small interface, the teacher's preferred way
// of exposing a pluggable callback surface.
type Application interface {
	// OnLogon fires once a session reaches the logon-received state,
	// either by accepting a peer's login request (acceptor role) or by
	// receiving a login-accepted reply (initiator role).
	OnLogon(s *Session)
	// OnLogout fires whenever a session's connection is torn down,
	// whatever the cause (peer logout, timeout, I/O error, explicit
	// Stop).
	OnLogout(s *Session)
	// FromApp delivers one decoded inbound OUCH message.
	FromApp(msg ouchwire.Message, s *Session)
}
