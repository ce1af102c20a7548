// Package ouch implements the session side of a bidirectional
// SoupBinTCP v3 + OUCH v4.2 order-entry connection: the state machine,
// framing dispatch, heartbeat/reconnect timer, and send/receive path.
// It takes no side on role — the same Session type runs as either an
// initiator or an acceptor, decided entirely by settings.Session.
package ouch

import "errors"

// ErrUnknownMessageType names the case of an OUCH tag byte that matches
// no known message type. Session does not return or log this value: it
// logs the decoder's own error to its event log, closes the session for
// an unknown tag in SEQ_DATA, and keeps the session open for one in
// UNSEQ_DATA.
var ErrUnknownMessageType = errors.New("ouch: unknown message type")
