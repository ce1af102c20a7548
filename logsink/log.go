// Package logsink implements the session-level message and event log
// sinks: a no-op sink, a stdout sink, and file-backed sinks (synchronous
// and asynchronous) writing two files per session in the FIX-adjacent,
// millisecond-UTC-prefixed line format the rest of the system expects.
package logsink

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ouchtrade/ouchsession/ouchwire"
)

const timestampLayout = "20060102-15:04:05.000"

func nowUTC() string {
	return time.Now().UTC().Format(timestampLayout)
}

// Log is implemented by every log sink. Incoming/outgoing messages are
// always a decoded ouchwire.Message so the sink can render its
// FIX-style text form instead of the raw wire bytes.
type Log interface {
	OnIncoming(msg ouchwire.Message)
	OnOutgoing(msg ouchwire.Message)
	OnEvent(msg string)
	Stop(wait bool) error
}

// NullLog discards everything.
type NullLog struct{}

func (NullLog) OnIncoming(ouchwire.Message) {}
func (NullLog) OnOutgoing(ouchwire.Message) {}
func (NullLog) OnEvent(string)              {}
func (NullLog) Stop(bool) error             { return nil }

// ScreenLog writes to an io.Writer, defaulting to os.Stdout.
type ScreenLog struct {
	w io.Writer
}

func NewScreenLog(w io.Writer) *ScreenLog {
	if w == nil {
		w = os.Stdout
	}
	return &ScreenLog{w: w}
}

func (s *ScreenLog) OnIncoming(msg ouchwire.Message) {
	fmt.Fprintf(s.w, "%s in <", nowUTC())
	renderMessage(s.w, msg)
	fmt.Fprint(s.w, ">\n")
}

func (s *ScreenLog) OnOutgoing(msg ouchwire.Message) {
	fmt.Fprintf(s.w, "%s out <", nowUTC())
	renderMessage(s.w, msg)
	fmt.Fprint(s.w, ">\n")
}

func (s *ScreenLog) OnEvent(msg string) {
	fmt.Fprintf(s.w, "%s evt %s\n", nowUTC(), msg)
}

func (s *ScreenLog) Stop(bool) error { return nil }

// renderMessage dispatches to the message's own FIX-style renderer. The
// outbound-only types (Order, Replace, Cancel, Modify) implement Render
// directly; inbound types go through ouchwire.RenderInbound.
func renderMessage(w io.Writer, msg ouchwire.Message) error {
	switch m := msg.(type) {
	case ouchwire.Order:
		return m.Render(w)
	case ouchwire.Replace:
		return m.Render(w)
	case ouchwire.Cancel:
		return m.Render(w)
	case ouchwire.Modify:
		return m.Render(w)
	default:
		return ouchwire.RenderInbound(msg, w)
	}
}
