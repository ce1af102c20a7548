package logsink

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ouchtrade/ouchsession/ouchwire"
)

// FileLog is a durable Log backed by two append-mode files per session:
// "<sender>-<target>.messages.current.log" and
// "<sender>-<target>.events.current.log".
type FileLog struct {
	messages *os.File
	events   *os.File
}

// NewFileLog opens (creating if necessary) the two log files for a
// session under dir, expanding strftime-style tokens (%Y, %m, %d) in
// dir first.
func NewFileLog(dir, senderCompID, targetCompID string) (*FileLog, error) {
	expanded := expandPathTemplate(dir)
	if expanded == dir {
		expanded = expandPathTemplate(filepath.Join(dir, "%Y%m%d"))
	}
	if expanded == "" {
		expanded = "."
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("logsink: mkdir %s: %w", expanded, err)
	}

	prefix := filepath.Join(expanded, senderCompID+"-"+targetCompID+".")
	messages, err := os.OpenFile(prefix+"messages.current.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logsink: open messages file: %w", err)
	}
	events, err := os.OpenFile(prefix+"events.current.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		messages.Close()
		return nil, fmt.Errorf("logsink: open events file: %w", err)
	}
	return &FileLog{messages: messages, events: events}, nil
}

func (f *FileLog) OnIncoming(msg ouchwire.Message) { f.writeMessage(msg) }
func (f *FileLog) OnOutgoing(msg ouchwire.Message) { f.writeMessage(msg) }

func (f *FileLog) writeMessage(msg ouchwire.Message) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s : ", nowUTC())
	renderMessage(&b, msg)
	b.WriteByte('\n')
	f.messages.Write(b.Bytes())
}

func (f *FileLog) OnEvent(msg string) {
	fmt.Fprintf(f.events, "%s : %s\n", nowUTC(), msg)
}

func (f *FileLog) Stop(bool) error {
	var err error
	if e := f.messages.Close(); e != nil {
		err = e
	}
	if e := f.events.Close(); e != nil {
		err = e
	}
	return err
}

func expandPathTemplate(path string) string {
	now := time.Now().UTC()
	r := strings.NewReplacer(
		"%Y", now.Format("2006"),
		"%m", now.Format("01"),
		"%d", now.Format("02"),
	)
	return r.Replace(path)
}
