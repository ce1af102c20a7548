package logsink

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ouchtrade/ouchsession/ouchwire"
)

type logRecord struct {
	isEvent bool
	line    []byte
}

// AsyncFileLog wraps a FileLog so OnIncoming/OnOutgoing/OnEvent never
// block their caller on disk I/O: each call renders its line and
// enqueues it, while a single worker goroutine drains the queue in
// order and appends to the underlying files.
type AsyncFileLog struct {
	inner *FileLog
	queue chan logRecord
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAsyncFileLog starts the worker goroutine draining into inner.
func NewAsyncFileLog(inner *FileLog, queueDepth int, logger *slog.Logger) *AsyncFileLog {
	if logger == nil {
		logger = slog.Default()
	}
	if queueDepth <= 0 {
		queueDepth = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &AsyncFileLog{
		inner:  inner,
		queue:  make(chan logRecord, queueDepth),
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AsyncFileLog) run() {
	defer a.wg.Done()
	for {
		select {
		case rec, ok := <-a.queue:
			if !ok {
				return
			}
			a.apply(rec)
		case <-a.ctx.Done():
			a.drain()
			return
		}
	}
}

func (a *AsyncFileLog) drain() {
	for {
		select {
		case rec, ok := <-a.queue:
			if !ok {
				return
			}
			a.apply(rec)
		default:
			return
		}
	}
}

func (a *AsyncFileLog) apply(rec logRecord) {
	var err error
	if rec.isEvent {
		_, err = a.inner.events.Write(rec.line)
	} else {
		_, err = a.inner.messages.Write(rec.line)
	}
	if err != nil {
		a.log.Error("async log write failed", "error", err)
	}
}

func (a *AsyncFileLog) enqueueMessage(msg ouchwire.Message) {
	var b bytes.Buffer
	b.WriteString(nowUTC())
	b.WriteString(" : ")
	renderMessage(&b, msg)
	b.WriteByte('\n')
	a.queue <- logRecord{line: b.Bytes()}
}

func (a *AsyncFileLog) OnIncoming(msg ouchwire.Message) { a.enqueueMessage(msg) }
func (a *AsyncFileLog) OnOutgoing(msg ouchwire.Message) { a.enqueueMessage(msg) }

func (a *AsyncFileLog) OnEvent(msg string) {
	var b bytes.Buffer
	b.WriteString(nowUTC())
	b.WriteString(" : ")
	b.WriteString(msg)
	b.WriteByte('\n')
	a.queue <- logRecord{isEvent: true, line: b.Bytes()}
}

// Stop stops the worker goroutine. If wait is true it first blocks,
// with a bounded timeout, until the queue has drained.
func (a *AsyncFileLog) Stop(wait bool) error {
	if wait {
		deadline := time.Now().Add(5 * time.Second)
		for len(a.queue) > 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}
	a.cancel()
	a.wg.Wait()
	return a.inner.Stop(wait)
}
