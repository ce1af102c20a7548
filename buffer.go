package ouch

// rxBuffer is a session's receive-side byte buffer: a 1 MiB backing
// array with a start/len pair that slides forward as complete packets
// are consumed, and compacts back to offset 0 once the 1 KiB slack
// reserved for the largest possible packet would otherwise be eaten
// into.
type rxBuffer struct {
	data  [rxBufferCap]byte
	start int
	len   int
}

const (
	rxBufferCap     = 1024 * 1024
	rxMaxMessageLen = 1024
)

func (b *rxBuffer) full() bool {
	return b.start+b.len+rxMaxMessageLen > rxBufferCap
}

func (b *rxBuffer) remaining() int {
	return rxBufferCap - b.start - b.len
}

// begin returns the unconsumed bytes currently buffered.
func (b *rxBuffer) begin() []byte {
	return b.data[b.start : b.start+b.len]
}

// end returns the free tail region a read should fill.
func (b *rxBuffer) end() []byte {
	return b.data[b.start+b.len : rxBufferCap]
}

func (b *rxBuffer) advance(n int) {
	b.start += n
	b.len -= n
}

func (b *rxBuffer) compact() {
	copy(b.data[:], b.data[b.start:b.start+b.len])
	b.start = 0
}

func (b *rxBuffer) reset() {
	b.start = 0
	b.len = 0
}
