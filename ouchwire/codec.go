package ouchwire

import (
	"encoding/binary"
	"fmt"
)

// cursor is a small sequential byte writer/reader used to lay out the
// packed, big-endian wire format without reflection.
type cursor struct {
	buf []byte
	pos int
}

func newWriteCursor(n int) *cursor { return &cursor{buf: make([]byte, n)} }

func (c *cursor) putByte(b byte) {
	c.buf[c.pos] = b
	c.pos++
}

func (c *cursor) putBytes(b []byte) {
	copy(c.buf[c.pos:], b)
	c.pos += len(b)
}

func (c *cursor) putU32(v uint32) {
	binary.BigEndian.PutUint32(c.buf[c.pos:], v)
	c.pos += 4
}

func (c *cursor) putI32(v int32) { c.putU32(uint32(v)) }

func (c *cursor) putU64(v uint64) {
	binary.BigEndian.PutUint64(c.buf[c.pos:], v)
	c.pos += 8
}

func newReadCursor(b []byte) *cursor { return &cursor{buf: b} }

func (c *cursor) getByte() byte {
	b := c.buf[c.pos]
	c.pos++
	return b
}

func (c *cursor) getBytes(n int) []byte {
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) getU32() uint32 {
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) getI32() int32 { return int32(c.getU32()) }

func (c *cursor) getU64() uint64 {
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v
}

func checkLen(body []byte, want int) error {
	if len(body) != want {
		return fmt.Errorf("ouchwire: body length %d, want %d", len(body), want)
	}
	return nil
}

// Encode marshals o to its wire form, including the leading tag byte.
func (o Order) Encode() []byte {
	c := newWriteCursor(o.WireSize())
	c.putByte(o.Tag())
	c.putBytes(o.ClOrdID[:])
	c.putByte(o.Side)
	c.putI32(o.Shares)
	c.putBytes(o.Symbol[:])
	c.putU32(o.Price)
	c.putI32(o.TIF)
	c.putBytes(o.Firm[:])
	c.putByte(o.Display)
	c.putByte(o.Capacity)
	c.putByte(o.Sweep)
	c.putI32(o.MinQty)
	c.putByte(o.Cross)
	return c.buf
}

// DecodeOrder parses a New Order Request body (tag byte included).
func DecodeOrder(body []byte) (Order, error) {
	var o Order
	if err := checkLen(body, o.WireSize()); err != nil {
		return o, err
	}
	c := newReadCursor(body)
	c.getByte() // tag
	copy(o.ClOrdID[:], c.getBytes(14))
	o.Side = c.getByte()
	o.Shares = c.getI32()
	copy(o.Symbol[:], c.getBytes(8))
	o.Price = c.getU32()
	o.TIF = c.getI32()
	copy(o.Firm[:], c.getBytes(4))
	o.Display = c.getByte()
	o.Capacity = c.getByte()
	o.Sweep = c.getByte()
	o.MinQty = c.getI32()
	o.Cross = c.getByte()
	return o, nil
}

func (r Replace) Encode() []byte {
	c := newWriteCursor(r.WireSize())
	c.putByte(r.Tag())
	c.putBytes(r.OldClOrdID[:])
	c.putBytes(r.NewClOrdID[:])
	c.putI32(r.Shares)
	c.putU32(r.Price)
	c.putI32(r.TIF)
	c.putByte(r.Display)
	c.putByte(r.Sweep)
	c.putI32(r.MinQty)
	return c.buf
}

func DecodeReplace(body []byte) (Replace, error) {
	var r Replace
	if err := checkLen(body, r.WireSize()); err != nil {
		return r, err
	}
	c := newReadCursor(body)
	c.getByte()
	copy(r.OldClOrdID[:], c.getBytes(14))
	copy(r.NewClOrdID[:], c.getBytes(14))
	r.Shares = c.getI32()
	r.Price = c.getU32()
	r.TIF = c.getI32()
	r.Display = c.getByte()
	r.Sweep = c.getByte()
	r.MinQty = c.getI32()
	return r, nil
}

func (x Cancel) Encode() []byte {
	c := newWriteCursor(x.WireSize())
	c.putByte(x.Tag())
	c.putBytes(x.ClOrdID[:])
	c.putI32(x.Shares)
	return c.buf
}

func DecodeCancel(body []byte) (Cancel, error) {
	var x Cancel
	if err := checkLen(body, x.WireSize()); err != nil {
		return x, err
	}
	c := newReadCursor(body)
	c.getByte()
	copy(x.ClOrdID[:], c.getBytes(14))
	x.Shares = c.getI32()
	return x, nil
}

func (m Modify) Encode() []byte {
	c := newWriteCursor(m.WireSize())
	c.putByte(m.Tag())
	c.putBytes(m.ClOrdID[:])
	c.putByte(m.Side)
	c.putI32(m.Shares)
	return c.buf
}

func DecodeModify(body []byte) (Modify, error) {
	var m Modify
	if err := checkLen(body, m.WireSize()); err != nil {
		return m, err
	}
	c := newReadCursor(body)
	c.getByte()
	copy(m.ClOrdID[:], c.getBytes(14))
	m.Side = c.getByte()
	m.Shares = c.getI32()
	return m, nil
}

func DecodeSystem(body []byte) (System, error) {
	var s System
	if err := checkLen(body, s.WireSize()); err != nil {
		return s, err
	}
	c := newReadCursor(body)
	c.getByte()
	s.TxnTime = c.getU64()
	s.Event = c.getByte()
	return s, nil
}

func DecodeAccepted(body []byte) (Accepted, error) {
	var a Accepted
	if err := checkLen(body, a.WireSize()); err != nil {
		return a, err
	}
	c := newReadCursor(body)
	c.getByte()
	a.TxnTime = c.getU64()
	copy(a.ClOrdID[:], c.getBytes(14))
	a.Side = c.getByte()
	a.Shares = c.getI32()
	copy(a.Symbol[:], c.getBytes(8))
	a.Price = c.getU32()
	a.TIF = c.getI32()
	copy(a.Firm[:], c.getBytes(4))
	a.Display = c.getByte()
	a.OrderRef = c.getU64()
	a.Capacity = c.getByte()
	a.Sweep = c.getByte()
	a.MinQty = c.getI32()
	a.Cross = c.getByte()
	a.State = c.getByte()
	a.BBO = c.getByte()
	return a, nil
}

func DecodeReplaced(body []byte) (Replaced, error) {
	var r Replaced
	if err := checkLen(body, r.WireSize()); err != nil {
		return r, err
	}
	c := newReadCursor(body)
	c.getByte()
	r.TxnTime = c.getU64()
	copy(r.NewClOrdID[:], c.getBytes(14))
	r.Side = c.getByte()
	r.Shares = c.getI32()
	copy(r.Symbol[:], c.getBytes(8))
	r.Price = c.getU32()
	r.TIF = c.getI32()
	copy(r.Firm[:], c.getBytes(4))
	r.Display = c.getByte()
	r.OrderRef = c.getU64()
	r.Capacity = c.getByte()
	r.Sweep = c.getByte()
	r.MinQty = c.getI32()
	r.Cross = c.getByte()
	r.State = c.getByte()
	copy(r.OldClOrdID[:], c.getBytes(14))
	r.BBO = c.getByte()
	return r, nil
}

func DecodeCanceled(body []byte) (Canceled, error) {
	var x Canceled
	if err := checkLen(body, x.WireSize()); err != nil {
		return x, err
	}
	c := newReadCursor(body)
	c.getByte()
	x.TxnTime = c.getU64()
	copy(x.ClOrdID[:], c.getBytes(14))
	x.CanceledShares = c.getI32()
	x.Reason = c.getByte()
	return x, nil
}

func DecodeAIQCanceled(body []byte) (AIQCanceled, error) {
	var x AIQCanceled
	if err := checkLen(body, x.WireSize()); err != nil {
		return x, err
	}
	c := newReadCursor(body)
	c.getByte()
	x.TxnTime = c.getU64()
	copy(x.ClOrdID[:], c.getBytes(14))
	x.CanceledShares = c.getI32()
	x.Reason = c.getByte()
	x.ExecShares = c.getI32()
	x.ExecPrice = c.getU32()
	x.Liquidity = c.getByte()
	return x, nil
}

func DecodeExecuted(body []byte) (Executed, error) {
	var e Executed
	if err := checkLen(body, e.WireSize()); err != nil {
		return e, err
	}
	c := newReadCursor(body)
	c.getByte()
	e.TxnTime = c.getU64()
	copy(e.ClOrdID[:], c.getBytes(14))
	e.ExecShares = c.getI32()
	e.ExecPrice = c.getU32()
	e.Liquidity = c.getByte()
	e.MatchNum = c.getU64()
	return e, nil
}

func DecodeBrokenTrade(body []byte) (BrokenTrade, error) {
	var b BrokenTrade
	if err := checkLen(body, b.WireSize()); err != nil {
		return b, err
	}
	c := newReadCursor(body)
	c.getByte()
	b.TxnTime = c.getU64()
	copy(b.ClOrdID[:], c.getBytes(14))
	b.MatchNum = c.getU64()
	b.Reason = c.getByte()
	return b, nil
}

func DecodeRejected(body []byte) (Rejected, error) {
	var r Rejected
	if err := checkLen(body, r.WireSize()); err != nil {
		return r, err
	}
	c := newReadCursor(body)
	c.getByte()
	r.TxnTime = c.getU64()
	copy(r.ClOrdID[:], c.getBytes(14))
	r.Reason = c.getByte()
	return r, nil
}

func DecodeCancelPending(body []byte) (CancelPending, error) {
	var p CancelPending
	if err := checkLen(body, p.WireSize()); err != nil {
		return p, err
	}
	c := newReadCursor(body)
	c.getByte()
	p.TxnTime = c.getU64()
	copy(p.ClOrdID[:], c.getBytes(14))
	return p, nil
}

func DecodeCancelReject(body []byte) (CancelReject, error) {
	var r CancelReject
	if err := checkLen(body, r.WireSize()); err != nil {
		return r, err
	}
	c := newReadCursor(body)
	c.getByte()
	r.TxnTime = c.getU64()
	copy(r.ClOrdID[:], c.getBytes(14))
	return r, nil
}

func DecodePriority(body []byte) (Priority, error) {
	var p Priority
	if err := checkLen(body, p.WireSize()); err != nil {
		return p, err
	}
	c := newReadCursor(body)
	c.getByte()
	p.TxnTime = c.getU64()
	copy(p.ClOrdID[:], c.getBytes(14))
	p.Price = c.getU32()
	p.Display = c.getByte()
	p.OrderRef = c.getU64()
	return p, nil
}

func DecodeModified(body []byte) (Modified, error) {
	var m Modified
	if err := checkLen(body, m.WireSize()); err != nil {
		return m, err
	}
	c := newReadCursor(body)
	c.getByte()
	m.TxnTime = c.getU64()
	copy(m.ClOrdID[:], c.getBytes(14))
	m.Side = c.getByte()
	m.Shares = c.getI32()
	return m, nil
}

// Encode methods below let a session acting in the acceptor role send
// these otherwise-inbound-named variants; every OUCH message can be
// encoded by whichever side originates it and decoded by whichever side
// receives it, regardless of the Go-side naming chosen for each struct.

func (s System) Encode() []byte {
	c := newWriteCursor(s.WireSize())
	c.putByte(s.Tag())
	c.putU64(s.TxnTime)
	c.putByte(s.Event)
	return c.buf
}

func (a Accepted) Encode() []byte {
	c := newWriteCursor(a.WireSize())
	c.putByte(a.Tag())
	c.putU64(a.TxnTime)
	c.putBytes(a.ClOrdID[:])
	c.putByte(a.Side)
	c.putI32(a.Shares)
	c.putBytes(a.Symbol[:])
	c.putU32(a.Price)
	c.putI32(a.TIF)
	c.putBytes(a.Firm[:])
	c.putByte(a.Display)
	c.putU64(a.OrderRef)
	c.putByte(a.Capacity)
	c.putByte(a.Sweep)
	c.putI32(a.MinQty)
	c.putByte(a.Cross)
	c.putByte(a.State)
	c.putByte(a.BBO)
	return c.buf
}

func (r Replaced) Encode() []byte {
	c := newWriteCursor(r.WireSize())
	c.putByte(r.Tag())
	c.putU64(r.TxnTime)
	c.putBytes(r.NewClOrdID[:])
	c.putByte(r.Side)
	c.putI32(r.Shares)
	c.putBytes(r.Symbol[:])
	c.putU32(r.Price)
	c.putI32(r.TIF)
	c.putBytes(r.Firm[:])
	c.putByte(r.Display)
	c.putU64(r.OrderRef)
	c.putByte(r.Capacity)
	c.putByte(r.Sweep)
	c.putI32(r.MinQty)
	c.putByte(r.Cross)
	c.putByte(r.State)
	c.putBytes(r.OldClOrdID[:])
	c.putByte(r.BBO)
	return c.buf
}

func (x Canceled) Encode() []byte {
	c := newWriteCursor(x.WireSize())
	c.putByte(x.Tag())
	c.putU64(x.TxnTime)
	c.putBytes(x.ClOrdID[:])
	c.putI32(x.CanceledShares)
	c.putByte(x.Reason)
	return c.buf
}

func (x AIQCanceled) Encode() []byte {
	c := newWriteCursor(x.WireSize())
	c.putByte(x.Tag())
	c.putU64(x.TxnTime)
	c.putBytes(x.ClOrdID[:])
	c.putI32(x.CanceledShares)
	c.putByte(x.Reason)
	c.putI32(x.ExecShares)
	c.putU32(x.ExecPrice)
	c.putByte(x.Liquidity)
	return c.buf
}

func (e Executed) Encode() []byte {
	c := newWriteCursor(e.WireSize())
	c.putByte(e.Tag())
	c.putU64(e.TxnTime)
	c.putBytes(e.ClOrdID[:])
	c.putI32(e.ExecShares)
	c.putU32(e.ExecPrice)
	c.putByte(e.Liquidity)
	c.putU64(e.MatchNum)
	return c.buf
}

func (b BrokenTrade) Encode() []byte {
	c := newWriteCursor(b.WireSize())
	c.putByte(b.Tag())
	c.putU64(b.TxnTime)
	c.putBytes(b.ClOrdID[:])
	c.putU64(b.MatchNum)
	c.putByte(b.Reason)
	return c.buf
}

func (r Rejected) Encode() []byte {
	c := newWriteCursor(r.WireSize())
	c.putByte(r.Tag())
	c.putU64(r.TxnTime)
	c.putBytes(r.ClOrdID[:])
	c.putByte(r.Reason)
	return c.buf
}

func (p CancelPending) Encode() []byte {
	c := newWriteCursor(p.WireSize())
	c.putByte(p.Tag())
	c.putU64(p.TxnTime)
	c.putBytes(p.ClOrdID[:])
	return c.buf
}

func (r CancelReject) Encode() []byte {
	c := newWriteCursor(r.WireSize())
	c.putByte(r.Tag())
	c.putU64(r.TxnTime)
	c.putBytes(r.ClOrdID[:])
	return c.buf
}

func (p Priority) Encode() []byte {
	c := newWriteCursor(p.WireSize())
	c.putByte(p.Tag())
	c.putU64(p.TxnTime)
	c.putBytes(p.ClOrdID[:])
	c.putU32(p.Price)
	c.putByte(p.Display)
	c.putU64(p.OrderRef)
	return c.buf
}

func (m Modified) Encode() []byte {
	c := newWriteCursor(m.WireSize())
	c.putByte(m.Tag())
	c.putU64(m.TxnTime)
	c.putBytes(m.ClOrdID[:])
	c.putByte(m.Side)
	c.putI32(m.Shares)
	return c.buf
}

// EncodeAny dispatches on the concrete type to produce the wire form of
// any OUCH message, regardless of which role in a session originates it.
func EncodeAny(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case Order:
		return m.Encode(), nil
	case Replace:
		return m.Encode(), nil
	case Cancel:
		return m.Encode(), nil
	case Modify:
		return m.Encode(), nil
	case System:
		return m.Encode(), nil
	case Accepted:
		return m.Encode(), nil
	case Replaced:
		return m.Encode(), nil
	case Canceled:
		return m.Encode(), nil
	case AIQCanceled:
		return m.Encode(), nil
	case Executed:
		return m.Encode(), nil
	case BrokenTrade:
		return m.Encode(), nil
	case Rejected:
		return m.Encode(), nil
	case CancelPending:
		return m.Encode(), nil
	case CancelReject:
		return m.Encode(), nil
	case Priority:
		return m.Encode(), nil
	case Modified:
		return m.Encode(), nil
	default:
		return nil, fmt.Errorf("ouchwire: unencodable message type %T", msg)
	}
}

// DecodeFromClient dispatches a client-to-server OUCH message (as seen
// by a session acting in the acceptor role). The 'U' tag means Replace
// and the 'M' tag means Modify in this direction; body length confirms
// the choice rather than driving it, since a session running as both an
// initiator and an acceptor shares these tag constants across both
// directional decode paths.
func DecodeFromClient(body []byte) (Message, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("ouchwire: empty body")
	}
	switch body[0] {
	case TagOrder:
		return DecodeOrder(body)
	case TagReplace:
		return DecodeReplace(body)
	case TagCancel:
		return DecodeCancel(body)
	case TagModify:
		return DecodeModify(body)
	default:
		return nil, fmt.Errorf("ouchwire: unknown message type %q", body[0])
	}
}

// DecodeInbound dispatches a server-to-client OUCH message by its tag
// byte. The 'U' tag means Replaced and the 'M' tag means Modified in
// this direction — see DecodeFromClient for the other direction's
// meaning of the same two tag bytes.
func DecodeInbound(body []byte) (Message, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("ouchwire: empty body")
	}
	switch body[0] {
	case TagSystem:
		return DecodeSystem(body)
	case TagAccepted:
		return DecodeAccepted(body)
	case TagReplaced:
		return DecodeReplaced(body)
	case TagCanceled:
		return DecodeCanceled(body)
	case TagAIQCanceled:
		return DecodeAIQCanceled(body)
	case TagExecuted:
		return DecodeExecuted(body)
	case TagBrokenTrade:
		return DecodeBrokenTrade(body)
	case TagRejected:
		return DecodeRejected(body)
	case TagCancelPending:
		return DecodeCancelPending(body)
	case TagCancelReject:
		return DecodeCancelReject(body)
	case TagPriority:
		return DecodePriority(body)
	case TagModified:
		return DecodeModified(body)
	default:
		return nil, fmt.Errorf("ouchwire: unknown message type %q", body[0])
	}
}
