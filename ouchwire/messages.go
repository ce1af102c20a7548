// Package ouchwire implements the OUCH 4.2 binary order-entry message
// set: fixed-layout records, big-endian on the wire, with a FIX-style
// text renderer used by the log sinks.
package ouchwire

// Message tags, as they appear in the first byte of a packet body.
const (
	TagOrder         = 'O'
	TagReplace       = 'U' // outbound; shares the 'U' tag with TagReplaced
	TagCancel        = 'X'
	TagModify        = 'M' // outbound; shares the 'M' tag with TagModified
	TagSystem        = 'S'
	TagAccepted      = 'A'
	TagReplaced      = 'U' // inbound
	TagCanceled      = 'C'
	TagAIQCanceled   = 'D'
	TagExecuted      = 'E'
	TagBrokenTrade   = 'B'
	TagRejected      = 'J'
	TagCancelPending = 'P'
	TagCancelReject  = 'I'
	TagPriority      = 'T'
	TagModified      = 'M' // inbound
)

// Message is implemented by every OUCH record. WireSize includes the
// leading tag byte.
type Message interface {
	Tag() byte
	WireSize() int
}

// Order is an outbound new-order message (tag 'O', 48 bytes).
type Order struct {
	ClOrdID  [14]byte
	Side     byte
	Shares   int32
	Symbol   [8]byte
	Price    uint32 // 1/10000ths of the quoted currency unit
	TIF      int32  // seconds; 0 = IOC, 99998 = until close, 99999 = until end of day
	Firm     [4]byte
	Display  byte
	Capacity byte
	Sweep    byte
	MinQty   int32
	Cross    byte
}

func (Order) Tag() byte    { return TagOrder }
func (Order) WireSize() int { return 48 }

// NewOrder builds an Order with the original system's defaults: TIF until
// market close, capacity agency, sweep ineligible, no cross.
func NewOrder(clOrdID string, side byte, shares int32, symbol string, price uint32, firm string, display byte) Order {
	o := Order{
		Side:     side,
		Shares:   shares,
		Price:    price,
		TIF:      99998,
		Display:  display,
		Capacity: 'A',
		Sweep:    'N',
		Cross:    'N',
	}
	rpad(o.ClOrdID[:], clOrdID)
	rpad(o.Symbol[:], symbol)
	rpad(o.Firm[:], firm)
	return o
}

// Replace is an outbound order-replace request (tag 'U', 47 bytes).
type Replace struct {
	OldClOrdID [14]byte
	NewClOrdID [14]byte
	Shares     int32
	Price      uint32
	TIF        int32
	Display    byte
	Sweep      byte
	MinQty     int32
}

func (Replace) Tag() byte    { return TagReplace }
func (Replace) WireSize() int { return 47 }

// NewReplace builds a Replace with the original system's defaults.
func NewReplace(oldClOrdID, newClOrdID string, shares int32, price uint32, display byte) Replace {
	r := Replace{Shares: shares, Price: price, TIF: 99998, Display: display, Sweep: 'N'}
	rpad(r.OldClOrdID[:], oldClOrdID)
	rpad(r.NewClOrdID[:], newClOrdID)
	return r
}

// Cancel is an outbound cancel request (tag 'X', 19 bytes). Shares == 0
// means cancel the entire remaining quantity.
type Cancel struct {
	ClOrdID [14]byte
	Shares  int32
}

func (Cancel) Tag() byte    { return TagCancel }
func (Cancel) WireSize() int { return 19 }

func NewCancel(clOrdID string, shares int32) Cancel {
	c := Cancel{Shares: shares}
	rpad(c.ClOrdID[:], clOrdID)
	return c
}

// Modify is an outbound order-modify request (tag 'M', 20 bytes). Only
// S->T, S->E, E->T, E->S, T->E, T->S side transitions are meaningful.
type Modify struct {
	ClOrdID [14]byte
	Side    byte
	Shares  int32
}

func (Modify) Tag() byte    { return TagModify }
func (Modify) WireSize() int { return 20 }

func NewModify(clOrdID string, side byte, shares int32) Modify {
	m := Modify{Side: side, Shares: shares}
	rpad(m.ClOrdID[:], clOrdID)
	return m
}

// System is an inbound system event message (tag 'S', 10 bytes).
type System struct {
	TxnTime uint64
	Event   byte
}

func (System) Tag() byte    { return TagSystem }
func (System) WireSize() int { return 10 }

// Accepted is an inbound order-acknowledgement message (tag 'A', 66 bytes).
type Accepted struct {
	TxnTime  uint64
	ClOrdID  [14]byte
	Side     byte
	Shares   int32
	Symbol   [8]byte
	Price    uint32
	TIF      int32
	Firm     [4]byte
	Display  byte
	OrderRef uint64
	Capacity byte
	Sweep    byte
	MinQty   int32
	Cross    byte
	State    byte // 'L' live, 'D' dead (accepted then auto-canceled)
	BBO      byte
}

func (Accepted) Tag() byte    { return TagAccepted }
func (Accepted) WireSize() int { return 66 }

// IsDead reports whether the order was accepted but immediately canceled.
func (a Accepted) IsDead() bool { return a.State == 'D' }

// Replaced is an inbound order-replace-acknowledgement message (tag 'U',
// 80 bytes). Told apart from Replace by direction: DecodeInbound reads
// 'U' as Replaced, DecodeFromClient reads it as Replace.
type Replaced struct {
	TxnTime  uint64
	NewClOrdID [14]byte
	Side     byte
	Shares   int32
	Symbol   [8]byte
	Price    uint32
	TIF      int32
	Firm     [4]byte
	Display  byte
	OrderRef uint64
	Capacity byte
	Sweep    byte
	MinQty   int32
	Cross    byte
	State    byte
	OldClOrdID [14]byte
	BBO      byte
}

func (Replaced) Tag() byte    { return TagReplaced }
func (Replaced) WireSize() int { return 80 }

func (r Replaced) IsDead() bool { return r.State == 'D' }

// Canceled is an inbound order-cancel-acknowledgement message (tag 'C',
// 28 bytes).
type Canceled struct {
	TxnTime        uint64
	ClOrdID        [14]byte
	CanceledShares int32
	Reason         byte
}

func (Canceled) Tag() byte    { return TagCanceled }
func (Canceled) WireSize() int { return 28 }

// AIQCanceled is an inbound auto-immediate-quote cancel message (tag 'D',
// 37 bytes), carrying both the canceled remainder and any execution that
// preceded it.
type AIQCanceled struct {
	TxnTime        uint64
	ClOrdID        [14]byte
	CanceledShares int32
	Reason         byte
	ExecShares     int32
	ExecPrice      uint32
	Liquidity      byte
}

func (AIQCanceled) Tag() byte    { return TagAIQCanceled }
func (AIQCanceled) WireSize() int { return 37 }

// Executed is an inbound (partial) fill message (tag 'E', 40 bytes).
type Executed struct {
	TxnTime    uint64
	ClOrdID    [14]byte
	ExecShares int32
	ExecPrice  uint32
	Liquidity  byte
	MatchNum   uint64
}

func (Executed) Tag() byte    { return TagExecuted }
func (Executed) WireSize() int { return 40 }

// BrokenTrade is an inbound trade-bust message (tag 'B', 32 bytes).
type BrokenTrade struct {
	TxnTime  uint64
	ClOrdID  [14]byte
	MatchNum uint64
	Reason   byte
}

func (BrokenTrade) Tag() byte    { return TagBrokenTrade }
func (BrokenTrade) WireSize() int { return 32 }

// Rejected is an inbound order-rejection message (tag 'J', 24 bytes).
type Rejected struct {
	TxnTime uint64
	ClOrdID [14]byte
	Reason  byte
}

func (Rejected) Tag() byte    { return TagRejected }
func (Rejected) WireSize() int { return 24 }

// A Rejected message whose Reason is 'T' is a test-mode rejection: the
// session does not advance its target sequence number for it.
const CancelReasonNotCounted = 'T'

// CancelPending is an inbound cancel-pending acknowledgement (tag 'P',
// 23 bytes).
type CancelPending struct {
	TxnTime uint64
	ClOrdID [14]byte
}

func (CancelPending) Tag() byte    { return TagCancelPending }
func (CancelPending) WireSize() int { return 23 }

// CancelReject is an inbound cancel-reject message (tag 'I', 23 bytes).
type CancelReject struct {
	TxnTime uint64
	ClOrdID [14]byte
}

func (CancelReject) Tag() byte    { return TagCancelReject }
func (CancelReject) WireSize() int { return 23 }

// Priority is an inbound order-priority-update message (tag 'T', 36 bytes).
type Priority struct {
	TxnTime  uint64
	ClOrdID  [14]byte
	Price    uint32
	Display  byte
	OrderRef uint64
}

func (Priority) Tag() byte    { return TagPriority }
func (Priority) WireSize() int { return 36 }

// Modified is an inbound order-modify-acknowledgement message (tag 'M',
// 28 bytes). Told apart from Modify by direction: DecodeInbound reads
// 'M' as Modified, DecodeFromClient reads it as Modify.
type Modified struct {
	TxnTime uint64
	ClOrdID [14]byte
	Side    byte
	Shares  int32
}

func (Modified) Tag() byte    { return TagModified }
func (Modified) WireSize() int { return 28 }

func rpad(dst []byte, src string) {
	n := copy(dst, src)
	for i := n; i < len(dst); i++ {
		dst[i] = ' '
	}
}

func rtrim(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == ' ' {
		n--
	}
	return string(b[:n])
}
