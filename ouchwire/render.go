package ouchwire

import (
	"fmt"
	"io"
	"strings"
)

const soh = "\x01"

// writeSide maps the internal OUCH side byte to its FIX tag 54 value.
func writeSide(b *strings.Builder, side byte) {
	b.WriteString("54=")
	switch side {
	case 'B':
		b.WriteByte('1')
	case 'S':
		b.WriteByte('2')
	case 'T':
		b.WriteByte('5')
	case 'E':
		b.WriteByte('6')
	default:
		b.WriteByte(side)
	}
	b.WriteString(soh)
}

func writePrice(b *strings.Builder, tag string, price uint32) {
	if price == 0 {
		return
	}
	fmt.Fprintf(b, "%s=%d.%04d%s", tag, price/10000, price%10000, soh)
}

func writeField(b *strings.Builder, tag string, v string) {
	fmt.Fprintf(b, "%s=%s%s", tag, v, soh)
}

// Render writes o's FIX-style tag=value representation, terminated with
// SOH (0x01) after every field, to w.
func (o Order) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "D")
	writeField(&b, "11", rtrim(o.ClOrdID[:]))
	writeSide(&b, o.Side)
	fmt.Fprintf(&b, "38=%d%s", o.Shares, soh)
	writeField(&b, "55", rtrim(o.Symbol[:]))
	writePrice(&b, "44", o.Price)
	fmt.Fprintf(&b, "59=%d%s", o.TIF, soh)
	if o.Firm != ([4]byte{' ', ' ', ' ', ' '}) {
		writeField(&b, "49", rtrim(o.Firm[:]))
	}
	if o.Display != ' ' {
		fmt.Fprintf(&b, "9140=%c%s", o.Display, soh)
	}
	if o.Capacity != ' ' {
		fmt.Fprintf(&b, "47=%c%s", o.Capacity, soh)
	}
	if o.Sweep == 'Y' {
		b.WriteString("18=f" + soh)
	}
	if o.MinQty > 0 {
		fmt.Fprintf(&b, "110=%d%s", o.MinQty, soh)
	}
	if o.Cross != ' ' {
		fmt.Fprintf(&b, "9355=%c%s", o.Cross, soh)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r Replace) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "G")
	writeField(&b, "41", rtrim(r.OldClOrdID[:]))
	writeField(&b, "11", rtrim(r.NewClOrdID[:]))
	fmt.Fprintf(&b, "38=%d%s", r.Shares, soh)
	writePrice(&b, "44", r.Price)
	fmt.Fprintf(&b, "59=%d%s", r.TIF, soh)
	if r.Display != ' ' {
		fmt.Fprintf(&b, "9140=%c%s", r.Display, soh)
	}
	if r.Sweep == 'Y' {
		b.WriteString("18=f" + soh)
	}
	if r.MinQty > 0 {
		fmt.Fprintf(&b, "110=%d%s", r.MinQty, soh)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (x Cancel) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "F")
	writeField(&b, "11", rtrim(x.ClOrdID[:]))
	if x.Shares != 0 {
		fmt.Fprintf(&b, "38=%d%s", x.Shares, soh)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Render renders Modify using the same 35=G replace-request family as
// the original system — OUCH has no dedicated FIX MsgType for a pure
// quantity/side modify.
func (m Modify) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "G")
	writeField(&b, "11", rtrim(m.ClOrdID[:]))
	writeSide(&b, m.Side)
	fmt.Fprintf(&b, "38=%d%s", m.Shares, soh)
	_, err := io.WriteString(w, b.String())
	return err
}

func (s System) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "S")
	fmt.Fprintf(&b, "60=%d%s", s.TxnTime, soh)
	fmt.Fprintf(&b, "58=%c%s", s.Event, soh)
	_, err := io.WriteString(w, b.String())
	return err
}

func (a Accepted) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "8")
	fmt.Fprintf(&b, "60=%d%s", a.TxnTime, soh)
	writeField(&b, "11", rtrim(a.ClOrdID[:]))
	writeSide(&b, a.Side)
	fmt.Fprintf(&b, "38=%d%s", a.Shares, soh)
	writeField(&b, "55", rtrim(a.Symbol[:]))
	writePrice(&b, "44", a.Price)
	fmt.Fprintf(&b, "59=%d%s", a.TIF, soh)
	if a.Firm != ([4]byte{' ', ' ', ' ', ' '}) {
		writeField(&b, "49", rtrim(a.Firm[:]))
	}
	if a.Display != ' ' {
		fmt.Fprintf(&b, "9140=%c%s", a.Display, soh)
	}
	fmt.Fprintf(&b, "37=%d%s", a.OrderRef, soh)
	if a.Capacity != ' ' {
		fmt.Fprintf(&b, "47=%c%s", a.Capacity, soh)
	}
	if a.Sweep == 'Y' {
		b.WriteString("18=f" + soh)
	}
	if a.MinQty > 0 {
		fmt.Fprintf(&b, "110=%d%s", a.MinQty, soh)
	}
	if a.Cross != ' ' {
		fmt.Fprintf(&b, "9355=%c%s", a.Cross, soh)
	}
	execType := byte('0')
	if a.IsDead() {
		execType = '4'
	}
	fmt.Fprintf(&b, "150=%c%s", execType, soh)
	if a.BBO != ' ' {
		fmt.Fprintf(&b, "9883=%c%s", a.BBO, soh)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r Replaced) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "8")
	fmt.Fprintf(&b, "60=%d%s", r.TxnTime, soh)
	writeField(&b, "11", rtrim(r.NewClOrdID[:]))
	fmt.Fprintf(&b, "54=%c%s", r.Side, soh)
	fmt.Fprintf(&b, "38=%d%s", r.Shares, soh)
	writeField(&b, "55", rtrim(r.Symbol[:]))
	writePrice(&b, "44", r.Price)
	fmt.Fprintf(&b, "59=%d%s", r.TIF, soh)
	if r.Firm != ([4]byte{' ', ' ', ' ', ' '}) {
		writeField(&b, "49", rtrim(r.Firm[:]))
	}
	if r.Display != ' ' {
		fmt.Fprintf(&b, "9140=%c%s", r.Display, soh)
	}
	fmt.Fprintf(&b, "37=%d%s", r.OrderRef, soh)
	if r.Capacity != ' ' {
		fmt.Fprintf(&b, "47=%c%s", r.Capacity, soh)
	}
	if r.Sweep == 'Y' {
		b.WriteString("18=f" + soh)
	}
	if r.MinQty > 0 {
		fmt.Fprintf(&b, "110=%d%s", r.MinQty, soh)
	}
	if r.Cross != ' ' {
		fmt.Fprintf(&b, "9355=%c%s", r.Cross, soh)
	}
	execType := byte('5')
	if r.IsDead() {
		execType = '4'
	}
	fmt.Fprintf(&b, "150=%c%s", execType, soh)
	writeField(&b, "41", rtrim(r.OldClOrdID[:]))
	if r.BBO != ' ' {
		fmt.Fprintf(&b, "9883=%c%s", r.BBO, soh)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (x Canceled) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "8")
	fmt.Fprintf(&b, "60=%d%s", x.TxnTime, soh)
	writeField(&b, "11", rtrim(x.ClOrdID[:]))
	if x.CanceledShares != 0 {
		fmt.Fprintf(&b, "38=%d%s", x.CanceledShares, soh)
	}
	b.WriteString("150=4" + soh)
	if x.Reason != ' ' {
		fmt.Fprintf(&b, "58=%c%s", x.Reason, soh)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (x AIQCanceled) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "8")
	fmt.Fprintf(&b, "60=%d%s", x.TxnTime, soh)
	writeField(&b, "11", rtrim(x.ClOrdID[:]))
	if x.CanceledShares != 0 {
		fmt.Fprintf(&b, "38=%d%s", x.CanceledShares, soh)
	}
	if x.Reason != ' ' {
		fmt.Fprintf(&b, "58=%c%s", x.Reason, soh)
	}
	if x.ExecShares != 0 {
		fmt.Fprintf(&b, "32=%d%s", x.ExecShares, soh)
	}
	writePrice(&b, "31", x.ExecPrice)
	b.WriteString("150=4" + soh)
	if x.Liquidity != ' ' {
		fmt.Fprintf(&b, "9882=%c%s", x.Liquidity, soh)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (e Executed) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "8")
	fmt.Fprintf(&b, "60=%d%s", e.TxnTime, soh)
	writeField(&b, "11", rtrim(e.ClOrdID[:]))
	if e.ExecShares != 0 {
		fmt.Fprintf(&b, "32=%d%s", e.ExecShares, soh)
	}
	writePrice(&b, "31", e.ExecPrice)
	b.WriteString("150=1" + soh)
	if e.Liquidity != ' ' {
		fmt.Fprintf(&b, "9882=%c%s", e.Liquidity, soh)
	}
	fmt.Fprintf(&b, "17=%d%s", e.MatchNum, soh)
	b.WriteString("20=0" + soh)
	_, err := io.WriteString(w, b.String())
	return err
}

func (t BrokenTrade) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "8")
	fmt.Fprintf(&b, "60=%d%s", t.TxnTime, soh)
	writeField(&b, "11", rtrim(t.ClOrdID[:]))
	b.WriteString("150=1" + soh)
	fmt.Fprintf(&b, "17=%d%s", t.MatchNum, soh)
	if t.Reason != ' ' {
		fmt.Fprintf(&b, "58=%c%s", t.Reason, soh)
	}
	b.WriteString("20=1" + soh)
	_, err := io.WriteString(w, b.String())
	return err
}

func (r Rejected) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "8")
	fmt.Fprintf(&b, "60=%d%s", r.TxnTime, soh)
	writeField(&b, "11", rtrim(r.ClOrdID[:]))
	if r.Reason != ' ' {
		fmt.Fprintf(&b, "58=%c%s", r.Reason, soh)
	}
	b.WriteString("150=8" + soh)
	_, err := io.WriteString(w, b.String())
	return err
}

func (p CancelPending) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "8")
	fmt.Fprintf(&b, "60=%d%s", p.TxnTime, soh)
	writeField(&b, "11", rtrim(p.ClOrdID[:]))
	b.WriteString("150=6" + soh)
	_, err := io.WriteString(w, b.String())
	return err
}

func (r CancelReject) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "9")
	fmt.Fprintf(&b, "60=%d%s", r.TxnTime, soh)
	writeField(&b, "11", rtrim(r.ClOrdID[:]))
	b.WriteString("434=1" + soh)
	_, err := io.WriteString(w, b.String())
	return err
}

func (p Priority) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "T")
	fmt.Fprintf(&b, "60=%d%s", p.TxnTime, soh)
	writeField(&b, "11", rtrim(p.ClOrdID[:]))
	writePrice(&b, "44", p.Price)
	if p.Display != ' ' {
		fmt.Fprintf(&b, "9140=%c%s", p.Display, soh)
	}
	fmt.Fprintf(&b, "37=%d%s", p.OrderRef, soh)
	_, err := io.WriteString(w, b.String())
	return err
}

// Render renders Modified on its own: the original system's dispatcher
// fell through from ModifiedMsg into CanceledMsg::write for this case,
// which is not reproduced here — this message renders exactly once.
func (m Modified) Render(w io.Writer) error {
	var b strings.Builder
	writeField(&b, "35", "8")
	fmt.Fprintf(&b, "60=%d%s", m.TxnTime, soh)
	writeField(&b, "11", rtrim(m.ClOrdID[:]))
	b.WriteString("150=5" + soh)
	writeSide(&b, m.Side)
	fmt.Fprintf(&b, "38=%d%s", m.Shares, soh)
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderInbound renders any inbound Message via its tag-specific Render
// method, dispatching through a type switch rather than an interface
// method so Render can be called without a blanket interface embedding
// every message type.
func RenderInbound(msg Message, w io.Writer) error {
	switch m := msg.(type) {
	case System:
		return m.Render(w)
	case Accepted:
		return m.Render(w)
	case Replaced:
		return m.Render(w)
	case Canceled:
		return m.Render(w)
	case AIQCanceled:
		return m.Render(w)
	case Executed:
		return m.Render(w)
	case BrokenTrade:
		return m.Render(w)
	case Rejected:
		return m.Render(w)
	case CancelPending:
		return m.Render(w)
	case CancelReject:
		return m.Render(w)
	case Priority:
		return m.Render(w)
	case Modified:
		return m.Render(w)
	default:
		return fmt.Errorf("ouchwire: no renderer for %T", msg)
	}
}
