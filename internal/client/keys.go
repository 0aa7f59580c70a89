package client

import "mish/internal/vt"

// Control-character key bindings (spec §4.C7).
const (
	ctrlA = 0x01
	ctrlB = 0x02
	ctrlE = 0x05
	ctrlF = 0x06
	ctrlH = 0x08
	ctrlK = 0x0B
	ctrlL = 0x0C
	ctrlM = 0x0D // Enter
	ctrlN = 0x0E
	ctrlP = 0x10
	ctrlW = 0x17
	del   = 0x7F
)

// HandleVTEvent applies one completed VT decoder event to the edit line
// or scroll position, per the §4.C7 dispatch table. It never touches the
// send buffer directly for bytes that need echoing — callers read the
// Signal bitset afterward (SigUpdatePrompt / SigUpdateWindow) and build
// the actual output during the redraw step.
func (c *Client) HandleVTEvent(ev vt.Event) {
	if ev.Error {
		return
	}
	switch ev.Seq.Class() {
	case vt.ClassCSI, vt.ClassCSIQ:
		c.handleCSI(ev)
	case vt.ClassEsc:
		// Bare ESC <byte> sequences carry no key bindings here.
	default:
		c.handleGlyph(ev.Glyph)
	}
}

func (c *Client) handleCSI(ev vt.Event) {
	switch ev.Seq.Final() {
	case '~':
		if ev.PC == 0 {
			return
		}
		switch ev.P[0] {
		case 1:
			c.Home()
		case 4:
			c.End()
		case 5:
			c.PageUp()
		case 6:
			c.PageDown()
		}
	case 'H':
		c.Home()
	case 'F':
		c.End()
	case 'R':
		if ev.PC >= 2 {
			c.CursorReportRow = ev.P[0]
			c.CursorReportCol = ev.P[1]
			c.Set(SigHasCursorPos)
		}
	}
}

func (c *Client) handleGlyph(g rune) {
	switch g {
	case ctrlP:
		c.HistoryUp()
		c.Set(SigUpdatePrompt)
	case ctrlN:
		c.HistoryDown()
		c.Set(SigUpdatePrompt)
	case ctrlA:
		c.CursorToStart()
		c.Set(SigUpdatePrompt)
	case ctrlE:
		c.CursorToEnd()
		c.Set(SigUpdatePrompt)
	case ctrlB:
		c.CursorLeft()
		c.Set(SigUpdatePrompt)
	case ctrlF:
		c.CursorRight()
		c.Set(SigUpdatePrompt)
	case ctrlW:
		c.KillWordBackward()
		c.Set(SigUpdatePrompt)
	case ctrlH, del:
		c.DeleteBackward()
		c.Set(SigUpdatePrompt)
	case ctrlK:
		c.KillToEnd()
		c.Set(SigUpdatePrompt)
	case ctrlL:
		c.Set(SigUpdateWindow)
	case ctrlM:
		c.commit()
	default:
		if g >= 0x20 && g <= 0x7E {
			c.InsertByte(byte(g))
			c.Set(SigUpdatePrompt)
		}
	}
}

func (c *Client) commit() {
	entry := string(c.Edit.Bytes())
	if entry != "" && c.Dispatch != nil {
		if c.Dispatch.Dispatch(c, c.Edit.Bytes()) {
			c.Set(SigHasCmd)
		}
	}
	c.PushHistory(entry)
	c.Edit.Reset()
	c.HistIdx = -1
	c.Set(SigUpdatePrompt)
}

// Home scrolls to the top of the backlog and stops following the live
// tail (spec: "Home: scroll to top of backlog (if enough lines), clear
// SCROLLING if applicable").
func (c *Client) Home() {
	if c.Scrollback == nil || c.Scrollback.Queue.Size() < c.visibleRows() {
		return
	}
	q := c.Scrollback.Queue
	rows := c.visibleRows()
	r := q.Head()
	for i := 1; i < rows; i++ {
		n := q.Next(r)
		if !n.Valid() {
			break
		}
		r = n
	}
	c.Bottom = r
	c.Clear(SigScrolling)
	c.Set(SigUpdateWindow)
}

// End resumes following the live tail.
func (c *Client) End() {
	if c.Scrollback == nil {
		return
	}
	c.Bottom = c.Scrollback.Queue.Tail()
	c.Set(SigScrolling)
	c.Set(SigUpdateWindow)
}

// PageUp walks Bottom back by (height - 3) lines. With fewer scrollback
// lines than the visible rows it does nothing.
func (c *Client) PageUp() {
	if c.Scrollback == nil {
		return
	}
	q := c.Scrollback.Queue
	if q.Size() < c.visibleRows() {
		return
	}
	r := c.Bottom
	if !r.Valid() {
		r = q.Tail()
	}
	for i := 0; i < c.pageRows(); i++ {
		p := q.Prev(r)
		if !p.Valid() {
			break
		}
		r = p
	}
	c.Bottom = r
	c.Clear(SigScrolling)
	c.Set(SigUpdateWindow)
}

// PageDown walks Bottom forward by (height - 3) lines; if it reaches the
// tail, resumes following it live.
func (c *Client) PageDown() {
	if c.Scrollback == nil {
		return
	}
	q := c.Scrollback.Queue
	r := c.Bottom
	if !r.Valid() {
		r = q.Head()
	}
	for i := 0; i < c.pageRows(); i++ {
		n := q.Next(r)
		if !n.Valid() {
			break
		}
		r = n
	}
	c.Bottom = r
	if r == q.Tail() {
		c.Set(SigScrolling)
	}
	c.Set(SigUpdateWindow)
}

func (c *Client) visibleRows() int {
	rows := c.Height - c.FooterHeight
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (c *Client) pageRows() int {
	rows := c.Height - 3
	if rows < 1 {
		rows = 1
	}
	return rows
}
