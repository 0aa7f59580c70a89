package client

import (
	"time"

	"mish/internal/line"
	"mish/internal/telnet"

	"github.com/muesli/termenv"
)

var (
	// errPrefix reproduces MISH_COLOR_RED ("\033[38;5;125m") byte for
	// byte: the 256-color profile's index 125, not the basic 8-color
	// red SGR code.
	errPrefix = []byte(termenv.CSI + termenv.ANSI256.Color("125").Sequence(false) + "m")
	errSuffix = []byte(termenv.CSI + "0m")
)

// ReportError queues msg, colored like a captured stderr line, on c's own
// send buffer — the "reported in red on the originating stream" policy
// for unknown/malformed commands (spec §7). It never touches scrollback,
// so other clients never see another client's command errors.
func (c *Client) ReportError(msg string) {
	c.Send.AppendLiteral(errPrefix)
	c.Send.AppendFormat("%s\n", msg)
	c.Send.AppendLiteral(errSuffix)
}

// IsDumb reports whether the window-size probe timed out and this client
// fell back to the dumb (non-interactive) scrollback variant.
func (c *Client) IsDumb() bool { return c.dumb }

// Step resumes the coroutine from wherever it last suspended. now is used
// to time the window-size probe and must be supplied by the caller
// (spec §4.C9's capture supervisor loop) rather than read from the clock
// in here, keeping the coroutine itself trivially testable.
func (c *Client) Step(now time.Time) {
	switch c.state {
	case StateNegotiate:
		c.stepNegotiate(now)
	case StateProbeWindow:
		c.stepProbeWindow(now)
	case StateRedrawEntry:
		c.stepRedrawEntry()
	case StateMain:
		c.stepMain()
	}
}

func (c *Client) stepNegotiate(now time.Time) {
	if c.IsTelnet && c.TelnetDec != nil {
		c.Send.AppendLiteral(telnet.Negotiate())
	}
	// ESC[999;999H parks the cursor far right/down; ESC[6n asks for a
	// cursor position report, used as the window-size probe.
	c.Send.AppendLiteral([]byte("\x1b[999;999H\x1b[6n"))
	c.probeDeadline = now.Add(windowProbeTimeout)
	c.state = StateProbeWindow
}

func (c *Client) stepProbeWindow(now time.Time) {
	switch {
	case c.Has(SigHasWindowSize):
		c.Clear(SigHasWindowSize)
		c.enterRedraw()
	case c.Has(SigHasCursorPos):
		c.Clear(SigHasCursorPos)
		if c.Width == 0 {
			c.Width = c.CursorReportCol
		}
		if c.Height == 0 {
			c.Height = c.CursorReportRow
		}
		c.enterRedraw()
	case now.After(c.probeDeadline):
		c.dumb = true
		if c.Width == 0 {
			c.Width = 80
		}
		if c.Height == 0 {
			c.Height = 24
		}
		c.enterRedraw()
	}
}

func (c *Client) enterRedraw() {
	c.Set(SigScrolling)
	if c.Scrollback != nil {
		c.Bottom = c.Scrollback.Queue.Tail()
	}
	c.state = StateRedrawEntry
}

func (c *Client) stepRedrawEntry() {
	c.Set(SigUpdatePrompt)
	c.computeSending()
	if !c.dumb {
		region := c.Height - c.FooterHeight
		if region < 1 {
			region = 1
		}
		c.Send.AppendLiteral([]byte("\x1bD"))
		c.Send.AppendFormat("\x1b[1;%dr", region)
		c.Send.AppendLiteral([]byte("\x1b[H\x1b[J"))
	}
	c.state = StateMain
}

// computeSending walks backward from Bottom to the top of the visible
// window (or the top of scrollback) to find the first line that should
// be (re)painted.
func (c *Client) computeSending() {
	if c.Scrollback == nil || !c.Bottom.Valid() {
		c.Sending = line.NilRef
		return
	}
	q := c.Scrollback.Queue
	r := c.Bottom
	rows := c.visibleRows()
	for i := 1; i < rows; i++ {
		p := q.Prev(r)
		if !p.Valid() {
			break
		}
		r = p
	}
	c.Sending = r
}

func (c *Client) stepMain() {
	if c.Has(SigUpdateWindow) {
		c.Clear(SigUpdateWindow)
		c.state = StateRedrawEntry
		return
	}
	if c.Has(SigUpdatePrompt) {
		c.Clear(SigUpdatePrompt)
		c.emitPrompt()
	}
	if !c.Send.Empty() {
		return // suspend until the supervisor reports write readiness
	}
	c.advanceSending()
}

func (c *Client) emitPrompt() {
	if c.dumb {
		return
	}
	footerRow := c.Height - c.FooterHeight + 1
	c.Send.AppendFormat("\x1b[%d;1H", footerRow)
	c.Send.AppendLiteral([]byte(c.Prompt))
	c.promptGlyph = len([]rune(c.Prompt))
	c.Send.AppendLiteral([]byte("\x1b[K\x1b[4h"))
	if c.Edit.Len() > 0 {
		c.Send.AppendLiteral(c.Edit.Bytes())
		if c.Edit.Caret() < c.Edit.Len() {
			back := c.Edit.Len() - c.Edit.Caret()
			c.Send.AppendFormat("\x1b[%dD", back)
		}
	}
}

// advanceSending appends up to one screenful (visibleRows) of scrollback
// lines starting at Sending (stderr lines wrapped in a red SGR pair),
// records the last line appended as Bottom, and leaves Sending at the
// next line still to send. Once the tail has been sent Sending is NilRef
// and the next call resumes after Bottom, so the tail is followed live.
// Nothing is sent while SigScrolling is clear.
func (c *Client) advanceSending() {
	if c.Scrollback == nil || !c.Has(SigScrolling) {
		return
	}
	q := c.Scrollback.Queue
	arena := c.Scrollback.Arena
	r := c.Sending
	if !r.Valid() {
		if c.Bottom.Valid() {
			r = q.Next(c.Bottom)
		} else {
			r = q.Head()
		}
	}
	if !r.Valid() {
		return
	}
	if !c.dumb {
		c.Send.AppendLiteral([]byte("\x1b[s"))
	}
	budget := c.visibleRows()
	for r.Valid() && budget > 0 {
		l := arena.Get(r)
		if l == nil {
			break
		}
		if l.Err() {
			c.Send.AppendLiteral(errPrefix)
			c.Send.AppendLine(r, 0, l.Len())
			c.Send.AppendLiteral(errSuffix)
		} else {
			c.Send.AppendLine(r, 0, l.Len())
		}
		c.Bottom = r
		next := q.Next(r)
		if !next.Valid() {
			r = line.NilRef
			break
		}
		r = next
		budget--
	}
	c.Sending = r
	if !c.dumb {
		c.Send.AppendLiteral([]byte("\x1b[u"))
	}
}

