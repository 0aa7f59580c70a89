package client

import (
	"time"

	"mish/internal/line"
	"mish/internal/reader"
)

// newInputDrain returns a reader.Reader dedicated to this client's input
// descriptor. Its classifier never stores a byte in the line store —
// every byte is consumed immediately as a side effect (telnet/VT decode,
// then key dispatch) and the classifier always returns Skip — so the
// reader's own backlog queue is wired to a private, never-drained arena
// rather than the engine's shared one.
func newInputDrain(c *Client) *reader.Reader {
	arena := line.NewArena()
	backlog := line.NewQueue(arena)
	return reader.New(arena, backlog, false, func(b byte) reader.Classification {
		c.feedInputByte(b)
		return reader.Skip
	})
}

func (c *Client) feedInputByte(b byte) {
	if c.IsTelnet && c.TelnetDec != nil {
		ev := c.TelnetDec.Feed(b)
		if ev.Negotiation {
			return
		}
		if ev.WindowUpdated {
			c.Width = ev.Width
			c.Height = ev.Height
			c.Set(SigHasWindowSize)
			c.Set(SigUpdateWindow)
			return
		}
		if !ev.Pass {
			return
		}
		b = ev.Glyph
	}
	if ev := c.VT.Feed(b); ev.Done {
		c.HandleVTEvent(ev)
	}
}

// DrainInput reads every currently available byte from the client's
// input descriptor, decoding and dispatching each one. closed reports
// EOF on the descriptor (the capture supervisor reaps the client).
func (c *Client) DrainInput(now time.Time) (closed bool, err error) {
	return c.inputDrain.Drain(c.InputFD, now.UnixMilli())
}
