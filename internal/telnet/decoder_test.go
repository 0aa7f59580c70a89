package telnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func feed(d *Decoder, bs []byte) []Event {
	var evs []Event
	for _, b := range bs {
		evs = append(evs, d.Feed(b))
	}
	return evs
}

func TestPlainDataPassesThrough(t *testing.T) {
	d := New()
	evs := feed(d, []byte("hi"))
	require.True(t, evs[0].Pass)
	require.Equal(t, byte('h'), evs[0].Glyph)
	require.True(t, evs[1].Pass)
	require.Equal(t, byte('i'), evs[1].Glyph)
}

func TestEscapedIACYieldsSingleFF(t *testing.T) {
	d := New()
	evs := feed(d, []byte{IAC, IAC})
	var passed []Event
	for _, e := range evs {
		if e.Pass {
			passed = append(passed, e)
		}
	}
	require.Len(t, passed, 1)
	require.Equal(t, byte(0xFF), passed[0].Glyph)
}

func TestOptionNegotiationConsumed(t *testing.T) {
	d := New()
	evs := feed(d, []byte{IAC, WILL, OptEcho})
	var neg *Event
	for i := range evs {
		if evs[i].Negotiation {
			neg = &evs[i]
		}
		require.False(t, evs[i].Pass, "negotiation bytes must never pass through to VT")
	}
	require.NotNil(t, neg)
	require.Equal(t, NegWill, neg.NegAction)
	require.Equal(t, OptEcho, neg.NegOption)
}

// TestNAWSSubnegotiation is the literal scenario from spec §8 #4: IAC SB
// NAWS 0x00 0x50 0x00 0x18 IAC SE must yield w=80, h=24.
func TestNAWSSubnegotiation(t *testing.T) {
	d := New()
	input := []byte{IAC, SB, OptNAWS, 0x00, 0x50, 0x00, 0x18, IAC, SE}
	evs := feed(d, input)

	var found *Event
	for i := range evs {
		if evs[i].WindowUpdated {
			found = &evs[i]
		}
	}
	require.NotNil(t, found, "expected a WindowUpdated event")
	require.Equal(t, 80, found.Width)
	require.Equal(t, 24, found.Height)
}

func TestUnknownSubnegotiationConsumedSilently(t *testing.T) {
	d := New()
	input := []byte{IAC, SB, 99, 1, 2, 3, IAC, SE}
	evs := feed(d, input)
	for _, e := range evs {
		require.False(t, e.WindowUpdated)
		require.False(t, e.Pass)
	}
}

func TestEscapeIACRoundTrip(t *testing.T) {
	data := []byte{1, IAC, 2, IAC, IAC, 3}
	escaped := EscapeIAC(data)

	d := New()
	var out []byte
	for _, b := range escaped {
		if ev := d.Feed(b); ev.Pass {
			out = append(out, ev.Glyph)
		}
	}
	require.Equal(t, data, out)
}

func TestNegotiateSequence(t *testing.T) {
	seq := Negotiate()
	require.Equal(t, []byte{
		IAC, DO, OptEcho,
		IAC, DO, OptNAWS,
		IAC, WILL, OptEcho,
		IAC, WILL, OptSGA,
	}, seq)
}
