// Package client implements one attached session's coroutine (spec
// §4.C6), its emacs-style line editor and key dispatch (§4.C7), and the
// per-client record described in §3 ("Client"). A Client is a stackless
// coroutine: every piece of state that must survive a suspension point
// lives on the struct itself, never in a local variable of Step.
package client

import (
	"time"

	"mish/internal/line"
	"mish/internal/reader"
	"mish/internal/sendbuf"
	"mish/internal/telnet"
	"mish/internal/vt"

	"github.com/google/uuid"
)

// Signal is the client's bitset of pending conditions, mirroring the
// spec's INIT_SENT/HAS_WINDOW_SIZE/... flags.
type Signal uint32

const (
	SigInitSent Signal = 1 << iota
	SigHasWindowSize
	SigHasCursorPos
	SigUpdatePrompt
	SigUpdateWindow
	SigScrolling
	SigHasCmd
	SigDelete
)

// Set, Clear and Has are the only ways callers touch the signal bitset,
// so every transition stays grep-able.
func (c *Client) Set(s Signal)      { c.signals |= s }
func (c *Client) Clear(s Signal)    { c.signals &^= s }
func (c *Client) Has(s Signal) bool { return c.signals&s != 0 }

// State is the coroutine's current suspension point.
type State int

const (
	StateNegotiate State = iota
	StateProbeWindow
	StateRedrawEntry
	StateMain
)

// Dispatcher commits an edit line to the command registry (C8). Client
// depends only on this interface, not on package command, so that
// command (which needs *Client as a CLIENT_CMD_KIND parameter) can
// depend on client without an import cycle.
type Dispatcher interface {
	// Dispatch parses and runs line on behalf of c. async is true when
	// the command was queued rather than run synchronously (the caller
	// then sets SigHasCmd; a safe command waits for PollSafeCommands, an
	// unsafe one runs on the command-runner goroutine).
	Dispatch(c *Client, line []byte) (async bool)
}

// windowProbeTimeout bounds how long the coroutine waits for a CPR or
// NAWS response before downgrading to the dumb variant (spec §4.C6
// step 3).
const windowProbeTimeout = 2 * time.Second

const defaultPrompt = ">>: "

// Client is one attached session: the original console terminal, or one
// telnet connection.
type Client struct {
	InputFD, OutputFD int
	IsTelnet          bool
	Console           bool // the original terminal; refuses "disconnect"

	SessionID   uuid.UUID
	ConnectedAt time.Time

	VT        *vt.Decoder
	TelnetDec *telnet.Decoder // nil unless IsTelnet
	Send      *sendbuf.Buffer

	Scrollback *line.Scrollback
	Dispatch   Dispatcher

	// Edit is the current edit line (spec's "current edit line (C1)"),
	// shaped after mish_line_t's len/done split rather than a plain byte
	// slice with an out-of-band cursor variable (see editLine).
	Edit    editLine
	History []string
	HistIdx int
	Saved   []byte

	Width, Height int
	FooterHeight  int

	CursorReportRow, CursorReportCol int

	Bottom  line.Ref
	Sending line.Ref

	Prompt      string
	promptGlyph int

	signals Signal
	state   State
	dumb    bool

	probeDeadline time.Time

	inputDrain *reader.Reader
}

// New returns a client ready to begin its coroutine at StateNegotiate.
// The send buffer's composition line is allocated from sb's own arena —
// the same single arena backs scrollback lines and every client's
// composition line, so a send buffer can reference a scrollback line
// zero-copy (spec §4.C5/§5) and so eviction fixups that rewrite a
// client's Bottom/Sending Refs are acting on slots of the one arena that
// owns them.
func New(inputFD, outputFD int, isTelnet, console bool, sb *line.Scrollback, dispatch Dispatcher) *Client {
	c := &Client{
		InputFD:     inputFD,
		OutputFD:    outputFD,
		IsTelnet:    isTelnet,
		Console:     console,
		SessionID:   uuid.New(),
		ConnectedAt: time.Now(),
		VT:          vt.New(),
		Send:        sendbuf.New(sb.Arena),
		Scrollback:  sb,
		Dispatch:    dispatch,
		HistIdx:     -1,
		FooterHeight: 2,
		Prompt:      defaultPrompt,
		Bottom:      line.NilRef,
		Sending:     line.NilRef,
		state:       StateNegotiate,
	}
	if isTelnet {
		c.TelnetDec = telnet.New()
	}
	c.inputDrain = newInputDrain(c)
	return c
}
