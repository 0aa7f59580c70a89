package client

import (
	"unicode"
	"unicode/utf8"
)

// editLine is the client's in-progress command line. It is modeled on
// the original's mish_line_t (mish_priv_line.h), whose len/done fields
// carry the written length and a consumed cursor on the very same
// buffer, rather than on a bare byte slice with the caret tracked
// separately on Client: caret plays done's role here, and the invariant
// is the same one the wire-format lines carry, caret <= len(buf).
type editLine struct {
	buf   []byte
	caret int
}

// Bytes returns the line's current content.
func (e *editLine) Bytes() []byte { return e.buf }

// Len returns the number of bytes currently held.
func (e *editLine) Len() int { return len(e.buf) }

// Caret returns the cursor's byte offset into Bytes().
func (e *editLine) Caret() int { return e.caret }

// Reset empties the line and parks the caret at its start (spec's
// "clear the edit line" after commit).
func (e *editLine) Reset() {
	e.buf = e.buf[:0]
	e.caret = 0
}

// Load replaces the line's content, as when recalling a history entry,
// parking the caret at the end.
func (e *editLine) Load(s []byte) {
	e.buf = s
	e.caret = len(e.buf)
}

// Clone returns an independent copy, used to stash the in-progress line
// before a history recall overwrites it.
func (e *editLine) Clone() []byte {
	return append([]byte(nil), e.buf...)
}

// CursorLeft moves the caret left by one rune.
func (c *Client) CursorLeft() {
	e := &c.Edit
	if e.caret > 0 {
		_, size := utf8.DecodeLastRune(e.buf[:e.caret])
		e.caret -= size
	}
}

// CursorRight moves the caret right by one rune.
func (c *Client) CursorRight() {
	e := &c.Edit
	if e.caret < len(e.buf) {
		_, size := utf8.DecodeRune(e.buf[e.caret:])
		e.caret += size
	}
}

// CursorToStart moves the caret to the beginning of the edit line.
func (c *Client) CursorToStart() { c.Edit.caret = 0 }

// CursorToEnd moves the caret to the end of the edit line.
func (c *Client) CursorToEnd() { c.Edit.caret = len(c.Edit.buf) }

// CursorForwardWord moves the caret forward to the end of the next word.
func (c *Client) CursorForwardWord() {
	e := &c.Edit
	i := e.caret
	for i < len(e.buf) {
		r, size := utf8.DecodeRune(e.buf[i:])
		if isWordChar(r) {
			break
		}
		i += size
	}
	for i < len(e.buf) {
		r, size := utf8.DecodeRune(e.buf[i:])
		if !isWordChar(r) {
			break
		}
		i += size
	}
	e.caret = i
}

// CursorBackwardWord moves the caret backward to the start of the
// previous word.
func (c *Client) CursorBackwardWord() {
	e := &c.Edit
	i := e.caret
	for i > 0 {
		r, size := utf8.DecodeLastRune(e.buf[:i])
		if isWordChar(r) {
			break
		}
		i -= size
	}
	for i > 0 {
		r, size := utf8.DecodeLastRune(e.buf[:i])
		if !isWordChar(r) {
			break
		}
		i -= size
	}
	e.caret = i
}

// KillToEnd removes text from the caret to the end of the line (Ctrl-K).
func (c *Client) KillToEnd() {
	e := &c.Edit
	e.buf = e.buf[:e.caret]
}

// KillToStart removes text from the beginning of the line to the caret.
func (c *Client) KillToStart() {
	e := &c.Edit
	e.buf = append(e.buf[:0], e.buf[e.caret:]...)
	e.caret = 0
}

// KillWordBackward deletes the word behind the caret: trailing spaces
// first, then word characters (Ctrl-W). Returns the number of bytes
// removed, which the caller uses to emit the matching backspace/erase
// sequence.
func (c *Client) KillWordBackward() int {
	e := &c.Edit
	start := e.caret
	i := start
	for i > 0 {
		r, size := utf8.DecodeLastRune(e.buf[:i])
		if r != ' ' {
			break
		}
		i -= size
	}
	for i > 0 {
		r, size := utf8.DecodeLastRune(e.buf[:i])
		if !isWordChar(r) {
			break
		}
		i -= size
	}
	removed := start - i
	if removed == 0 {
		return 0
	}
	copy(e.buf[i:], e.buf[start:])
	e.buf = e.buf[:len(e.buf)-removed]
	e.caret = i
	return removed
}

// DeleteBackward removes the rune before the caret. Returns true if a
// character was deleted.
func (c *Client) DeleteBackward() bool {
	e := &c.Edit
	if e.caret <= 0 {
		return false
	}
	_, size := utf8.DecodeLastRune(e.buf[:e.caret])
	copy(e.buf[e.caret-size:], e.buf[e.caret:])
	e.buf = e.buf[:len(e.buf)-size]
	e.caret -= size
	return true
}

// InsertByte inserts a single byte at the caret and advances it.
func (c *Client) InsertByte(b byte) {
	e := &c.Edit
	e.buf = append(e.buf, 0)
	copy(e.buf[e.caret+1:], e.buf[e.caret:])
	e.buf[e.caret] = b
	e.caret++
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
