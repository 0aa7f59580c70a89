// Package line implements the heap-allocated variable-length line records
// and intrusive doubly-linked queues shared by the capture path, the send
// buffer, and the bounded scrollback evictor.
//
// Lines live in an Arena and are referenced by Ref, an arena-relative
// handle with a generation counter. This follows the approach sketched in
// the design notes for intrusive, zero-copy queues: rather than raw
// pointers shared across queues and vectors, consumers hold an index that
// eviction can invalidate explicitly.
package line

import "errors"

// MaxLineSize is the hard ceiling on a single line's buffer. Lines that
// would grow past it must be split instead.
const MaxLineSize = 65535

// minGrowth is the minimum number of bytes a Reserve grows a line by, to
// avoid quadratic reallocation on byte-at-a-time appends.
const minGrowth = 40

// ErrSplitRequired is returned by Reserve when growing the line past
// MaxLineSize would violate the size invariant. The caller must detach
// the current content with Split before it can keep appending.
var ErrSplitRequired = errors.New("line: split required")

// Ref is an arena-relative handle to a Line. The zero value is not a
// valid reference; use NilRef for "no line".
type Ref struct {
	idx int32
	gen int32
}

// NilRef is the invalid/absent reference.
var NilRef = Ref{idx: -1}

// Valid reports whether r refers to a slot at all (it may still be stale;
// Arena.Get returns nil for a stale generation).
func (r Ref) Valid() bool { return r.idx >= 0 }

// Line is a contiguous byte buffer participating in at most one intrusive
// queue at a time. Invariant: done <= len(buf) <= cap(buf) <= MaxLineSize.
type Line struct {
	buf       []byte
	doneN     int
	errStream bool
	stamp     int64
	use       int32
	drawStamp int64

	prev, next Ref
}

// Len is the number of bytes written (the spec's `len`).
func (l *Line) Len() int { return len(l.buf) }

// Size is the buffer's capacity (the spec's `size`).
func (l *Line) Size() int { return cap(l.buf) }

// Done is the cursor/consumed position.
func (l *Line) Done() int { return l.doneN }

// SetDone advances the consumed cursor; it is the caller's responsibility
// to keep Done <= Len.
func (l *Line) SetDone(n int) { l.doneN = n }

// Err reports whether this line was produced on the stderr stream.
func (l *Line) Err() bool { return l.errStream }

// SetErrStream marks the stream a line was captured from. Set once, when
// a working line takes its first byte.
func (l *Line) SetErrStream(v bool) { l.errStream = v }

// Stamp is the millisecond creation timestamp.
func (l *Line) Stamp() int64 { return l.stamp }

// SetStamp sets the creation timestamp. Set once, when a working line
// takes its first byte.
func (l *Line) SetStamp(v int64) { l.stamp = v }

// Use and DrawStamp are reserved reference counters, carried for forward
// compatibility with renderers that need to track per-line redraw state;
// the engine itself does not interpret them.
func (l *Line) Use() int32         { return l.use }
func (l *Line) SetUse(n int32)     { l.use = n }
func (l *Line) DrawStamp() int64   { return l.drawStamp }
func (l *Line) SetDrawStamp(n int64) { l.drawStamp = n }

// Bytes returns the line's written content.
func (l *Line) Bytes() []byte { return l.buf }

// Remaining returns the unconsumed suffix (from Done to Len).
func (l *Line) Remaining() []byte { return l.buf[l.doneN:] }
