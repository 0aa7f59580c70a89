// Package reader implements the non-blocking descriptor drain described in
// spec §4.C4: read a captured descriptor until EAGAIN, EOF, or error,
// classify each freshly-read byte, and accumulate classified bytes into a
// line-store working line, splitting it into a backlog queue on request.
package reader

import (
	"mish/internal/line"

	"golang.org/x/sys/unix"
)

// Classification is the per-byte verdict a Classifier returns.
type Classification int

const (
	// Store appends the byte to the working line.
	Store Classification = iota
	// Skip drops the byte entirely; it never reaches the line store.
	Skip
	// Split appends the byte to the working line, then finishes that line
	// (detaching it into the backlog queue) and starts a fresh working
	// line.
	Split
)

// Classifier decides the fate of one freshly-read byte. Reader makes no
// assumption about what bytes trigger a split; a plain line-oriented
// capture splits on '\n', but a client's raw VT/telnet stream may never
// split explicitly, relying only on MaxLineSize-driven splits.
type Classifier func(b byte) Classification

// Lines is a Classifier that splits after every '\n', storing all other
// bytes including '\r'. Suitable for the stdout/stderr capture streams.
func Lines(b byte) Classification {
	if b == '\n' {
		return Split
	}
	return Store
}

const readChunkSize = 4096

// Reader drains one descriptor's bytes into a single working line, backed
// by a shared Arena, pushing finished lines onto a backlog Queue for the
// capture supervisor to later merge into scrollback. It invokes no
// syscalls of its own beyond unix.Read; readiness must already have been
// established by the caller (spec §4.C9's select/poll loop).
type Reader struct {
	arena     *line.Arena
	backlog   *line.Queue
	working   line.Ref
	errStream bool
	classify  Classifier
	buf       []byte
}

// New returns a reader with a fresh empty working line, ready to drain a
// descriptor tagged errStream (true for stderr, false for stdout) and
// classify its bytes with classify.
func New(arena *line.Arena, backlog *line.Queue, errStream bool, classify Classifier) *Reader {
	return &Reader{
		arena:     arena,
		backlog:   backlog,
		working:   arena.Alloc(),
		errStream: errStream,
		classify:  classify,
		buf:       make([]byte, readChunkSize),
	}
}

// Working returns the Ref of the in-progress, not-yet-queued line — the
// live tail a renderer may want to show before it's finished.
func (r *Reader) Working() line.Ref { return r.working }

// Drain reads fd repeatedly until EAGAIN, EOF (closed=true), or a non-
// recoverable error. stampMs stamps any line that starts during this
// call; a line that finishes keeps the stamp from when it started. No
// byte is ever dropped unless classify returns Skip.
func (r *Reader) Drain(fd int, stampMs int64) (closed bool, err error) {
	for {
		n, e := unix.Read(fd, r.buf)
		if e != nil {
			if e == unix.EAGAIN || e == unix.EWOULDBLOCK {
				return false, nil
			}
			return false, e
		}
		if n == 0 {
			return true, nil
		}
		for _, b := range r.buf[:n] {
			r.feed(b, stampMs)
		}
	}
}

func (r *Reader) feed(b byte, stampMs int64) {
	switch r.classify(b) {
	case Skip:
		return
	case Split:
		r.store(b, stampMs)
		r.flush(stampMs)
	default:
		r.store(b, stampMs)
	}
}

func (r *Reader) store(b byte, stampMs int64) {
	r.stampIfFresh(stampMs)
	if err := r.arena.Append(r.working, []byte{b}); err == line.ErrSplitRequired {
		r.flush(stampMs)
		r.stampIfFresh(stampMs)
		_ = r.arena.Append(r.working, []byte{b})
	}
}

// stampIfFresh marks the working line's creation timestamp and stream
// origin the moment it takes its first byte.
func (r *Reader) stampIfFresh(stampMs int64) {
	l := r.arena.Get(r.working)
	if l != nil && l.Len() == 0 {
		l.SetStamp(stampMs)
		l.SetErrStream(r.errStream)
	}
}

// flush detaches the working line's current content onto the backlog
// queue and resets the working line in place for further accumulation.
func (r *Reader) flush(stampMs int64) {
	r.arena.Split(r.backlog, r.working, stampMs)
}
