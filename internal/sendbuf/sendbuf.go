// Package sendbuf implements the per-client scatter/gather output buffer
// described in spec §4.C5: small formatted strings and zero-copy
// references into existing line-store lines share one vector, flushed
// with a single vectored write per readiness notification.
//
// In C, late-binding the inline segments' base addresses at first flush
// is necessary because the composition buffer may have been reallocated
// since those segments were appended. Go slices make that reallocation
// safe automatically — an index recorded before a reallocation still
// names the same logical byte after it — so mish's "lock" step exists
// for the same conceptual reason (freeze the vector against further
// appends mid-flush) without needing any address patching.
package sendbuf

import (
	"fmt"

	"mish/internal/line"

	"golang.org/x/sys/unix"
)

type segKind int

const (
	segInline segKind = iota
	segRef
)

// segment names a byte range within some line (the shared inline
// composition line, or an arbitrary — typically scrollback — line
// referenced zero-copy).
type segment struct {
	kind        segKind
	ref         line.Ref
	start, size int
}

// Buffer is one client's outbound scatter/gather queue. Not safe for
// concurrent use; each client's coroutine owns exactly one.
type Buffer struct {
	arena       *line.Arena
	composition line.Ref
	compLen     int // bytes currently appended to composition, pre-lock
	lastInline  bool

	segments []segment

	locked        bool
	writeInterest bool

	segOff int // bytes already consumed from segments[0] during this flush
}

// New returns an empty send buffer backed by arena.
func New(arena *line.Arena) *Buffer {
	return &Buffer{arena: arena, composition: line.NilRef}
}

// NeedsWrite reports whether the capture supervisor should keep polling
// this client's output descriptor for write readiness.
func (b *Buffer) NeedsWrite() bool { return b.writeInterest }

// Empty reports whether the vector is fully drained.
func (b *Buffer) Empty() bool { return len(b.segments) == 0 }

// AppendLiteral queues p for output, copying it into the shared inline
// composition line. Successive inline appends coalesce into one vector
// entry, matching spec §4.C5. An append made while the buffer is locked
// (a flush is in progress) is dropped — callers observing Empty() before
// building new output never hit this.
func (b *Buffer) AppendLiteral(p []byte) {
	if len(p) == 0 {
		return
	}
	if b.locked {
		return
	}
	if !b.composition.Valid() {
		b.composition = b.arena.Alloc()
	}
	_ = b.arena.Append(b.composition, p)
	start := b.compLen
	b.compLen += len(p)
	if b.lastInline && len(b.segments) > 0 {
		b.segments[len(b.segments)-1].size += len(p)
		return
	}
	b.segments = append(b.segments, segment{kind: segInline, ref: b.composition, start: start, size: len(p)})
	b.lastInline = true
}

// AppendFormat is AppendLiteral(fmt.Sprintf(...)).
func (b *Buffer) AppendFormat(format string, args ...any) {
	b.AppendLiteral([]byte(fmt.Sprintf(format, args...)))
}

// AppendLine queues a zero-copy reference into ref's buffer, byte range
// [start, start+size). The referenced line must outlive the segment —
// callers forwarding scrollback lines rely on the capture supervisor
// never evicting a line a client is still sending (spec §5).
func (b *Buffer) AppendLine(ref line.Ref, start, size int) {
	if size <= 0 || b.locked {
		return
	}
	b.segments = append(b.segments, segment{kind: segRef, ref: ref, start: start, size: size})
	b.lastInline = false
}

func (b *Buffer) resolve(s segment) []byte {
	l := b.arena.Get(s.ref)
	if l == nil {
		return nil
	}
	buf := l.Bytes()
	end := s.start + s.size
	if end > len(buf) {
		end = len(buf)
	}
	if s.start >= end {
		return nil
	}
	return buf[s.start:end]
}

// Flush attempts one vectored write to fd. It assumes the caller has
// already established write readiness (the capture supervisor's
// readiness loop, spec §4.C9). Returns drained=true once every queued
// segment has been fully written, at which point the composition line
// is cleared and write interest dropped. On EAGAIN it records write
// interest and returns drained=false, err=nil. Any other error also
// drops write interest — the capture supervisor is expected to reap the
// client.
func (b *Buffer) Flush(fd int) (drained bool, err error) {
	if len(b.segments) == 0 {
		b.writeInterest = false
		return true, nil
	}
	b.locked = true

	iovs := make([][]byte, 0, len(b.segments))
	first := b.resolve(b.segments[0])
	if b.segOff <= len(first) {
		iovs = append(iovs, first[b.segOff:])
	}
	for _, s := range b.segments[1:] {
		iovs = append(iovs, b.resolve(s))
	}

	n, werr := unix.Writev(fd, iovs)
	if werr != nil {
		if werr == unix.EAGAIN || werr == unix.EWOULDBLOCK {
			b.writeInterest = true
			return false, nil
		}
		b.writeInterest = false
		return false, werr
	}
	b.advance(n)

	if len(b.segments) == 0 {
		b.unlockAndClear()
		return true, nil
	}
	b.writeInterest = true
	return false, nil
}

// advance consumes n bytes from the front of the vector, dropping any
// segment fully written and leaving segOff positioned within the new
// front segment.
func (b *Buffer) advance(n int) {
	remaining := n
	for remaining > 0 && len(b.segments) > 0 {
		s := b.segments[0]
		avail := s.size - b.segOff
		if remaining < avail {
			b.segOff += remaining
			return
		}
		remaining -= avail
		b.segOff = 0
		b.segments = b.segments[1:]
	}
}

func (b *Buffer) unlockAndClear() {
	b.locked = false
	b.writeInterest = false
	b.segOff = 0
	b.lastInline = false
	b.compLen = 0
	if b.composition.Valid() {
		b.arena.Truncate(b.composition)
	}
}
