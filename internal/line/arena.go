package line

// arenaSlot wraps a Line with the bookkeeping needed to detect stale Refs
// and to recycle freed slots.
type arenaSlot struct {
	line Line
	gen  int32
	free bool
}

// Arena is the single owner of every Line record. It is not safe for
// concurrent use: per §5 of the spec, the capture thread is the sole
// mutator of the line store, scrollback queue, and client state.
type Arena struct {
	slots    []arenaSlot
	freeList []int32
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Alloc reserves a fresh, empty Line and returns its Ref.
func (a *Arena) Alloc() Ref {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		s := &a.slots[idx]
		s.free = false
		s.line = Line{prev: NilRef, next: NilRef}
		return Ref{idx: idx, gen: s.gen}
	}
	idx := int32(len(a.slots))
	a.slots = append(a.slots, arenaSlot{gen: 1, line: Line{prev: NilRef, next: NilRef}})
	return Ref{idx: idx, gen: 1}
}

// Get resolves a Ref to its Line, or nil if the reference is invalid or
// stale (the slot was freed and possibly recycled under a new
// generation).
func (a *Arena) Get(r Ref) *Line {
	if !r.Valid() || int(r.idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[r.idx]
	if s.free || s.gen != r.gen {
		return nil
	}
	return &s.line
}

// Free releases a line's slot back to the arena. The caller must have
// already removed it from any queue; Free does not touch linkage.
func (a *Arena) Free(r Ref) {
	if !r.Valid() || int(r.idx) >= len(a.slots) {
		return
	}
	s := &a.slots[r.idx]
	if s.free || s.gen != r.gen {
		return
	}
	s.free = true
	s.gen++
	s.line = Line{}
	a.freeList = append(a.freeList, r.idx)
}

// Reserve ensures the line referenced by r has at least `count` spare
// bytes beyond its current length, growing in minGrowth-sized steps.
// It returns ErrSplitRequired, without mutating the line, when growth
// would push the buffer past MaxLineSize; the caller must Split first.
func (a *Arena) Reserve(r Ref, count int) error {
	l := a.Get(r)
	if l == nil {
		return nil
	}
	need := len(l.buf) + count
	if need > MaxLineSize {
		return ErrSplitRequired
	}
	if cap(l.buf) >= need {
		return nil
	}
	grow := cap(l.buf) + minGrowth
	if grow < need {
		grow = need
	}
	if grow > MaxLineSize {
		grow = MaxLineSize
	}
	nb := make([]byte, len(l.buf), grow)
	copy(nb, l.buf)
	l.buf = nb
	return nil
}

// Append writes p onto the line referenced by r, growing it first via
// Reserve. It returns ErrSplitRequired (without writing anything) if the
// append would cross MaxLineSize.
func (a *Arena) Append(r Ref, p []byte) error {
	if err := a.Reserve(r, len(p)); err != nil {
		return err
	}
	l := a.Get(r)
	l.buf = append(l.buf, p...)
	return nil
}

// Add allocates a fresh, tightly-sized line, copies data into it, stamps
// it, and appends it to the queue's tail.
func (a *Arena) Add(q *Queue, data []byte, errStream bool, stampMs int64) Ref {
	r := a.Alloc()
	l := a.Get(r)
	l.buf = append(make([]byte, 0, len(data)), data...)
	l.errStream = errStream
	l.stamp = stampMs
	q.PushTail(r)
	return r
}

// Truncate resets a line's buffer to empty while keeping its backing
// capacity, for callers (such as the send buffer's inline composition
// line) that reuse the same Ref across many fill/drain cycles instead of
// allocating a fresh one each time.
func (a *Arena) Truncate(r Ref) {
	if l := a.Get(r); l != nil {
		l.buf = l.buf[:0]
		l.doneN = 0
	}
}

// Split detaches the current content of the working line into the queue
// as a finished line, then resets the working line in place (same Ref,
// empty buffer, fresh stamp). It returns the Ref of the detached,
// now-queued line.
func (a *Arena) Split(q *Queue, working Ref, stampMs int64) Ref {
	l := a.Get(working)
	detached := a.Alloc()
	dl := a.Get(detached)
	dl.buf = l.buf
	dl.doneN = l.doneN
	dl.errStream = l.errStream
	dl.stamp = l.stamp
	q.PushTail(detached)

	l.buf = nil
	l.doneN = 0
	l.stamp = stampMs
	return detached
}
