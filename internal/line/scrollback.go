package line

// Scrollback is the engine-global bounded history of captured stdout and
// stderr lines. Eviction policy: whenever Size() > MaxLines, lines are
// dropped from the head until the queue is within bound. Before any head
// line is freed, Evict calls the supplied fixup so that every consumer
// referencing it (a client's Bottom/Sending cursor) is advanced to the
// evicted line's successor first — see spec §3 "Scrollback" and §5's
// "no consumer holds a dangling line reference" guarantee.
type Scrollback struct {
	Arena    *Arena
	Queue    *Queue
	MaxLines int // 0 = unlimited
}

// NewScrollback returns an empty, arena-backed scrollback with the given
// soft line cap (0 = unlimited).
func NewScrollback(maxLines int) *Scrollback {
	a := NewArena()
	return &Scrollback{Arena: a, Queue: NewQueue(a), MaxLines: maxLines}
}

// Append adds a freshly-captured line to the tail of scrollback.
func (s *Scrollback) Append(data []byte, errStream bool, stampMs int64) Ref {
	return s.Arena.Add(s.Queue, data, errStream, stampMs)
}

// Evict drops lines from the head while Size() > MaxLines (skipped when
// MaxLines <= 0). onEvict is invoked with each victim's Ref before it is
// removed from the queue and freed, so callers can redirect any
// referencing cursors to the victim's successor.
func (s *Scrollback) Evict(onEvict func(victim Ref, successor Ref)) {
	if s.MaxLines <= 0 {
		return
	}
	for s.Queue.Size() > s.MaxLines {
		victim := s.Queue.Head()
		if !victim.Valid() {
			return
		}
		successor := s.Queue.Next(victim)
		if onEvict != nil {
			onEvict(victim, successor)
		}
		s.Queue.Remove(victim)
		s.Arena.Free(victim)
	}
}

// Clear forces a one-shot eviction down to a single line, matching the
// "mish backlog clear" built-in and the capture supervisor's
// CLEAR_BACKLOG request (spec §4.C9 step 7: "force max_lines = 1 for this
// iteration").
func (s *Scrollback) Clear(onEvict func(victim Ref, successor Ref)) {
	saved := s.MaxLines
	s.MaxLines = 1
	s.Evict(onEvict)
	s.MaxLines = saved
}
