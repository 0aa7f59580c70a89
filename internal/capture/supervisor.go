// Package capture implements the dedicated capture goroutine described in
// spec §4.C9: the sole mutator of the client list, the scrollback, and
// every client's readiness-derived state. Nothing outside this package
// may append to Scrollback, add or remove a Client, or call a Client's
// Step/DrainInput directly while the supervisor owns it.
package capture

import (
	"time"

	"mish/internal/client"
	"mish/internal/line"
	"mish/internal/reader"

	"golang.org/x/sys/unix"
)

// selectTimeout bounds how long one iteration blocks waiting for any
// captured or client descriptor to become readable (spec §4.C9 step 2).
const selectTimeout = time.Second

// Supervisor runs the capture thread's loop: step every client's
// coroutine, wait for readiness, accept new telnet sessions, drain
// stdout/stderr into scrollback, drain client input, reap dead clients,
// and enforce the scrollback's line cap.
type Supervisor struct {
	Scrollback *line.Scrollback
	Dispatcher client.Dispatcher

	stdoutFD int
	stderrFD int
	stdout   *reader.Reader
	stderr   *reader.Reader

	stdoutBacklog *line.Queue
	stderrBacklog *line.Queue

	// ListenFD is the telnet listen socket's file descriptor, or -1 if
	// telnet is disabled (spec's MISH_OFF / capability-flag gating,
	// applied by bootstrap before the supervisor starts).
	ListenFD int

	// ListenPort is the bound telnet port, for the "mish" status dump
	// only (set by bootstrap; 0 when telnet is disabled).
	ListenPort int

	clients []*client.Client

	quit         bool
	clearBacklog bool
}

// New returns a supervisor ready to capture stdoutFD/stderrFD into sb and
// accept telnet connections on listenFD (-1 to disable telnet). Both
// reader instances are built on sb's own arena so that merging a
// finished line into scrollback (mergeBacklog) is a pure relink, never a
// copy.
func New(sb *line.Scrollback, stdoutFD, stderrFD, listenFD int, dispatcher client.Dispatcher) *Supervisor {
	s := &Supervisor{
		Scrollback: sb,
		Dispatcher: dispatcher,
		stdoutFD:   stdoutFD,
		stderrFD:   stderrFD,
		ListenFD:   listenFD,
	}
	s.stdoutBacklog = line.NewQueue(sb.Arena)
	s.stderrBacklog = line.NewQueue(sb.Arena)
	s.stdout = reader.New(sb.Arena, s.stdoutBacklog, false, reader.Lines)
	s.stderr = reader.New(sb.Arena, s.stderrBacklog, true, reader.Lines)
	return s
}

// AddClient installs c under the supervisor's management. Called by
// bootstrap for the console client, and by the supervisor itself when
// accepting a telnet connection.
func (s *Supervisor) AddClient(c *client.Client) {
	s.clients = append(s.clients, c)
}

// Clients returns the live client list. The returned slice must not be
// retained across an iteration: the supervisor may reorder or shrink its
// backing array on reap.
func (s *Supervisor) Clients() []*client.Client { return s.clients }

// The following methods plus Clients satisfy command.EngineHooks, so
// bootstrap can bind the supervisor itself as the KindEngine parameter
// with no extra adapter type.

// RequestQuit asks the supervisor to exit its Run loop after the current
// iteration finishes (the "q"/"quit" built-in).
func (s *Supervisor) RequestQuit() { s.quit = true }

// TelnetPort reports the bound telnet port for the "mish" status dump,
// or 0 if telnet is disabled.
func (s *Supervisor) TelnetPort() int { return s.ListenPort }

// BacklogMaxLines reports the scrollback's current soft cap.
func (s *Supervisor) BacklogMaxLines() int { return s.Scrollback.MaxLines }

// SetBacklogMaxLines changes the scrollback's soft cap; the new cap is
// enforced on the next iteration's enforceBacklogCap.
func (s *Supervisor) SetBacklogMaxLines(n int) { s.Scrollback.MaxLines = n }

// ClearBacklog requests a one-shot truncation to a single line on the
// next iteration (spec §4.C9 step 7, "force max_lines = 1").
func (s *Supervisor) ClearBacklog() { s.clearBacklog = true }

// Run executes the capture loop until RequestQuit is called (directly,
// or via the registered "q"/"quit" command). It returns once the final
// iteration's teardown-relevant bookkeeping is done; closing descriptors
// and restoring the terminal is bootstrap's job (C10), not the
// supervisor's.
func (s *Supervisor) Run() {
	for !s.quit {
		s.Tick(time.Now())
	}
}

// Tick runs exactly one iteration of the capture loop (spec §4.C9's
// seven numbered steps), exported so tests can drive the supervisor
// deterministically without relying on Run's timing.
func (s *Supervisor) Tick(now time.Time) {
	for _, c := range s.clients {
		c.Step(now)
	}
	s.flushClients()

	s.waitForReadiness()

	s.acceptTelnet()
	s.drainCaptured(now)
	s.drainClients(now)
	s.reapClients()
	s.enforceBacklogCap()
}

// waitForReadiness blocks (up to selectTimeout) until any captured
// descriptor, client input descriptor, or the telnet listen socket has
// data or a pending connection — or until a client's send buffer wants
// to write. The individual drain/flush steps that follow are already
// EAGAIN-tolerant, so this call exists only to avoid busy-spinning the
// capture goroutine; its readiness bitmaps are not otherwise consulted.
func (s *Supervisor) waitForReadiness() {
	var r, w unix.FdSet
	maxFD := -1

	watch := func(fd int) {
		if fd < 0 {
			return
		}
		fdSet(&r, fd)
		if fd > maxFD {
			maxFD = fd
		}
	}

	watch(s.stdoutFD)
	watch(s.stderrFD)
	watch(s.ListenFD)
	for _, c := range s.clients {
		watch(c.InputFD)
		if c.Send.NeedsWrite() {
			fdSet(&w, c.OutputFD)
			if c.OutputFD > maxFD {
				maxFD = c.OutputFD
			}
		}
	}

	if maxFD < 0 {
		time.Sleep(selectTimeout)
		return
	}

	tv := unix.NsecToTimeval(selectTimeout.Nanoseconds())
	_, _ = unix.Select(maxFD+1, &r, &w, nil, &tv)
}

// flushClients writes out every client's pending send-buffer segments.
// A partial write or EAGAIN leaves the remainder queued for the next
// iteration (sendbuf.Buffer.Flush already encodes that resumption).
func (s *Supervisor) flushClients() {
	for _, c := range s.clients {
		if c.Send.Empty() {
			continue
		}
		if _, err := c.Send.Flush(c.OutputFD); err != nil {
			c.Set(client.SigDelete)
		}
	}
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << uint(fd%64)
}

// acceptTelnet accepts at most one pending telnet connection per
// iteration, installing it as a new non-console, telnet-flagged client.
func (s *Supervisor) acceptTelnet() {
	if s.ListenFD < 0 {
		return
	}
	nfd, _, err := unix.Accept(s.ListenFD)
	if err != nil {
		return
	}
	_ = unix.SetNonblock(nfd, true)
	c := client.New(nfd, nfd, true, false, s.Scrollback, s.Dispatcher)
	s.AddClient(c)
}

// drainCaptured pulls newly available bytes from stdout/stderr into
// their reader backlogs, then relinks every finished line directly onto
// scrollback's queue (spec §4.C9 step 5).
func (s *Supervisor) drainCaptured(now time.Time) {
	stampMs := now.UnixMilli()
	if s.stdoutFD >= 0 {
		closed, _ := s.stdout.Drain(s.stdoutFD, stampMs)
		if closed {
			s.stdoutFD = -1
		}
	}
	if s.stderrFD >= 0 {
		closed, _ := s.stderr.Drain(s.stderrFD, stampMs)
		if closed {
			s.stderrFD = -1
		}
	}
	s.mergeBacklog(s.stdoutBacklog)
	s.mergeBacklog(s.stderrBacklog)
}

// mergeBacklog moves every finished line from a reader's backlog onto
// scrollback's queue. Because both queues share scrollback's arena this
// is a pure relink (Remove + PushTail); no bytes are copied.
func (s *Supervisor) mergeBacklog(backlog *line.Queue) {
	for backlog.Size() > 0 {
		r := backlog.Head()
		backlog.Remove(r)
		s.Scrollback.Queue.PushTail(r)
	}
}

// drainClients feeds each client's available input bytes through its
// telnet/VT decoders and key dispatch (spec §4.C9 step 6). A command
// committed during this call is dispatched synchronously by
// client.Client.commit, fusing the spec's two-step "set HAS_CMD, then
// notice it and post the runner" into one call — see DESIGN.md.
func (s *Supervisor) drainClients(now time.Time) {
	for _, c := range s.clients {
		closed, err := c.DrainInput(now)
		if closed || err != nil {
			c.Set(client.SigDelete)
		}
	}
}

// reapClients removes every client marked for deletion (disconnected by
// its own request, or found closed by drainClients), closing its
// descriptor. The console client's descriptor is never closed here —
// bootstrap owns its lifetime — but it is still removable from the
// managed list if somehow marked for deletion.
func (s *Supervisor) reapClients() {
	kept := s.clients[:0]
	for _, c := range s.clients {
		if !c.Has(client.SigDelete) {
			kept = append(kept, c)
			continue
		}
		if !c.Console {
			_ = unix.Close(c.InputFD)
			if c.OutputFD != c.InputFD {
				_ = unix.Close(c.OutputFD)
			}
		}
	}
	s.clients = kept
}

// enforceBacklogCap applies a pending "mish backlog clear" request, or
// else the scrollback's ordinary soft cap, fixing up every client's
// Bottom/Sending cursor that pointed at an evicted line (spec §4.C9 step
// 7, §5's "no consumer holds a dangling line reference" guarantee).
func (s *Supervisor) enforceBacklogCap() {
	if s.clearBacklog {
		s.Scrollback.Clear(s.fixupEviction)
		s.clearBacklog = false
		return
	}
	s.Scrollback.Evict(s.fixupEviction)
}

func (s *Supervisor) fixupEviction(victim, successor line.Ref) {
	for _, c := range s.clients {
		if c.Bottom == victim {
			c.Bottom = successor
		}
		if c.Sending == victim {
			c.Sending = successor
		}
	}
}
