// Package bootstrap implements mish's session lifecycle (spec §4.C10):
// pty allocation, terminal raw-mode save/restore, telnet port derivation,
// fd redirection, and goroutine startup/teardown. The root package `mish`
// is a thin, documentation-bearing wrapper around Session.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mish/internal/capture"
	"mish/internal/client"
	"mish/internal/command"
	"mish/internal/line"

	"github.com/creack/pty"
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// defaultMaxLines is the scrollback's soft cap absent any "mish backlog
// max" adjustment.
const defaultMaxLines = 10000

// teardownTimeout bounds how long Terminate waits for the capture
// goroutine to notice QUIT before giving up (spec §4.C10).
const teardownTimeout = 2 * time.Second

// terminalRestoreSequence is emitted on Terminate: ESC[4l (replace mode),
// ESC[;r (reset scrolling region to the whole screen), ESC[999;1H (park
// the cursor at the bottom-left).
var terminalRestoreSequence = []byte("\x1b[4l\x1b[;r\x1b[999;1H")

// Session is the running engine: every resource Prepare allocated and
// Terminate must give back.
type Session struct {
	Caps Capability

	Scrollback *line.Scrollback
	Dispatcher *command.Dispatcher
	Supervisor *capture.Supervisor
	Console    *client.Client

	ttyMode bool
	termFD  int
	termState *term.State

	stdoutMaster, stdoutSlave *os.File
	stderrMaster, stderrSlave *os.File

	origStdoutFD, origStderrFD int

	telnetListenFD int
	telnetPort     int

	done chan struct{}
}

// Prepare allocates and starts a session per spec §4.C10. If MISH_OFF is
// set to a nonzero integer, Prepare is a no-op and returns (nil, nil) —
// callers should treat a nil *Session as "engine disabled".
func Prepare(caps Capability) (*Session, error) {
	if off() {
		return nil, nil
	}

	s := &Session{Caps: caps, termFD: 0, telnetListenFD: -1, origStdoutFD: -1, origStderrFD: -1}
	s.ttyMode = resolveTTY(caps)

	var err error
	s.stdoutMaster, s.stdoutSlave, err = pty.Open()
	if err != nil {
		return nil, fmt.Errorf("mish: open stdout pty: %w", err)
	}
	if caps&NoStderr == 0 {
		s.stderrMaster, s.stderrSlave, err = pty.Open()
		if err != nil {
			s.closePtys()
			return nil, fmt.Errorf("mish: open stderr pty: %w", err)
		}
	}

	if s.ttyMode {
		s.termState, err = term.MakeRaw(s.termFD)
		if err != nil {
			s.closePtys()
			return nil, fmt.Errorf("mish: set raw mode: %w", err)
		}
	}

	if caps&NoTelnet == 0 {
		fd, port, err := listenTelnet(filepath.Base(os.Args[0]))
		switch {
		case err == nil:
			s.telnetListenFD = fd
			s.telnetPort = port
		case errors.Is(err, ErrTelnetPortExhausted):
			// Spec policy: a telnet bind failure disables telnet for
			// this session rather than aborting the whole engine.
			fmt.Fprintln(os.Stderr, err)
			os.Unsetenv("MISH_TELNET_PORT")
		default:
			s.restoreTerminal()
			s.closePtys()
			return nil, err
		}
	}

	if err := s.redirectStdio(); err != nil {
		s.teardownAfterFailedPrepare()
		return nil, err
	}

	s.Scrollback = line.NewScrollback(defaultMaxLines)
	s.Dispatcher = command.NewDispatcher()

	consoleInFD, dupErr := unix.Dup(0)
	if dupErr != nil {
		s.teardownAfterFailedPrepare()
		return nil, fmt.Errorf("mish: dup console input fd: %w", dupErr)
	}
	consoleOutFD, dupErr := unix.Dup(s.origStdoutFD)
	if dupErr != nil {
		unix.Close(consoleInFD)
		s.teardownAfterFailedPrepare()
		return nil, fmt.Errorf("mish: dup console output fd: %w", dupErr)
	}
	s.Console = client.New(consoleInFD, consoleOutFD, false, true, s.Scrollback, s.Dispatcher)

	stdoutMasterFD := int(s.stdoutMaster.Fd())
	stderrMasterFD := -1
	if s.stderrMaster != nil {
		stderrMasterFD = int(s.stderrMaster.Fd())
	}
	// The capture readers drain until EAGAIN, so every descriptor they
	// read must be non-blocking (Fd() above leaves the masters blocking).
	for _, fd := range []int{stdoutMasterFD, stderrMasterFD, consoleInFD} {
		if fd >= 0 {
			_ = unix.SetNonblock(fd, true)
		}
	}
	s.Supervisor = capture.New(s.Scrollback, stdoutMasterFD, stderrMasterFD, s.telnetListenFD, s.Dispatcher)
	s.Supervisor.ListenPort = s.telnetPort
	s.Supervisor.AddClient(s.Console)

	command.SetParameter(command.KindEngine, s.Supervisor)

	s.done = make(chan struct{})
	go func() {
		s.Supervisor.Run()
		close(s.done)
	}()

	return s, nil
}

// redirectStdio duplicates the original fd 1/2 for later restoration,
// then dup2s the pty slaves onto fd 1 and fd 2 so subsequent writes by
// the host program flow into capture.
func (s *Session) redirectStdio() error {
	origOut, err := unix.Dup(1)
	if err != nil {
		return fmt.Errorf("mish: dup original stdout: %w", err)
	}
	s.origStdoutFD = origOut

	if err := unix.Dup2(int(s.stdoutSlave.Fd()), 1); err != nil {
		return fmt.Errorf("mish: redirect stdout to pty: %w", err)
	}

	if s.stderrSlave != nil {
		origErr, err := unix.Dup(2)
		if err != nil {
			return fmt.Errorf("mish: dup original stderr: %w", err)
		}
		s.origStderrFD = origErr
		if err := unix.Dup2(int(s.stderrSlave.Fd()), 2); err != nil {
			return fmt.Errorf("mish: redirect stderr to pty: %w", err)
		}
	} else {
		s.origStderrFD = -1
	}
	return nil
}

// Terminate restores the original fd 1/2, restores terminal attributes,
// raises QUIT, waits up to teardownTimeout for the capture goroutine to
// exit, and emits the terminal restore sequence (spec §4.C10). Safe to
// call on a nil *Session (the MISH_OFF no-op case).
func (s *Session) Terminate() {
	if s == nil {
		return
	}

	unix.Dup2(s.origStdoutFD, 1)
	if s.origStderrFD >= 0 {
		unix.Dup2(s.origStderrFD, 2)
	}

	s.restoreTerminal()

	if s.Supervisor != nil {
		s.Supervisor.RequestQuit()
	}
	if s.done != nil {
		select {
		case <-s.done:
		case <-time.After(teardownTimeout):
		}
	}

	unix.Write(s.origStdoutFD, terminalRestoreSequence)

	if s.Console != nil {
		unix.Close(s.Console.InputFD)
		unix.Close(s.Console.OutputFD)
	}

	s.closePtys()
	if s.telnetListenFD >= 0 {
		unix.Close(s.telnetListenFD)
	}
	unix.Close(s.origStdoutFD)
	if s.origStderrFD >= 0 {
		unix.Close(s.origStderrFD)
	}
}

// TelnetPort reports the bound telnet port, or 0 if telnet is disabled.
func (s *Session) TelnetPort() int {
	if s == nil {
		return 0
	}
	return s.telnetPort
}

// PollSafeCommands drains every queued safe command on the calling
// (host/main) goroutine, returning the count processed.
func (s *Session) PollSafeCommands() int {
	if s == nil || s.Dispatcher == nil {
		return 0
	}
	return s.Dispatcher.PollSafeCommands()
}

func (s *Session) restoreTerminal() {
	if s.ttyMode && s.termState != nil {
		term.Restore(s.termFD, s.termState)
	}
}

func (s *Session) closePtys() {
	for _, f := range []*os.File{s.stdoutMaster, s.stdoutSlave, s.stderrMaster, s.stderrSlave} {
		if f != nil {
			f.Close()
		}
	}
}

// teardownAfterFailedPrepare unwinds whatever Prepare had already set up
// before the step that failed.
func (s *Session) teardownAfterFailedPrepare() {
	s.restoreTerminal()
	s.closePtys()
	if s.telnetListenFD >= 0 {
		unix.Close(s.telnetListenFD)
	}
	if s.origStdoutFD >= 0 {
		unix.Close(s.origStdoutFD)
	}
	if s.origStderrFD >= 0 {
		unix.Close(s.origStderrFD)
	}
}

func off() bool {
	v := os.Getenv("MISH_OFF")
	return v != "" && v != "0"
}

func resolveTTY(caps Capability) bool {
	switch os.Getenv("MISH_TTY") {
	case "0":
		return false
	case "1":
		return true
	}
	if caps&ForcePTY != 0 {
		return true
	}
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stderr.Fd())
}
