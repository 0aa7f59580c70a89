// Package mish turns any Go program's stdout and stderr into a small
// interactive multiplexer: a bounded scrollback of everything the
// program prints, a command line for built-in and host-registered
// commands, and telnet-reachable remote sessions that see and drive the
// same shared view as the program's own controlling terminal.
//
// A host program calls Prepare once at startup and Terminate before
// exit (directly, or via the automatic exit hook InstallExitHook
// installs). Everything else — registering commands, reading the
// scrollback, handling window resizes — happens through the built-ins
// and the Client records the capture supervisor maintains internally.
package mish

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mish/internal/bootstrap"
	"mish/internal/command"
)

// Capability controls what Prepare initializes.
type Capability = bootstrap.Capability

const (
	NoStderr Capability = bootstrap.NoStderr
	NoTelnet Capability = bootstrap.NoTelnet
	ForcePTY Capability = bootstrap.ForcePTY
)

// Result is a command handler's outcome.
type Result = command.Result

// HandlerFunc is a command's implementation. argv[0] is the name the
// caller actually typed (which alias matched).
type HandlerFunc = command.HandlerFunc

// Command kind tags. KindNone commands keep whatever Param they were
// registered with unless SetCommandParameter(KindNone, ...) rebinds every
// entry; KindClient commands receive the invoking session as
// Param at dispatch time.
const (
	KindNone   = command.KindNone
	KindClient = command.KindClient
)

// RegisterCommand adds a command to the global registry. Safe to call at
// package init() time, before any Engine exists — mirroring the
// teacher's static command-tree registration.
func RegisterCommand(names []string, help []string, handler HandlerFunc, param any, safe bool, kind uint32) {
	command.Register(names, help, handler, param, safe, kind)
}

// SetCommandParameter bulk-rebinds Param on every registered entry whose
// Kind matches kind (kind == KindNone rebinds every entry).
func SetCommandParameter(kind uint32, param any) {
	command.SetParameter(kind, param)
}

// Engine is the running session: the pty pair capturing stdout/stderr,
// the scrollback, the console and telnet clients, and the capture and
// command-runner goroutines driving them.
type Engine struct {
	session *bootstrap.Session
}

// Prepare starts a new engine. If the environment variable MISH_OFF is
// set to a nonzero integer, Prepare returns (nil, nil) — callers should
// treat a nil *Engine as "mish is disabled" and run unmodified.
func Prepare(caps Capability) (*Engine, error) {
	s, err := bootstrap.Prepare(caps)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	return &Engine{session: s}, nil
}

// Flags reports the capability flags the engine was prepared with.
func (e *Engine) Flags() Capability {
	if e == nil {
		return 0
	}
	return e.session.Caps
}

// TelnetPort reports the bound telnet port, or 0 if telnet is disabled.
func (e *Engine) TelnetPort() int {
	if e == nil {
		return 0
	}
	return e.session.TelnetPort()
}

// PollSafeCommands drains every command queued as "safe" since the last
// call, running each synchronously on the calling goroutine. Host
// programs with their own event loop should call this periodically.
// The built-ins history, q/quit, mish and dis/disconnect/logout are
// registered as safe, so they run only when this is called; commands
// registered as unsafe run on the runner goroutine without it.
func (e *Engine) PollSafeCommands() int {
	if e == nil {
		return 0
	}
	return e.session.PollSafeCommands()
}

// Terminate restores the original terminal and file descriptors, stops
// the capture and command-runner goroutines, and frees the engine's
// resources. Safe to call on a nil *Engine.
func (e *Engine) Terminate() {
	if e == nil {
		return
	}
	e.session.Terminate()
}

var installExitHookOnce sync.Once

// InstallExitHook arranges for e.Terminate to run on SIGINT/SIGTERM, so a
// host program that is killed rather than shut down cleanly still
// restores the user's terminal (spec §6 "Exit behavior"). It is a no-op
// on a nil *Engine, and on repeated calls after the first (only one
// signal handler is ever installed per process).
func InstallExitHook(e *Engine) {
	if e == nil {
		return
	}
	installExitHookOnce.Do(func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			e.Terminate()
			os.Exit(1)
		}()
	})
}
