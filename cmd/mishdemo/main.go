// Command mishdemo wraps an arbitrary child command in the mish engine,
// mirroring the teacher's own cmd.NewRootCmd() wrapping pattern: a single
// cobra root command that prepares the engine, runs the child with its
// stdio inherited from the (now captured) process streams, and tears the
// engine down on exit.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"mish"

	"github.com/spf13/cobra"
)

func init() {
	mish.RegisterCommand([]string{"uptime"}, []string{"uptime - show how long mishdemo has been running"}, handleUptime, nil, false, mish.KindNone)
}

var startedAt = time.Now()

func handleUptime(any, []string) mish.Result {
	return mish.Result{Output: fmt.Sprintf("up %s", time.Since(startedAt).Round(time.Second))}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noTelnet, noStderr, forcePTY bool

	cmd := &cobra.Command{
		Use:   "mishdemo [flags] -- <command> [args...]",
		Short: "Run a command with its output captured by mish",
		Long: `mishdemo prepares a mish engine, runs the given command with its
stdout/stderr inherited from the (now pty-backed) process streams, and
exposes the shared scrollback to the original terminal plus any telnet
sessions, until the command exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var caps mish.Capability
			if noTelnet {
				caps |= mish.NoTelnet
			}
			if noStderr {
				caps |= mish.NoStderr
			}
			if forcePTY {
				caps |= mish.ForcePTY
			}
			return run(caps, args[0], args[1:])
		},
	}

	cmd.Flags().BoolVar(&noTelnet, "no-telnet", false, "disable remote telnet sessions")
	cmd.Flags().BoolVar(&noStderr, "no-stderr", false, "do not capture stderr")
	cmd.Flags().BoolVar(&forcePTY, "force-pty", false, "treat stdio as a tty even when it is not")

	return cmd
}

func run(caps mish.Capability, name string, args []string) error {
	engine, err := mish.Prepare(caps)
	if err != nil {
		return fmt.Errorf("mishdemo: prepare engine: %w", err)
	}
	if engine == nil {
		// MISH_OFF was set: run the child unmodified.
		return runChild(name, args)
	}
	mish.InstallExitHook(engine)
	defer engine.Terminate()

	if port := engine.TelnetPort(); port != 0 {
		fmt.Fprintf(os.Stderr, "mishdemo: telnet sessions on 127.0.0.1:%d\n", port)
	}

	pollDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				engine.PollSafeCommands()
			case <-pollDone:
				return
			}
		}
	}()
	defer close(pollDone)

	return runChild(name, args)
}

func runChild(name string, args []string) error {
	child := exec.Command(name, args...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Run(); err != nil {
		return fmt.Errorf("mishdemo: run %s: %w", name, err)
	}
	return nil
}
