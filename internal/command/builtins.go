package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mish/internal/client"
)

// EngineHooks is the slice of Engine behavior mish's own built-ins need.
// command cannot import the root package (it would import command back,
// to register these very built-ins), so bootstrap binds a concrete
// implementation with SetParameter(KindEngine, hooks) once the Engine
// exists — the bulk-rebind mechanism spec §4.C8 describes, used for its
// designed purpose.
type EngineHooks interface {
	RequestQuit()
	BacklogMaxLines() int
	SetBacklogMaxLines(n int)
	ClearBacklog()
	TelnetPort() int
	Clients() []*client.Client
}

func init() {
	MustRegister([]string{"help"}, []string{"help [cmd...] - list commands, or show help for specific ones"}, handleHelp, nil, false, KindNone)
	MustRegister([]string{"history"}, []string{"history - show this session's command history"}, handleHistory, nil, true, KindClient)
	MustRegister([]string{"env"}, []string{"env [prefix...] - list environment variables, optionally filtered by prefix"}, handleEnv, nil, false, KindNone)
	MustRegister([]string{"setenv"}, []string{"setenv name=value... - set (or, with an empty value, unset) environment variables"}, handleSetenv, nil, false, KindNone)
	MustRegister([]string{"q", "quit"}, []string{"q|quit - terminate the host program and every attached session"}, handleQuit, nil, true, KindEngine)
	MustRegister([]string{"mish"}, []string{"mish [backlog [clear|max N]|clear] - inspect or control scrollback retention"}, handleMish, nil, true, KindEngine)
	MustRegister([]string{"dis", "disconnect", "logout"}, []string{"dis|disconnect|logout - close this remote session (refused on the console)"}, handleDisconnect, nil, true, KindClient)
}

func handleHelp(_ any, argv []string) Result {
	var b strings.Builder
	if len(argv) > 1 {
		for _, name := range argv[1:] {
			e := Lookup(name)
			if e == nil {
				fmt.Fprintf(&b, "%s: unknown command\n", name)
				continue
			}
			fmt.Fprintf(&b, "%s\n", strings.Join(e.Help, "\n    "))
		}
		return Result{Output: strings.TrimRight(b.String(), "\n")}
	}
	for _, e := range List() {
		if len(e.Help) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%-20s %s\n", strings.Join(e.Names, "/"), e.Help[0])
	}
	return Result{Output: strings.TrimRight(b.String(), "\n")}
}

func handleHistory(param any, _ []string) Result {
	c, ok := param.(*client.Client)
	if !ok {
		return Result{Err: fmt.Errorf("history: no originating session")}
	}
	if len(c.History) == 0 {
		return Result{Output: "(no history)"}
	}
	var b strings.Builder
	for i, h := range c.History {
		fmt.Fprintf(&b, "%4d  %s\n", i+1, h)
	}
	return Result{Output: strings.TrimRight(b.String(), "\n")}
}

func handleEnv(_ any, argv []string) Result {
	prefixes := argv[1:]
	var b strings.Builder
	for _, kv := range os.Environ() {
		if len(prefixes) == 0 {
			// _mish_cmd_env skips LS_COLORS with no filter args: "that
			// is just spam".
			if strings.HasPrefix(kv, "LS_COLORS=") {
				continue
			}
			fmt.Fprintln(&b, kv)
			continue
		}
		for _, p := range prefixes {
			if strings.HasPrefix(kv, p) {
				fmt.Fprintln(&b, kv)
				break
			}
		}
	}
	return Result{Output: strings.TrimRight(b.String(), "\n")}
}

func handleSetenv(_ any, argv []string) Result {
	if len(argv) < 2 {
		return Result{Err: fmt.Errorf("usage: setenv name=value...")}
	}
	for _, kv := range argv[1:] {
		name, value, found := strings.Cut(kv, "=")
		if !found {
			return Result{Err: fmt.Errorf("setenv: %q is not name=value", kv)}
		}
		if value == "" {
			os.Unsetenv(name)
		} else {
			os.Setenv(name, value)
		}
	}
	return Result{Output: "ok"}
}

func handleQuit(param any, _ []string) Result {
	if hooks, ok := param.(EngineHooks); ok {
		hooks.RequestQuit()
	}
	return Result{Output: "goodbye"}
}

func handleMish(param any, argv []string) Result {
	hooks, ok := param.(EngineHooks)
	if !ok {
		return Result{Err: fmt.Errorf("mish: engine not ready")}
	}
	if len(argv) < 2 {
		return Result{Output: mishStatusDump(hooks)}
	}
	switch argv[1] {
	case "clear":
		hooks.ClearBacklog()
		return Result{Output: "backlog cleared"}
	case "backlog":
		return handleMishBacklog(hooks, argv[2:])
	default:
		return Result{Err: fmt.Errorf("mish: unknown subcommand %q", argv[1])}
	}
}

// mishStatusDump reproduces the connection table _mish_cmd_mish prints
// for every attached client (input/output fd, console/telnet kind,
// tty/dumb mode), extended with each client's session id and how long
// it's been connected.
func mishStatusDump(hooks EngineHooks) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backlog: %d max_lines, Telnet Port: %d\n", hooks.BacklogMaxLines(), hooks.TelnetPort())
	now := time.Now()
	for _, c := range hooks.Clients() {
		kind := "telnet session"
		switch {
		case c.Console:
			kind = "console"
		case !c.IsTelnet:
			kind = "*unknown*"
		}
		mode := ""
		if c.Console {
			if c.IsDumb() {
				mode = "(dumb)"
			} else {
				mode = "(tty)"
			}
		}
		fmt.Fprintf(&b, "  Client: r: %d w: %d %s %s\n", c.InputFD, c.OutputFD, kind, mode)
		fmt.Fprintf(&b, "          session %s connected %s ago\n",
			c.SessionID, now.Sub(c.ConnectedAt).Round(time.Second))
	}
	return strings.TrimRight(b.String(), "\n")
}

func handleMishBacklog(hooks EngineHooks, rest []string) Result {
	if len(rest) == 0 {
		return Result{Output: fmt.Sprintf("backlog max_lines=%d", hooks.BacklogMaxLines())}
	}
	switch rest[0] {
	case "clear":
		hooks.ClearBacklog()
		return Result{Output: "backlog cleared"}
	case "max":
		if len(rest) < 2 {
			return Result{Err: fmt.Errorf("usage: mish backlog max N")}
		}
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return Result{Err: fmt.Errorf("mish backlog max: %w", err)}
		}
		hooks.SetBacklogMaxLines(n)
		return Result{Output: fmt.Sprintf("backlog max_lines=%d", n)}
	default:
		return Result{Err: fmt.Errorf("mish backlog: unknown subcommand %q", rest[0])}
	}
}

func handleDisconnect(param any, _ []string) Result {
	c, ok := param.(*client.Client)
	if !ok {
		return Result{Err: fmt.Errorf("disconnect: no originating session")}
	}
	if c.Console {
		return Result{Err: fmt.Errorf("the console session cannot disconnect itself")}
	}
	c.Set(client.SigDelete)
	return Result{Output: "disconnecting"}
}
