package command

import (
	"fmt"
	"log"

	"mish/internal/client"
)

// safeQueueCapacity is the bounded FIFO capacity for safe commands
// awaiting the host's PollSafeCommands call (spec §4.C8).
const safeQueueCapacity = 4

type invocation struct {
	entry  *Entry
	argv   []string
	client *client.Client
}

// Dispatcher implements client.Dispatcher, parsing a committed edit line
// into an argv vector and routing it to either the bounded safe FIFO
// (drained by the host calling PollSafeCommands) or the
// dedicated command-runner goroutine for unsafe entries.
type Dispatcher struct {
	safe   chan invocation
	runner chan invocation
}

// NewDispatcher starts the command-runner goroutine and returns a ready
// Dispatcher. There is exactly one Dispatcher per Engine.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		safe:   make(chan invocation, safeQueueCapacity),
		runner: make(chan invocation, 16),
	}
	go d.runLoop()
	return d
}

// Dispatch implements client.Dispatcher. It returns true (async) for a
// recognized command that was queued: safe entries wait for
// PollSafeCommands, unsafe entries run on the runner goroutine. A safe
// command that finds its FIFO full is dropped and Dispatch returns false.
// Handing an unsafe command to the runner blocks only while 16 earlier
// ones are still waiting there.
func (d *Dispatcher) Dispatch(c *client.Client, line []byte) bool {
	argv, err := Split(string(line))
	if err != nil {
		c.ReportError(fmt.Sprintf("ERROR: %v", err))
		return false
	}
	if len(argv) == 0 {
		return false
	}
	entry := Lookup(argv[0])
	if entry == nil {
		c.ReportError(fmt.Sprintf("ERROR: unknown command %q", argv[0]))
		return false
	}
	inv := invocation{entry: entry, argv: argv, client: c}
	if entry.Safe {
		select {
		case d.safe <- inv:
			return true
		default:
			log.Printf("mish: safe command queue full, dropping %q", argv[0])
			return false
		}
	}
	d.runner <- inv
	return true
}

// PollSafeCommands drains every safe invocation currently queued,
// running each synchronously on the calling (host) goroutine. It
// returns the number processed, matching the public Engine method of the
// same name (spec §6).
func (d *Dispatcher) PollSafeCommands() int {
	n := 0
	for {
		select {
		case inv := <-d.safe:
			run(inv)
			n++
		default:
			return n
		}
	}
}

func (d *Dispatcher) runLoop() {
	for inv := range d.runner {
		run(inv)
	}
}

func run(inv invocation) {
	param := inv.entry.Param
	if inv.entry.Kind == KindClient {
		param = inv.client
	}
	res := inv.entry.Handler(param, inv.argv)
	switch {
	case res.Err != nil:
		inv.client.ReportError(fmt.Sprintf("ERROR: %s: %v", inv.argv[0], res.Err))
	case res.Output != "":
		inv.client.Send.AppendFormat("%s\n", res.Output)
	}
}
