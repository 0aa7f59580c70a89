package command

import (
	"testing"
	"time"

	"mish/internal/client"
	"mish/internal/line"

	"github.com/stretchr/testify/require"
)

func newDispatchTestClient(console bool) *client.Client {
	sb := line.NewScrollback(0)
	return client.New(0, 1, false, console, sb, nil)
}

func TestDispatchUnknownCommandIsSynchronous(t *testing.T) {
	d := NewDispatcher()
	c := newDispatchTestClient(true)
	async := d.Dispatch(c, []byte("this-command-does-not-exist"))
	require.False(t, async)
}

func TestDispatchSafeCommandDrainsViaPoll(t *testing.T) {
	done := make(chan struct{}, 1)
	Register([]string{"safe-poll-test"}, nil, func(any, []string) Result {
		done <- struct{}{}
		return Result{Output: "ok"}
	}, nil, true, KindNone)

	d := NewDispatcher()
	c := newDispatchTestClient(true)
	async := d.Dispatch(c, []byte("safe-poll-test"))
	require.True(t, async)

	select {
	case <-done:
		t.Fatal("safe command must not run before PollSafeCommands is called")
	case <-time.After(20 * time.Millisecond):
	}

	n := d.PollSafeCommands()
	require.Equal(t, 1, n)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PollSafeCommands did not run the queued command")
	}
}

func TestSafeQueueDropsWhenFull(t *testing.T) {
	Register([]string{"safe-full-test"}, nil, func(any, []string) Result {
		return Result{}
	}, nil, true, KindNone)

	d := NewDispatcher()
	c := newDispatchTestClient(true)
	for i := 0; i < safeQueueCapacity; i++ {
		require.True(t, d.Dispatch(c, []byte("safe-full-test")))
	}
	require.False(t, d.Dispatch(c, []byte("safe-full-test")), "5th queue attempt must be dropped")
}

func TestDispatchUnsafeCommandRunsOnRunnerGoroutine(t *testing.T) {
	done := make(chan struct{}, 1)
	Register([]string{"unsafe-runner-test"}, nil, func(any, []string) Result {
		done <- struct{}{}
		return Result{}
	}, nil, false, KindNone)

	d := NewDispatcher()
	c := newDispatchTestClient(true)
	async := d.Dispatch(c, []byte("unsafe-runner-test"))
	require.True(t, async)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unsafe command never ran")
	}
}

func TestDispatchPassesInvokingClientForClientKind(t *testing.T) {
	var got *client.Client
	done := make(chan struct{})
	Register([]string{"client-kind-test"}, nil, func(param any, _ []string) Result {
		got, _ = param.(*client.Client)
		close(done)
		return Result{}
	}, nil, false, KindClient)

	d := NewDispatcher()
	c := newDispatchTestClient(true)
	d.Dispatch(c, []byte("client-kind-test"))
	<-done
	require.Same(t, c, got)
}
