package reader

import (
	"bytes"
	"os"
	"testing"

	"mish/internal/line"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func nonblockingPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	rf, wf, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(int(rf.Fd()), true))
	t.Cleanup(func() {
		rf.Close()
		wf.Close()
	})
	return rf, wf
}

func TestDrainSplitsOnNewline(t *testing.T) {
	arena := line.NewArena()
	backlog := line.NewQueue(arena)
	rd := New(arena, backlog, false, Lines)

	rf, wf := nonblockingPipe(t)
	_, err := wf.Write([]byte("foo\nbar"))
	require.NoError(t, err)

	closed, err := rd.Drain(int(rf.Fd()), 1000)
	require.NoError(t, err)
	require.False(t, closed)

	require.Equal(t, 1, backlog.Size())
	finished := arena.Get(backlog.Head())
	require.Equal(t, []byte("foo\n"), finished.Bytes())
	require.False(t, finished.Err())
	require.Equal(t, int64(1000), finished.Stamp())

	working := arena.Get(rd.Working())
	require.Equal(t, []byte("bar"), working.Bytes())
}

func TestDrainReturnsOnEAGAINWithoutBlocking(t *testing.T) {
	arena := line.NewArena()
	backlog := line.NewQueue(arena)
	rd := New(arena, backlog, false, Lines)

	rf, wf := nonblockingPipe(t)
	_, err := wf.Write([]byte("partial"))
	require.NoError(t, err)

	closed, err := rd.Drain(int(rf.Fd()), 1)
	require.NoError(t, err)
	require.False(t, closed)
	require.Equal(t, 0, backlog.Size())
	require.Equal(t, []byte("partial"), arena.Get(rd.Working()).Bytes())
}

func TestDrainReportsEOF(t *testing.T) {
	arena := line.NewArena()
	backlog := line.NewQueue(arena)
	rd := New(arena, backlog, false, Lines)

	rf, wf := nonblockingPipe(t)
	_, err := wf.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, wf.Close())

	closed, err := rd.Drain(int(rf.Fd()), 1)
	require.NoError(t, err)
	require.True(t, closed)
	require.Equal(t, []byte("tail"), arena.Get(rd.Working()).Bytes())
}

func TestDrainTagsErrStream(t *testing.T) {
	arena := line.NewArena()
	backlog := line.NewQueue(arena)
	rd := New(arena, backlog, true, Lines)

	rf, wf := nonblockingPipe(t)
	_, err := wf.Write([]byte("oops\n"))
	require.NoError(t, err)

	_, err = rd.Drain(int(rf.Fd()), 5)
	require.NoError(t, err)
	finished := arena.Get(backlog.Head())
	require.True(t, finished.Err())
}

func TestDrainSplitsAtMaxLineSize(t *testing.T) {
	arena := line.NewArena()
	backlog := line.NewQueue(arena)
	rd := New(arena, backlog, false, Lines)

	data := bytes.Repeat([]byte{'a'}, line.MaxLineSize+1)
	rf, wf := nonblockingPipe(t)

	done := make(chan struct{})
	go func() {
		wf.Write(data)
		close(done)
	}()

	var closed bool
	var err error
	for backlog.Size() == 0 {
		closed, err = rd.Drain(int(rf.Fd()), 2)
		require.NoError(t, err)
		require.False(t, closed)
	}
	<-done

	require.Equal(t, 1, backlog.Size())
	finished := arena.Get(backlog.Head())
	require.Equal(t, line.MaxLineSize, finished.Len())
	require.Equal(t, 1, arena.Get(rd.Working()).Len())
}

func TestSkipClassifierDropsBytes(t *testing.T) {
	arena := line.NewArena()
	backlog := line.NewQueue(arena)
	skipNUL := func(b byte) Classification {
		if b == 0 {
			return Skip
		}
		return Lines(b)
	}
	rd := New(arena, backlog, false, skipNUL)

	rf, wf := nonblockingPipe(t)
	_, err := wf.Write([]byte{'a', 0, 'b', '\n'})
	require.NoError(t, err)

	_, err = rd.Drain(int(rf.Fd()), 1)
	require.NoError(t, err)
	finished := arena.Get(backlog.Head())
	require.Equal(t, []byte("ab\n"), finished.Bytes())
}
