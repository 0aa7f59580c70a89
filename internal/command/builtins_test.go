package command

import (
	"os"
	"testing"

	"mish/internal/client"
	"mish/internal/line"

	"github.com/stretchr/testify/require"
)

type fakeHooks struct {
	quit      bool
	maxLines  int
	clearedAt int
	clears    int
	port      int
	clients   []*client.Client
}

func (f *fakeHooks) RequestQuit()                      { f.quit = true }
func (f *fakeHooks) BacklogMaxLines() int               { return f.maxLines }
func (f *fakeHooks) SetBacklogMaxLines(n int)           { f.maxLines = n }
func (f *fakeHooks) ClearBacklog()                      { f.clears++ }
func (f *fakeHooks) TelnetPort() int                    { return f.port }
func (f *fakeHooks) Clients() []*client.Client          { return f.clients }

func TestHandleQuitCallsRequestQuit(t *testing.T) {
	h := &fakeHooks{}
	res := handleQuit(h, []string{"quit"})
	require.NoError(t, res.Err)
	require.True(t, h.quit)
}

func TestHandleMishReportsAndSetsBacklogMax(t *testing.T) {
	h := &fakeHooks{maxLines: 500}
	res := handleMish(h, []string{"mish"})
	require.Contains(t, res.Output, "500")

	res = handleMish(h, []string{"mish", "backlog", "max", "1000"})
	require.NoError(t, res.Err)
	require.Equal(t, 1000, h.maxLines)

	res = handleMish(h, []string{"mish", "clear"})
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.clears)
}

func TestHandleMishStatusDumpListsClientsAndPort(t *testing.T) {
	sb := line.NewScrollback(0)
	console := client.New(3, 4, false, true, sb, nil)
	telnetClient := client.New(5, 5, true, false, sb, nil)
	h := &fakeHooks{maxLines: 500, port: 1234, clients: []*client.Client{console, telnetClient}}

	res := handleMish(h, []string{"mish"})
	require.NoError(t, res.Err)
	require.Contains(t, res.Output, "Telnet Port: 1234")
	require.Contains(t, res.Output, "r: 3 w: 4")
	require.Contains(t, res.Output, "r: 5 w: 5")
	require.Contains(t, res.Output, console.SessionID.String())
	require.Contains(t, res.Output, telnetClient.SessionID.String())
}

func TestHandleMishBacklogMaxRejectsNonInteger(t *testing.T) {
	h := &fakeHooks{}
	res := handleMish(h, []string{"mish", "backlog", "max", "not-a-number"})
	require.Error(t, res.Err)
}

func TestHandleDisconnectRefusesConsole(t *testing.T) {
	sb := line.NewScrollback(0)
	c := client.New(0, 1, false, true, sb, nil)
	res := handleDisconnect(c, []string{"disconnect"})
	require.Error(t, res.Err)
	require.False(t, c.Has(client.SigDelete))
}

func TestHandleDisconnectSetsDeleteSignalOnRemote(t *testing.T) {
	sb := line.NewScrollback(0)
	c := client.New(0, 1, true, false, sb, nil)
	res := handleDisconnect(c, []string{"disconnect"})
	require.NoError(t, res.Err)
	require.True(t, c.Has(client.SigDelete))
}

func TestHandleHistoryFormatsEntries(t *testing.T) {
	sb := line.NewScrollback(0)
	c := client.New(0, 1, true, false, sb, nil)
	c.History = []string{"help", "env"}
	res := handleHistory(c, nil)
	require.Contains(t, res.Output, "help")
	require.Contains(t, res.Output, "env")
}

func TestHandleSetenvSetsAndUnsets(t *testing.T) {
	res := handleSetenv(nil, []string{"setenv", "MISH_BUILTIN_TEST=1"})
	require.NoError(t, res.Err)
	require.Equal(t, "1", os.Getenv("MISH_BUILTIN_TEST"))

	res = handleSetenv(nil, []string{"setenv", "MISH_BUILTIN_TEST="})
	require.NoError(t, res.Err)
	_, ok := os.LookupEnv("MISH_BUILTIN_TEST")
	require.False(t, ok)
}

func TestHandleSetenvRejectsMalformedEntry(t *testing.T) {
	res := handleSetenv(nil, []string{"setenv", "no-equals-sign"})
	require.Error(t, res.Err)
}

func TestHandleEnvFiltersByPrefix(t *testing.T) {
	os.Setenv("MISH_FILTER_TEST", "yes")
	defer os.Unsetenv("MISH_FILTER_TEST")
	res := handleEnv(nil, []string{"env", "MISH_FILTER_TEST"})
	require.Contains(t, res.Output, "MISH_FILTER_TEST=yes")
}

func TestHandleEnvSuppressesLSColorsWithNoFilter(t *testing.T) {
	os.Setenv("LS_COLORS", "rs=0:di=01;34")
	defer os.Unsetenv("LS_COLORS")
	res := handleEnv(nil, []string{"env"})
	require.NotContains(t, res.Output, "LS_COLORS=")
}

func TestHandleEnvStillMatchesLSColorsWhenFilteredFor(t *testing.T) {
	os.Setenv("LS_COLORS", "rs=0:di=01;34")
	defer os.Unsetenv("LS_COLORS")
	res := handleEnv(nil, []string{"env", "LS_COLORS"})
	require.Contains(t, res.Output, "LS_COLORS=")
}

func TestHandleHelpListsBuiltins(t *testing.T) {
	res := handleHelp(nil, []string{"help"})
	require.Contains(t, res.Output, "help")
}

func TestHandleHelpForSpecificCommand(t *testing.T) {
	res := handleHelp(nil, []string{"help", "quit"})
	require.Contains(t, res.Output, "terminate")
}
