package mish

import (
	"testing"

	"mish/internal/command"

	"github.com/stretchr/testify/require"
)

func TestPrepareHonorsMishOff(t *testing.T) {
	t.Setenv("MISH_OFF", "1")
	e, err := Prepare(0)
	require.NoError(t, err)
	require.Nil(t, e)
}

func TestNilEngineMethodsAreNoops(t *testing.T) {
	var e *Engine
	require.Equal(t, Capability(0), e.Flags())
	require.Equal(t, 0, e.TelnetPort())
	require.Equal(t, 0, e.PollSafeCommands())
	require.NotPanics(t, func() { e.Terminate() })
	require.NotPanics(t, func() { InstallExitHook(e) })
}

func TestRegisterCommandReachesTheGlobalRegistry(t *testing.T) {
	RegisterCommand([]string{"mish-root-test"}, []string{"mish-root-test - exercises the public wrapper"}, func(any, []string) Result {
		return Result{Output: "ran"}
	}, nil, false, KindNone)

	entry := command.Lookup("mish-root-test")
	require.NotNil(t, entry)
	res := entry.Handler(nil, nil)
	require.Equal(t, "ran", res.Output)
}

func TestSetCommandParameterReachesTheGlobalRegistry(t *testing.T) {
	const kind uint32 = 777
	RegisterCommand([]string{"mish-root-param-test"}, nil, func(param any, _ []string) Result {
		return Result{Output: param.(string)}
	}, nil, false, kind)

	SetCommandParameter(kind, "bound")
	entry := command.Lookup("mish-root-param-test")
	require.Equal(t, "bound", entry.Handler(entry.Param, nil).Output)
}
