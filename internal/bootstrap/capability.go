package bootstrap

// Capability is the caller-supplied bitset controlling what Prepare
// initializes (spec §6 "Capability flags").
type Capability uint32

const (
	// NoStderr disables fd 2 capture; stderr is left connected to its
	// original destination.
	NoStderr Capability = 1 << iota
	// NoTelnet disables the telnet listen socket; only the console client
	// exists.
	NoTelnet
	// ForcePTY treats fd 0/1/2 as a tty even when isatty reports otherwise
	// (useful under test harnesses and CI runners that redirect stdio).
	ForcePTY
)
