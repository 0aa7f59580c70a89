package bootstrap

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// maxPortRetries bounds the bind-retry loop (spec §4.C10).
const maxPortRetries = 10

// ErrTelnetPortExhausted is returned when every retry collides with an
// already-bound port.
var ErrTelnetPortExhausted = fmt.Errorf("mish: could not bind a telnet port after %d attempts", maxPortRetries)

// derivePort computes the deterministic default port from the running
// program's name: Σ name[i]+i, floored to ≥1024, masked to 14 bits so the
// result always lands in the unprivileged, non-ephemeral range.
func derivePort(programName string) int {
	sum := 0
	for i, r := range programName {
		sum += int(r) + i
	}
	port := sum & 0x3FFF
	if port < 1024 {
		port += 1024
	}
	return port
}

// listenTelnet binds and listens on a port determined by MISH_TELNET_PORT
// (if set) or derivePort(program name), retrying with random jitter up to
// maxPortRetries times. An advisory flock (shared by every mish process
// on the host) serializes the bind attempts of concurrently-starting
// processes so two of them don't race for the same derived port. On
// success the chosen port is published back into MISH_TELNET_PORT.
func listenTelnet(programName string) (fd int, port int, err error) {
	start := derivePort(programName)
	if v := os.Getenv("MISH_TELNET_PORT"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			start = n
		}
	}

	lock := flock.New(filepath.Join(os.TempDir(), "mish-telnet-port.lock"))
	if lockErr := lock.Lock(); lockErr != nil {
		return -1, 0, fmt.Errorf("mish: lock telnet port selection: %w", lockErr)
	}
	defer lock.Unlock()

	candidate := start
	for attempt := 0; attempt < maxPortRetries; attempt++ {
		fd, bindErr := bindListen(candidate)
		if bindErr == nil {
			os.Setenv("MISH_TELNET_PORT", strconv.Itoa(candidate))
			return fd, candidate, nil
		}
		candidate = 1024 + (candidate-1024+1+rand.Intn(64))%(0x3FFF-1024)
	}
	return -1, 0, ErrTelnetPortExhausted
}

func bindListen(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("mish: create telnet socket: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("mish: listen on telnet port %d: %w", port, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("mish: set telnet socket non-blocking: %w", err)
	}
	return fd, nil
}
