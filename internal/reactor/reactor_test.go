package reactor

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/behrlich/reactor-httpd/internal/constants"
	"github.com/behrlich/reactor-httpd/internal/poller"
)

func TestEventModesTable(t *testing.T) {
	cases := []struct {
		mode                       int
		wantListenET, wantConnET   bool
	}{
		{0, false, false},
		{1, false, true},
		{2, true, false},
		{3, true, true},
		{99, true, true}, // out-of-range behaves like mode 3
	}
	for _, tc := range cases {
		listenEvents, connEvents := eventModes(tc.mode)
		assert.Equal(t, tc.wantListenET, listenEvents&uint32(poller.EdgeTrig) != 0, "mode %d listen", tc.mode)
		assert.Equal(t, tc.wantConnET, connEvents&uint32(poller.EdgeTrig) != 0, "mode %d conn", tc.mode)
		assert.NotZero(t, connEvents&uint32(poller.OneShot), "mode %d always carries EPOLLONESHOT", tc.mode)
	}
}

func TestNewAppliesConfigDefaults(t *testing.T) {
	r, err := New(Config{Port: 0, MaxConns: 0})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, constants.MaxConnections, r.cfg.MaxConns)
	assert.NotNil(t, r.cfg.Logger)
	assert.NotNil(t, r.cfg.Observer)
}

// TestAcceptLoopRejectsPastMaxConns is a scaled-down version of spec.md §8
// scenario 6 (65,537 connections against a MAX_FD of 65,536): rather than
// opening tens of thousands of sockets, it pins MaxConns to 1 and asserts
// the second concurrent connection gets the fixed "Server busy!" response
// and is closed rather than accepted.
func TestAcceptLoopRejectsPastMaxConns(t *testing.T) {
	r, err := New(Config{Port: 0, MaxConns: 1})
	require.NoError(t, err)
	defer r.Close()

	addr := r.listenAddr(t)
	go r.Run()

	first, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer first.Close()

	require.Eventually(t, func() bool { return r.countConns() == 1 }, time.Second, 5*time.Millisecond)

	second, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, _ := second.Read(buf)
	assert.Contains(t, string(buf[:n]), "Server busy!")

	// The rejected socket should be closed from the far end.
	second.SetReadDeadline(time.Now().Add(time.Second))
	_, err = second.Read(buf)
	assert.Error(t, err)
}

// listenAddr reports the reactor's bound loopback address for tests that
// need to dial it directly, reading back the ephemeral port the kernel
// assigned when Config.Port was 0.
func (r *Reactor) listenAddr(t *testing.T) string {
	t.Helper()
	sa, err := unix.Getsockname(r.listenFd)
	require.NoError(t, err)
	in4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok)
	return fmt.Sprintf("127.0.0.1:%d", in4.Port)
}
