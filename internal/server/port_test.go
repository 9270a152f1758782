package server

import (
	"fmt"
	"net"
	"strings"
	"testing"
)

func occupyPort(t *testing.T) (string, int) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestFindAvailablePortPrefersRequestedPort(t *testing.T) {
	// Probe a port nothing is listening on.
	host, busy := occupyPort(t)

	port, err := FindAvailablePort(host, busy+1, 10)
	if err != nil {
		t.Fatalf("FindAvailablePort: %v", err)
	}
	if port != busy+1 {
		t.Fatalf("expected preferred port %d, got %d", busy+1, port)
	}
}

func TestFindAvailablePortSkipsBusyPort(t *testing.T) {
	host, busy := occupyPort(t)

	port, err := FindAvailablePort(host, busy, 10)
	if err != nil {
		t.Fatalf("FindAvailablePort: %v", err)
	}
	if port == busy {
		t.Fatalf("returned the busy port %d", port)
	}
	if port <= busy || port >= busy+10 {
		t.Fatalf("port %d outside probe range (%d, %d)", port, busy, busy+10)
	}
}

func TestFindAvailablePortBoundedAttempts(t *testing.T) {
	host, busy := occupyPort(t)

	_, err := FindAvailablePort(host, busy, 1)
	if err == nil {
		t.Fatalf("expected exhaustion error with a single attempt on a busy port")
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("%d-%d", busy, busy)) {
		t.Fatalf("exhaustion error should name the probed range: %v", err)
	}
}
