package server

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// FindAvailablePort probes ports starting at preferred and returns the first
// one that binds. Ports that are already in use are skipped; any other bind
// error is fatal. The attempt count is bounded so port exhaustion surfaces
// as an error instead of probing forever.
func FindAvailablePort(host string, preferred, maxAttempts int) (int, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		port := preferred + attempt

		listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
		if err == nil {
			listener.Close()
			return port, nil
		}

		if errors.Is(err, syscall.EADDRINUSE) {
			continue
		}
		return 0, fmt.Errorf("probe port %d: %w", port, err)
	}

	return 0, fmt.Errorf("no available port in range %d-%d", preferred, preferred+maxAttempts-1)
}
