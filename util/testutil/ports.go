package testutil

import (
	"fmt"
	"net"
	"sync"
)

var (
	handedOutMu sync.Mutex
	handedOut   = make(map[int]bool)
)

// GetFreePort returns a localhost TCP port that was free a moment ago. Ports
// already returned in this process are skipped so two servers started back to
// back by one test do not collide.
func GetFreePort() int {
	handedOutMu.Lock()
	defer handedOutMu.Unlock()

	for attempt := 0; attempt < 100; attempt++ {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			panic(fmt.Sprintf("failed to get free port: %v", err))
		}
		port := l.Addr().(*net.TCPAddr).Port
		l.Close()

		if !handedOut[port] {
			handedOut[port] = true
			return port
		}
	}
	panic("failed to get a unique free port")
}

// GetFreeAddress returns "localhost:<port>" for a port from GetFreePort.
func GetFreeAddress() string {
	return fmt.Sprintf("localhost:%d", GetFreePort())
}
