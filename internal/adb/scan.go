package adb

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ScanPorts dials host on every port in [first, last] and returns the ones
// that accepted a TCP connection, in ascending order.
func ScanPorts(ctx context.Context, host string, first, last int, timeout time.Duration) []int {
	var (
		mu   sync.Mutex
		open []int
		wg   sync.WaitGroup
	)

	dialer := net.Dialer{Timeout: timeout}
	for port := first; port <= last; port++ {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
			if err != nil {
				return
			}
			conn.Close()
			mu.Lock()
			open = append(open, port)
			mu.Unlock()
		}(port)
	}
	wg.Wait()

	sort.Ints(open)
	return open
}

// Address joins host and port the way "adb connect" expects.
func Address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
