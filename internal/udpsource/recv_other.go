//go:build !linux

package udpsource

import (
	"net"
	"time"
)

// receiveBatch is the portable fallback for platforms without recvmmsg:
// it blocks for the first datagram (respecting the deadline already set
// on conn by Process), then opportunistically drains any further
// datagrams that are immediately available without blocking. bufs are
// never resliced; lens[i] records the byte count written into bufs[i].
func receiveBatch(conn *net.UDPConn, bufs [][]byte, lens []int) (int, error) {
	if len(bufs) == 0 {
		return 0, nil
	}
	n, _, err := conn.ReadFromUDP(bufs[0])
	if err != nil {
		return 0, err
	}
	lens[0] = n
	count := 1
	for count < len(bufs) {
		_ = conn.SetReadDeadline(time.Now())
		nn, _, err := conn.ReadFromUDP(bufs[count])
		if err != nil {
			break
		}
		lens[count] = nn
		count++
	}
	return count, nil
}
