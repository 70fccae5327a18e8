//go:build linux

package udpsource

import (
	"net"

	"golang.org/x/sys/unix"
)

// receiveBatch performs one batched receive into bufs using recvmmsg,
// mirroring the original component's single recvmmsg(2) call per
// process() step. lens[i] receives the number of bytes written into
// bufs[i] for each of the first n datagrams; bufs themselves are never
// resliced so the caller's recycle ring keeps its full capacity.
func receiveBatch(conn *net.UDPConn, bufs [][]byte, lens []int) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}

	msgs := make([]unix.Iovec, len(bufs))
	hdrs := make([]unix.Mmsghdr, len(bufs))
	for i := range bufs {
		if len(bufs[i]) == 0 {
			continue
		}
		msgs[i].Base = &bufs[i][0]
		msgs[i].SetLen(len(bufs[i]))
		hdrs[i].Hdr.Iov = &msgs[i]
		hdrs[i].Hdr.Iovlen = 1
	}

	var n int
	var recvErr error
	ctrlErr := raw.Read(func(fd uintptr) bool {
		n, recvErr = unix.Recvmmsg(int(fd), hdrs, unix.MSG_DONTWAIT)
		if recvErr == unix.EAGAIN || recvErr == unix.EWOULDBLOCK {
			return false
		}
		return true
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	if recvErr == unix.EAGAIN || recvErr == unix.EWOULDBLOCK {
		return 0, nil
	}
	for i := 0; i < n; i++ {
		lens[i] = int(hdrs[i].Len)
	}
	return n, recvErr
}
