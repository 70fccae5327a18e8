// Package udpsource ingests batches of UDP datagrams into fixed-size
// message groups recycled through a bounded ring. Each received datagram
// is copied out of its group before it is forwarded, so the group's
// buffers can be reused for the next receive.
package udpsource

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/geontech/composite-dsp/internal/component"
	"github.com/geontech/composite-dsp/internal/nat"
)

const recvBufSizeDefault = 0xFFFF

// Params configures a Source.
type Params struct {
	Interface   string
	IPAddr      string
	Port        uint32
	RecvBufSize uint32
	MsgSize     uint32
	NumMsgs     uint32
	// NATMap opts into mapping Port on a NAT gateway via internal/nat,
	// for ingesting a multicast relay tunneled from behind a NAT
	// boundary. Off by default.
	NATMap bool
}

// msgGroup is a reusable set of NumMsgs receive buffers, each MsgSize
// bytes, analogous to the original's mmsgs scatter-gather group.
type msgGroup struct {
	bufs [][]byte
}

func newMsgGroup(numMsgs, msgSize uint32) *msgGroup {
	bufs := make([][]byte, numMsgs)
	for i := range bufs {
		bufs[i] = make([]byte, msgSize)
	}
	return &msgGroup{bufs: bufs}
}

// Source is a UDP ingress component: Process pulls one recycled msgGroup
// off the ring, performs one batched receive into it, and forwards the
// populated subset downstream.
type Source struct {
	params    Params
	out       *component.Port[[][]byte]
	conn      *net.UDPConn
	natMapper *nat.Mapper

	queueSize int
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []*msgGroup
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New constructs a Source writing batches to out.
func New(p Params, out *component.Port[[][]byte]) *Source {
	if p.RecvBufSize == 0 {
		p.RecvBufSize = recvBufSizeDefault
	}
	return &Source{params: p, out: out}
}

// Initialize binds the socket (joining the multicast group named by
// IPAddr if it falls in 224.0.0.0/4) and pre-fills the recycle ring.
func (s *Source) Initialize() error {
	ip := net.ParseIP(s.params.IPAddr)
	if ip == nil {
		return fmt.Errorf("udpsource: invalid ip_addr %q", s.params.IPAddr)
	}
	multicast := isMulticast(ip)

	var conn *net.UDPConn
	var err error
	if multicast {
		var iface *net.Interface
		if s.params.Interface != "" {
			iface, err = net.InterfaceByName(s.params.Interface)
			if err != nil {
				return fmt.Errorf("udpsource: resolve interface %q: %w", s.params.Interface, err)
			}
		}
		conn, err = net.ListenMulticastUDP("udp4", iface, &net.UDPAddr{IP: ip, Port: int(s.params.Port)})
	} else {
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{Port: int(s.params.Port)})
	}
	if err != nil {
		return fmt.Errorf("udpsource: bind: %w", err)
	}
	_ = conn.SetReadBuffer(int(s.params.RecvBufSize))
	s.conn = conn

	if s.params.NATMap {
		mapper, _, err := nat.Discover()
		if err != nil {
			return fmt.Errorf("udpsource: nat discover: %w", err)
		}
		if err := mapper.MapIngestPort(int(s.params.Port)); err != nil {
			return fmt.Errorf("udpsource: nat map: %w", err)
		}
		s.natMapper = mapper
	}

	s.queueSize = int(s.params.NumMsgs / 2)
	s.cond = sync.NewCond(&s.mu)
	s.stopCh = make(chan struct{})
	for i := 0; i < s.queueSize; i++ {
		s.queue = append(s.queue, newMsgGroup(s.params.NumMsgs, s.params.MsgSize))
	}
	return nil
}

func isMulticast(ip net.IP) bool {
	return ip.IsMulticast()
}

// Start launches the background filler goroutine that keeps the recycle
// ring topped up.
func (s *Source) Start() error {
	s.wg.Add(1)
	go s.keepFull()
	return nil
}

// Stop signals the filler goroutine to exit, waits for it, and closes
// the socket (and any NAT mapping).
func (s *Source) Stop() error {
	close(s.stopCh)
	s.cond.Broadcast()
	s.wg.Wait()
	if s.natMapper != nil {
		s.natMapper.Close()
	}
	return s.conn.Close()
}

// Process pulls one recycled msgGroup, performs one batched receive with
// a 1s timeout, and forwards the populated datagrams downstream. It
// always returns NoYield: there is either more backlog to drain or
// another receive to attempt.
func (s *Source) Process() (component.Retval, error) {
	group := s.pop()
	if group == nil {
		return component.NoYield, nil
	}

	lens := make([]int, len(group.bufs))
	_ = s.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	n, err := receiveBatch(s.conn, group.bufs, lens)
	if n > 0 {
		now := time.Now()
		ts := component.Timestamp{
			Seconds:     uint32(now.Unix()),
			Picoseconds: uint64(now.Nanosecond()) * 1000,
		}
		// The group's buffers are about to be recycled for the next
		// receive, so each datagram is copied out rather than moved.
		batch := make([][]byte, n)
		for i := 0; i < n; i++ {
			batch[i] = append([]byte(nil), group.bufs[i][:lens[i]]...)
		}
		s.out.Send(batch, ts)
	}
	s.push(group)
	if err != nil && !isTimeout(err) {
		return component.NoYield, err
	}
	return component.NoYield, nil
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}

func (s *Source) pop() *msgGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	g := s.queue[0]
	s.queue = s.queue[1:]
	s.cond.Signal()
	return g
}

func (s *Source) push(g *msgGroup) {
	s.mu.Lock()
	s.queue = append(s.queue, g)
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *Source) keepFull() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.mu.Lock()
		for len(s.queue) >= s.queueSize {
			select {
			case <-s.stopCh:
				s.mu.Unlock()
				return
			default:
			}
			s.cond.Wait()
		}
		s.queue = append(s.queue, newMsgGroup(s.params.NumMsgs, s.params.MsgSize))
		s.mu.Unlock()
	}
}
