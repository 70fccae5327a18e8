package udpsource

import (
	"net"
	"sync"
	"testing"

	"github.com/geontech/composite-dsp/internal/component"
)

func TestIsMulticast(t *testing.T) {
	cases := []struct {
		ip   string
		want bool
	}{
		{"239.1.2.3", true},
		{"224.0.0.1", true},
		{"192.168.1.1", false},
		{"127.0.0.1", false},
		{"0.0.0.0", false},
	}
	for _, c := range cases {
		got := isMulticast(net.ParseIP(c.ip))
		if got != c.want {
			t.Errorf("isMulticast(%s) = %v, want %v", c.ip, got, c.want)
		}
	}
}

func TestMsgGroupRingPopPush(t *testing.T) {
	s := &Source{}
	s.queueSize = 2
	s.cond = sync.NewCond(&s.mu)
	s.queue = []*msgGroup{
		newMsgGroup(4, 16),
		newMsgGroup(4, 16),
	}

	first := s.pop()
	if first == nil {
		t.Fatal("expected a group from a non-empty ring")
	}
	second := s.pop()
	if second == nil {
		t.Fatal("expected a second group")
	}
	if s.pop() != nil {
		t.Fatal("ring should be empty after popping both groups")
	}

	s.push(first)
	if got := s.pop(); got != first {
		t.Fatal("pushed group should be the next one popped")
	}
}

func TestNewMsgGroupAllocatesBuffers(t *testing.T) {
	g := newMsgGroup(8, 128)
	if len(g.bufs) != 8 {
		t.Fatalf("got %d buffers, want 8", len(g.bufs))
	}
	for _, b := range g.bufs {
		if len(b) != 128 {
			t.Fatalf("buffer length = %d, want 128", len(b))
		}
	}
}

func TestInitializeRejectsInvalidIPAddr(t *testing.T) {
	out := component.NewPort[[][]byte](1)
	src := New(Params{IPAddr: "not-an-ip", Port: 0, MsgSize: 16, NumMsgs: 4}, out)
	if err := src.Initialize(); err == nil {
		t.Fatal("expected an error for an invalid ip_addr")
	}
}

func TestInitializeAndStopUnicastLoopback(t *testing.T) {
	out := component.NewPort[[][]byte](1)
	src := New(Params{IPAddr: "0.0.0.0", Port: 0, MsgSize: 64, NumMsgs: 4}, out)
	if err := src.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if len(src.queue) != 2 {
		t.Fatalf("recycle ring size = %d, want num_msgs/2 = 2", len(src.queue))
	}
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
