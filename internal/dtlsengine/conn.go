package dtlsengine

import (
	"net"
	"sync"
	"time"
)

// memConn is a net.Conn that has no real socket behind it. Inbound
// datagrams are queued by Feed (called from the Host's single dispatch
// goroutine); outbound datagrams produced by the DTLS stack are
// buffered into outbox rather than written to a real socket directly —
// the Host drains them with TakeOutbound and performs the actual UDP
// send itself, so every externally visible write happens synchronously
// from the dispatch goroutine, never from this connection's background
// handshake/read loop.
type memConn struct {
	local, remote net.Addr

	inbound chan []byte

	outboxMu sync.Mutex
	outbox   [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newMemConn(local, remote net.Addr) *memConn {
	return &memConn{
		local:   local,
		remote:  remote,
		inbound: make(chan []byte, 32),
		closed:  make(chan struct{}),
	}
}

// Feed enqueues a datagram received from the real UDP socket for the
// DTLS stack to consume via Read. It drops the datagram if the
// inbound queue is full or the connection is closed, rather than
// blocking the caller's dispatch loop.
func (c *memConn) Feed(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case c.inbound <- cp:
	case <-c.closed:
	default:
	}
}

func (c *memConn) Read(b []byte) (int, error) {
	select {
	case data := <-c.inbound:
		n := copy(b, data)
		return n, nil
	case <-c.closed:
		return 0, net.ErrClosed
	}
}

func (c *memConn) Write(b []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	c.outboxMu.Lock()
	c.outbox = append(c.outbox, cp)
	c.outboxMu.Unlock()
	return len(b), nil
}

// takeOutbound returns and clears every datagram buffered since the
// last call.
func (c *memConn) takeOutbound() [][]byte {
	c.outboxMu.Lock()
	defer c.outboxMu.Unlock()
	if len(c.outbox) == 0 {
		return nil
	}
	out := c.outbox
	c.outbox = nil
	return out
}

func (c *memConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *memConn) LocalAddr() net.Addr  { return c.local }
func (c *memConn) RemoteAddr() net.Addr { return c.remote }

func (c *memConn) SetDeadline(t time.Time) error      { return nil }
func (c *memConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *memConn) SetWriteDeadline(t time.Time) error { return nil }
