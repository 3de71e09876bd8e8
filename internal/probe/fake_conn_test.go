package probe

import (
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/tkjaer/gtping/internal/gtp"
)

// fakeClock is advanced by fakeConn reads to simulate round-trip times
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// readResult scripts the outcome of one Read on fakeConn
type readResult struct {
	delay time.Duration
	data  []byte
	err   error
}

func reply(seq uint16, rtt time.Duration) readResult {
	return readResult{delay: rtt, data: gtp.EncodeEchoResponse(seq)}
}

func noReply(d time.Duration) readResult {
	return readResult{delay: d, err: os.ErrDeadlineExceeded}
}

var errRefused = &net.OpError{Op: "write", Net: "udp", Err: os.NewSyscallError("write", syscall.ECONNREFUSED)}

// fakeConn is a scripted net.Conn. Reads past the end of the script time out.
type fakeConn struct {
	clock    *fakeClock
	writeErr error
	reads    []readResult

	mu       sync.Mutex
	writes   [][]byte
	deadline time.Time
	closed   bool
}

func (c *fakeConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	if len(c.reads) == 0 {
		c.mu.Unlock()
		return 0, os.ErrDeadlineExceeded
	}
	r := c.reads[0]
	c.reads = c.reads[1:]
	c.mu.Unlock()

	c.clock.Advance(r.delay)
	if r.err != nil {
		return 0, r.err
	}
	return copy(b, r.data), nil
}

func (c *fakeConn) Write(b []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("198.51.100.1"), Port: 40000}
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("192.0.2.10"), Port: gtp.DefaultPort}
}

func (c *fakeConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// newTestSession builds a session on a fakeConn that plays the given reads
func newTestSession(count uint, reads ...readResult) (*Session, *fakeConn, *fakeClock) {
	clock := newFakeClock()
	conn := &fakeConn{clock: clock, reads: reads}
	cfg := SessionConfig{
		Target:  &net.UDPAddr{IP: net.ParseIP("192.0.2.10"), Port: gtp.DefaultPort},
		Count:   count,
		Timeout: 100 * time.Millisecond,
	}
	return newSession(cfg, conn, clock.Now), conn, clock
}
