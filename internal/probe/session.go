package probe

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	"github.com/tkjaer/gtping/internal/gtp"
)

const (
	// trackSlots is the size of the circular RTT and match buffers.
	// Sequence numbers alias modulo trackSlots.
	trackSlots = 1024

	recvBufferSize = 1024

	// maxTimeout stands in for "wait indefinitely" so that a read always
	// has a deadline
	maxTimeout = 100 * 365 * 24 * time.Hour
)

// ErrBind is returned when the UDP endpoint for a target cannot be set up
var ErrBind = errors.New("cannot bind UDP endpoint")

// SessionConfig holds the settings of a single target's session
type SessionConfig struct {
	Target   *net.UDPAddr
	Source   netip.Addr // zero value = any
	Count    uint
	Interval time.Duration
	Timeout  time.Duration // 0 = wait indefinitely
	TOS      int
	TTL      int
}

// Session probes one target. It is owned by a single goroutine from
// creation until its stats have been taken.
type Session struct {
	config SessionConfig
	conn   net.Conn
	now    func() time.Time
	wait   func(ctx context.Context, d time.Duration)

	seq     uint16
	packet  []byte
	recvBuf [recvBufferSize]byte

	sent       uint64
	received   uint64
	duplicates uint64
	refused    uint64
	timedOut   uint64

	rtts    [trackSlots]float64 // RTT in ms of the last response per slot, 0 = none
	matches [trackSlots]uint64  // responses seen per slot

	// start carries both the wall clock epoch and the monotonic reading
	start    time.Time
	lastSend time.Time
}

// NewSession opens a UDP socket towards cfg.Target.
func NewSession(cfg SessionConfig) (*Session, error) {
	conn, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return newSession(cfg, conn, time.Now), nil
}

func newSession(cfg SessionConfig, conn net.Conn, now func() time.Time) *Session {
	s := &Session{
		config: cfg,
		conn:   conn,
		now:    now,
		wait:   sleep,
	}
	s.start = now()
	s.lastSend = s.start
	slog.Debug("Session created", "target", s.Target(), "source", conn.LocalAddr().String())
	return s
}

func dial(cfg SessionConfig) (*net.UDPConn, error) {
	var laddr *net.UDPAddr
	if cfg.Source.IsValid() {
		laddr = net.UDPAddrFromAddrPort(netip.AddrPortFrom(cfg.Source, 0))
	}
	conn, err := net.DialUDP("udp", laddr, cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrBind, cfg.Target, err)
	}
	if err := setSocketOptions(conn, cfg.TOS, cfg.TTL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w for %s: %v", ErrBind, cfg.Target, err)
	}
	return conn, nil
}

// Target returns the peer endpoint as a string
func (s *Session) Target() string {
	return s.config.Target.String()
}

// Close releases the socket
func (s *Session) Close() error {
	return s.conn.Close()
}

// Run sends the configured number of Echo Requests, one at a time. It
// returns early with the context's error if ctx is cancelled; the counters
// collected so far stay valid.
func (s *Session) Run(ctx context.Context) error {
	slog.Debug("Start probing", "target", s.Target(), "count", s.config.Count)

	// Unblock a pending read when the context is cancelled
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	for range s.config.Count {
		if ctx.Err() != nil {
			break
		}
		s.probe(ctx)
	}

	slog.Debug("Finished probing",
		"target", s.Target(),
		"epoch_ms", s.start.UnixMilli(),
		"sent", s.sent,
		"received", s.received,
		"duplicates", s.duplicates,
		"refused", s.refused,
		"timed_out", s.timedOut,
		"seq", s.seq,
	)
	return ctx.Err()
}

// probe runs a single send / wait iteration. Every iteration that runs to
// completion increments exactly one of received, timedOut and refused.
func (s *Session) probe(ctx context.Context) {
	seq := s.seq
	s.packet = gtp.EncodeEchoRequest(seq)

	if _, err := s.conn.Write(s.packet); err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			slog.Warn("Connection refused", "target", s.Target(), "seq", seq)
		} else {
			slog.Warn("Failed to send echo request", "target", s.Target(), "seq", seq, "error", err)
		}
		// Never in flight, so no wait and no interval
		s.refused++
		return
	}
	slog.Debug("Sent echo request", "target", s.Target(), "seq", seq, "bytes", hex.EncodeToString(s.packet))

	s.sent++
	s.seq++
	s.lastSend = s.now()

	if err := s.conn.SetReadDeadline(s.lastSend.Add(s.timeout())); err != nil {
		slog.Debug("Failed to set read deadline", "target", s.Target(), "error", err)
	}
	if ctx.Err() != nil {
		return
	}

	n, err := s.conn.Read(s.recvBuf[:])
	recvTime := s.now()
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return
	case errors.Is(err, os.ErrDeadlineExceeded):
		slog.Debug("Timed out", "target", s.Target(), "seq", seq)
		s.timedOut++
		return
	default:
		slog.Warn("Port closed", "target", s.Target(), "seq", seq, "error", err)
		s.seq++
		if errors.Is(err, syscall.ECONNREFUSED) {
			s.refused++
		} else {
			s.timedOut++
		}
		s.wait(ctx, s.config.Interval)
		return
	}

	slog.Debug("Received data", "target", s.Target(), "bytes", hex.EncodeToString(s.recvBuf[:n]))
	resp, err := gtp.DecodeEchoResponse(s.recvBuf[:n])
	if err != nil {
		slog.Debug("Discarding response", "target", s.Target(), "seq", seq, "error", err)
		s.timedOut++
		return
	}

	rtt := float64(recvTime.Sub(s.lastSend)) / float64(time.Millisecond)

	// Some peers leave out the sequence number, in which case the reply
	// belongs to the request just sent
	respSeq := seq
	if resp.HasSequence {
		respSeq = resp.Sequence
	}
	dup := s.record(respSeq, rtt)

	slog.Debug("Received echo response",
		"target", s.Target(),
		"len", n,
		"ver", resp.Version,
		"seq", respSeq,
		"rtt_ms", rtt,
		"dup", dup,
	)

	s.wait(ctx, s.config.Interval)
}

// record stores a matched response and reports whether it was a duplicate
func (s *Session) record(seq uint16, rtt float64) bool {
	slot := int(seq) % trackSlots
	s.rtts[slot] = rtt
	s.matches[slot]++
	s.received++
	if s.matches[slot] > 1 {
		s.duplicates++
		return true
	}
	return false
}

func (s *Session) timeout() time.Duration {
	if s.config.Timeout == 0 {
		return maxTimeout
	}
	return s.config.Timeout
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
