package main

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"keyloop/internal/dlist"
	"keyloop/internal/wire"
)

// idleTimeoutMs is the maximum time a connection may sit without activity
// before the server closes it.
const idleTimeoutMs = 180 * 1000

// maxExpiryWork bounds the number of keys processTimers will expire in a
// single pass, so a burst of simultaneous TTL expirations never stalls
// the event loop.
const maxExpiryWork = 2000

// Server owns the listening socket, the keyspace, and every connection's
// poll state. There is exactly one Server per process; it is not
// goroutine-safe and is meant to be driven entirely from Run's loop.
type Server struct {
	log      *zap.Logger
	listenFD int
	ks       *Keyspace
	conns    map[int]*Conn
	idle     *dlist.Node[*Conn]
}

// NewServer binds and listens on port, returning a Server ready for Run.
func NewServer(log *zap.Logger, port int, poolSize int) (*Server, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, fmt.Errorf("setsockopt(SO_REUSEADDR): %w", err)
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set listener nonblocking: %w", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &Server{
		log:      log,
		listenFD: fd,
		ks:       NewKeyspace(poolSize),
		conns:    make(map[int]*Conn),
		idle:     dlist.NewSentinel[*Conn](),
	}, nil
}

// Close tears down the listening socket and every open connection.
func (s *Server) Close() {
	for fd, c := range s.conns {
		_ = unix.Close(fd)
		c.IdleNode.Detach()
	}
	_ = unix.Close(s.listenFD)
	s.ks.Close()
}

// Run drives the single-threaded event loop until stop is closed.
func (s *Server) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		pollFDs := make([]unix.PollFd, 0, len(s.conns)+1)
		pollFDs = append(pollFDs, unix.PollFd{Fd: int32(s.listenFD), Events: unix.POLLIN})
		for _, c := range s.conns {
			var events int16 = unix.POLLERR
			if c.WantRead {
				events |= unix.POLLIN
			}
			if c.WantWrite {
				events |= unix.POLLOUT
			}
			pollFDs = append(pollFDs, unix.PollFd{Fd: int32(c.FD), Events: events})
		}

		timeout := s.nextTimeoutMs()
		if timeout < 0 || timeout > 1000 {
			// Re-check stop at least once a second even with no timers due,
			// rather than blocking in poll() indefinitely.
			timeout = 1000
		}
		n, err := unix.Poll(pollFDs, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			s.processTimers()
			continue
		}

		if pollFDs[0].Revents != 0 {
			s.handleAccept()
		}
		now := monotonicMs()
		for _, pfd := range pollFDs[1:] {
			if pfd.Revents == 0 {
				continue
			}
			c, ok := s.conns[int(pfd.Fd)]
			if !ok {
				continue
			}

			c.LastActive = now
			c.IdleNode.InsertBefore(s.idle)

			if pfd.Revents&unix.POLLIN != 0 {
				s.handleRead(c)
			}
			if pfd.Revents&unix.POLLOUT != 0 {
				s.handleWrite(c)
			}
			if pfd.Revents&unix.POLLERR != 0 || c.WantClose {
				s.destroyConn(c)
			}
		}
		s.processTimers()
	}
}

func (s *Server) handleAccept() {
	connFD, _, err := unix.Accept(s.listenFD)
	if err != nil {
		if err != unix.EAGAIN {
			s.log.Warn("accept failed", zap.Error(err))
		}
		return
	}
	if err := unix.SetNonblock(connFD, true); err != nil {
		s.log.Warn("set connection nonblocking failed", zap.Error(err))
		_ = unix.Close(connFD)
		return
	}

	c := newConn(connFD)
	c.LastActive = monotonicMs()
	c.IdleNode.InsertBefore(s.idle)
	s.conns[connFD] = c
	s.log.Debug("accepted connection", zap.Int("fd", connFD))
}

func (s *Server) destroyConn(c *Conn) {
	_ = unix.Close(c.FD)
	delete(s.conns, c.FD)
	c.IdleNode.Detach()
	s.log.Debug("destroyed connection", zap.Int("fd", c.FD))
}

func (s *Server) handleRead(c *Conn) {
	var buf [readBufSize]byte
	n, err := unix.Read(c.FD, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		s.log.Warn("read error", zap.Int("fd", c.FD), zap.Error(err))
		c.WantClose = true
		return
	}
	if n == 0 {
		if len(c.Incoming) == 0 {
			s.log.Debug("client closed", zap.Int("fd", c.FD))
		} else {
			s.log.Debug("unexpected eof mid-frame", zap.Int("fd", c.FD))
		}
		c.WantClose = true
		return
	}
	c.Incoming = append(c.Incoming, buf[:n]...)

	now := monotonicMs()
	for s.tryOneRequest(c, now) {
	}

	if len(c.Outgoing) > 0 {
		c.WantRead = false
		c.WantWrite = true
		s.handleWrite(c)
	}
}

// tryOneRequest parses and dispatches at most one complete frame buffered
// in c.Incoming, reporting whether it did so.
func (s *Server) tryOneRequest(c *Conn, nowMs int64) bool {
	length, ok, err := wire.ReadFrameLen(c.Incoming)
	if !ok {
		return false
	}
	if err != nil {
		s.log.Debug("oversize frame", zap.Int("fd", c.FD))
		c.WantClose = true
		return false
	}
	if 4+int(length) > len(c.Incoming) {
		return false
	}

	body := c.Incoming[4 : 4+length]
	args, err := wire.ParseRequest(body)
	if err != nil {
		s.log.Debug("malformed request", zap.Int("fd", c.FD))
		c.WantClose = true
		return false
	}

	w := wire.NewWriter()
	dispatch(s, args, w, nowMs)
	c.Outgoing = append(c.Outgoing, w.Bytes()...)

	c.Incoming = c.Incoming[4+length:]
	return true
}

func (s *Server) handleWrite(c *Conn) {
	n, err := unix.Write(c.FD, c.Outgoing)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		s.log.Warn("write error", zap.Int("fd", c.FD), zap.Error(err))
		c.WantClose = true
		return
	}
	c.Outgoing = c.Outgoing[n:]
	if len(c.Outgoing) == 0 {
		c.WantRead = true
		c.WantWrite = false
	}
}

// nextTimeoutMs computes the poll() timeout from the soonest of the
// idle-connection deadline and the TTL heap's minimum, or -1 (block
// indefinitely) if there are no timers at all.
func (s *Server) nextTimeoutMs() int {
	nextMs := int64(-1)
	if !s.idle.Empty() {
		oldest := s.idle.Next().Owner
		nextMs = oldest.LastActive + idleTimeoutMs
	}
	if expiry := s.ks.NextExpiryMs(); expiry != math.MaxInt64 && (nextMs == -1 || expiry < nextMs) {
		nextMs = expiry
	}
	if nextMs == -1 {
		return -1
	}
	now := monotonicMs()
	if nextMs <= now {
		return 0
	}
	return int(nextMs - now)
}

// processTimers evicts idle connections and expires due keys. Key expiry
// is capped at maxExpiryWork per call; idle eviction has no cap.
func (s *Server) processTimers() {
	now := monotonicMs()
	for !s.idle.Empty() {
		oldest := s.idle.Next().Owner
		if oldest.LastActive+idleTimeoutMs >= now {
			break
		}
		s.log.Debug("evicting idle connection", zap.Int("fd", oldest.FD))
		s.destroyConn(oldest)
	}

	work := 0
	for work < maxExpiryWork {
		ent := s.ks.ExpireReadyBefore(now)
		if ent == nil {
			break
		}
		s.ks.Del(ent.Key)
		work++
	}
}

// processStart anchors monotonicMs; time.Since reads the monotonic clock.
var processStart = time.Now()

func monotonicMs() int64 {
	return time.Since(processStart).Milliseconds()
}
