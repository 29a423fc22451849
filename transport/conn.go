package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

const (
	DefaultReadBuf  = 32 * 1024
	DefaultWriteBuf = 32 * 1024
)

type deadlineConn interface {
	SetDeadline(time.Time) error
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// Conn is a Transport over a net.Conn with buffered reads and writes.
type Conn struct {
	c        net.Conn
	r        *bufio.Reader
	w        *bufio.Writer
	deadline deadlineConn

	wmu       sync.Mutex
	alive     atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps c. Buffer sizes <= 0 select the defaults.
func NewConn(c net.Conn, readBuf, writeBuf int) *Conn {
	if readBuf <= 0 {
		readBuf = DefaultReadBuf
	}
	if writeBuf <= 0 {
		writeBuf = DefaultWriteBuf
	}
	conn := &Conn{
		c: c,
		r: bufio.NewReaderSize(c, readBuf),
		w: bufio.NewWriterSize(c, writeBuf),
	}
	conn.deadline = c
	conn.alive.Store(true)
	return conn
}

func (c *Conn) Send(b []byte) error {
	if !c.alive.Load() {
		return ErrClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.w.Write(b); err != nil {
		c.alive.Store(false)
		return err
	}
	if err := c.w.Flush(); err != nil {
		c.alive.Store(false)
		return err
	}
	return nil
}

func (c *Conn) Receive(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		if !IsTimeout(err) {
			c.alive.Store(false)
		}
		return nil, err
	}
	return buf, nil
}

func (c *Conn) PeekNextPDUType() (byte, error) {
	b, err := c.r.Peek(1)
	if err != nil {
		if !IsTimeout(err) {
			c.alive.Store(false)
		}
		return 0, err
	}
	return b[0], nil
}

func (c *Conn) IsAlive() bool {
	return c.alive.Load()
}

// Close flushes what is buffered, unless a Send is in progress, and closes
// the connection. Only the first call does any work.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		wasAlive := c.alive.Swap(false)
		var flushErr error
		if wasAlive && c.wmu.TryLock() {
			flushErr = c.w.Flush()
			c.wmu.Unlock()
		}
		err := c.c.Close()
		if errors.Is(flushErr, net.ErrClosed) || errors.Is(flushErr, io.ErrClosedPipe) {
			flushErr = nil
		}
		c.closeErr = multierr.Append(flushErr, err)
	})
	return c.closeErr
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	if c.deadline != nil {
		return c.deadline.SetReadDeadline(t)
	}
	return nil
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	if c.deadline != nil {
		return c.deadline.SetWriteDeadline(t)
	}
	return nil
}

func (c *Conn) RemoteAddr() string {
	if addr := c.c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// TCPDialer dials TCP peers.
type TCPDialer struct {
	Timeout  time.Duration
	ReadBuf  int
	WriteBuf int
}

func (d TCPDialer) Dial(ctx context.Context, addr string) (Transport, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(c, d.ReadBuf, d.WriteBuf), nil
}

// Pipe returns two connected in-memory transports.
func Pipe() (*Conn, *Conn) {
	a, b := net.Pipe()
	return NewConn(a, 0, 0), NewConn(b, 0, 0)
}

// PipeDialer hands out the prepared local end of a pipe instead of dialing.
type PipeDialer struct {
	Local Transport
	Err   error
}

func (d PipeDialer) Dial(context.Context, string) (Transport, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Local, nil
}
