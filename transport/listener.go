package transport

import (
	"errors"
	"fmt"
	"net"

	"github.com/panjf2000/ants/v2"
	"github.com/younglifestyle/dicom4go/common"
	"go.uber.org/atomic"
)

// DefaultWorkers bounds concurrent connections handled by a Listener.
const DefaultWorkers = 64

// Listener accepts TCP connections and runs a handler for each on a
// bounded worker pool. A handler owns its transport until it returns.
type Listener struct {
	ln     net.Listener
	pool   *ants.PoolWithFunc
	logger common.Logger
	closed atomic.Bool
}

// Listen binds addr. workers <= 0 selects DefaultWorkers.
func Listen(addr string, workers int, handler func(Transport), logger common.Logger) (*Listener, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{ln: ln, logger: common.OrNop(logger)}

	l.pool, err = ants.NewPoolWithFunc(workers, func(args interface{}) {
		t, ok := args.(Transport)
		if !ok {
			l.logger.Error("listener pool args type error", "type", fmt.Sprintf("%T", args))
			return
		}
		defer t.Close()
		handler(t)
	},
		ants.WithPanicHandler(func(a any) {
			l.logger.Error("connection handler panic", "info", a)
		}),
	)
	if err != nil {
		ln.Close()
		return nil, err
	}
	return l, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts until Close is called. It returns nil after Close.
func (l *Listener) Serve() error {
	for {
		c, err := l.ln.Accept()
		if err != nil {
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		t := NewConn(c, 0, 0)
		l.logger.Debug("transport connection indication", "peer", t.RemoteAddr())
		if err := l.pool.Invoke(t); err != nil {
			l.logger.Warn("dropping connection", "peer", t.RemoteAddr(), "error", err)
			t.Close()
		}
	}
}

// Running reports how many handlers are active.
func (l *Listener) Running() int {
	return l.pool.Running()
}

// Close stops accepting and releases idle workers. Handlers still running
// keep their transports until they return.
func (l *Listener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	err := l.ln.Close()
	l.pool.Release()
	return err
}
