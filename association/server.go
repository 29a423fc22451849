package association

import (
	"net"
	"sync"

	"github.com/younglifestyle/dicom4go/acse"
	"github.com/younglifestyle/dicom4go/common"
	"github.com/younglifestyle/dicom4go/dimse"
	"github.com/younglifestyle/dicom4go/transport"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// ServerConfig configures an acceptor listening for associations.
type ServerConfig struct {
	Addr    string
	Workers int
	// EchoSCP answers C-ECHO when no Handler is set, and adds the
	// Verification context when Supported is empty.
	EchoSCP              bool
	RequireCalledAETitle bool
	CallingAETitles      []string
	Supported            []acse.PresentationContext

	// Handler runs on the worker of each established association. The
	// association is released or aborted by the peer after it returns.
	Handler func(*Association)
}

// Server accepts associations on a bounded worker pool. Handlers bound on
// the server apply to every association, current and future.
type Server struct {
	cfg      ServerConfig
	opts     Options
	logger   common.Logger
	listener *transport.Listener
	events   *common.Events

	mu     sync.Mutex
	active map[*Association]struct{}
	closed *atomic.Bool
}

func NewServer(cfg ServerConfig, opts ...Option) (*Server, error) {
	o := buildOptions(opts)
	if len(cfg.Supported) == 0 && cfg.EchoSCP {
		cfg.Supported = []acse.PresentationContext{{
			AbstractSyntax:   acse.VerificationSOPClass,
			TransferSyntaxes: acse.DefaultTransferSyntaxes,
		}}
	}

	s := &Server{
		cfg:    cfg,
		logger: o.Logger,
		events: common.NewEvents(o.Logger),
		active: make(map[*Association]struct{}),
		closed: atomic.NewBool(false),
	}
	for name, fns := range o.Handlers {
		for _, fn := range fns {
			s.events.Bind(name, fn)
		}
	}
	o.Handlers = nil
	s.opts = o

	l, err := transport.Listen(cfg.Addr, cfg.Workers, s.handle, o.Logger)
	if err != nil {
		return nil, err
	}
	s.listener = l
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Close.
func (s *Server) Serve() error {
	s.logger.Info("dicom server listening", "addr", s.Addr().String(), "ae", s.opts.AETitle)
	return s.listener.Serve()
}

// Bind adds fn to the server and to every active association.
func (s *Server) Bind(event string, fn common.Handler) common.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.events.Bind(event, fn)
	for a := range s.active {
		a.events.Attach(event, h)
	}
	return h
}

// Unbind removes h from the server and from every active association.
func (s *Server) Unbind(event string, h common.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for a := range s.active {
		a.events.Unbind(event, h)
	}
	return s.events.Unbind(event, h)
}

// Active returns the associations currently served.
func (s *Server) Active() []*Association {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Association, 0, len(s.active))
	for a := range s.active {
		out = append(out, a)
	}
	return out
}

// Close stops listening and aborts every active association.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.listener.Close()
	for _, a := range s.Active() {
		err = multierr.Append(err, a.Abort())
	}
	return err
}

func (s *Server) handle(t transport.Transport) {
	var current *Association
	policy := acse.Policy{
		AETitle:              s.opts.AETitle,
		RequireCalledAETitle: s.cfg.RequireCalledAETitle,
		CallingAETitles:      s.cfg.CallingAETitles,
		Supported:            s.cfg.Supported,
	}
	a, err := accept(t, policy, s.opts, func(a *Association) {
		current = a
		s.mu.Lock()
		defer s.mu.Unlock()
		for name, handles := range s.events.Bindings() {
			for _, h := range handles {
				a.events.Attach(name, h)
			}
		}
		s.active[a] = struct{}{}
	})
	defer s.remove(current)
	if err != nil {
		s.logger.Info("association not established", "error", err)
		return
	}

	switch {
	case s.cfg.Handler != nil:
		s.cfg.Handler(a)
	case s.cfg.EchoSCP:
		ServeEcho(a)
	}
	<-a.Done()
}

func (s *Server) remove(a *Association) {
	if a == nil {
		return
	}
	s.mu.Lock()
	delete(s.active, a)
	s.mu.Unlock()
}

// ServeEcho answers C-ECHO-RQ with success and any other request with
// an unrecognized operation status until the association ends.
func ServeEcho(a *Association) {
	for {
		ctxID, msg := a.dimse.GetMessage(-1)
		if msg == nil {
			return
		}
		switch {
		case msg.IsResponse():
			a.logger.Warn("unexpected DIMSE response", "message", msg)
			continue
		case msg.CommandField() == dimse.CCancelRQ:
			continue
		}

		status := dimse.StatusUnrecognizedOperation
		if msg.CommandField() == dimse.CEchoRQ {
			status = dimse.StatusSuccess
		}
		if err := a.SendMessage(dimse.NewResponse(msg, status, nil), ctxID, dimse.PriorityMedium); err != nil {
			a.logger.Warn("sending response failed", "message", msg, "error", err)
			return
		}
	}
}
