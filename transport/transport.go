// Package transport provides the byte stream the Upper Layer runs on.
package transport

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed = errors.New("transport: closed")
)

// Transport is a blocking byte stream to one peer.
type Transport interface {
	// Send writes all of b.
	Send(b []byte) error
	// Receive reads exactly n bytes.
	Receive(n int) ([]byte, error)
	// PeekNextPDUType returns the next byte without consuming it.
	PeekNextPDUType() (byte, error)
	IsAlive() bool
	Close() error
}

// Deadliner is implemented by transports whose reads can time out.
type Deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Dialer opens transports to a peer address.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Transport, error)
}

// IsTimeout reports whether err is a read deadline expiry.
func IsTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
