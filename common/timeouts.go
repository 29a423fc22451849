package common

import "time"

type Timeouts struct {
	// default 30s, bounds waiting for A-ASSOCIATE-AC/RJ and A-RELEASE-RP
	acse time.Duration
	// default 30s, bounds waiting for a complete DIMSE message; 0 waits forever
	dimse time.Duration
	// default 60s, read inactivity on an open connection; 0 disables it
	network time.Duration
	// default 30s, ARTIM: waiting for the A-ASSOCIATE-RQ or for the peer to
	// close after an abort or release
	artim time.Duration
	// default 30s, opening the transport connection
	connect time.Duration
}

func NewTimeouts() *Timeouts {
	return &Timeouts{
		acse:    30 * time.Second,
		dimse:   30 * time.Second,
		network: 60 * time.Second,
		artim:   30 * time.Second,
		connect: 30 * time.Second,
	}
}

func (t *Timeouts) ACSE() time.Duration {
	return t.acse
}

func (t *Timeouts) SetACSE(d time.Duration) {
	t.acse = d
}

func (t *Timeouts) DIMSE() time.Duration {
	return t.dimse
}

func (t *Timeouts) SetDIMSE(d time.Duration) {
	t.dimse = d
}

func (t *Timeouts) Network() time.Duration {
	return t.network
}

func (t *Timeouts) SetNetwork(d time.Duration) {
	t.network = d
}

func (t *Timeouts) ARTIM() time.Duration {
	return t.artim
}

func (t *Timeouts) SetARTIM(d time.Duration) {
	t.artim = d
}

func (t *Timeouts) Connect() time.Duration {
	return t.connect
}

func (t *Timeouts) SetConnect(d time.Duration) {
	t.connect = d
}

// Clone returns an independent copy.
func (t *Timeouts) Clone() *Timeouts {
	c := *t
	return &c
}
