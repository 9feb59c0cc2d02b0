package wurtc

import (
	"net/netip"

	"github.com/google/uuid"

	"github.com/suzu-dev/wurtc/internal/dtlsengine"
)

const (
	maxClientTTL      = 8.0 // seconds, matches the system this was modeled on
	heartbeatInterval = 4.0 // seconds
)

// dtlsSession is the subset of *dtlsengine.Session a Peer depends on.
// Tests substitute a fake implementation so SCTP dispatch logic can be
// exercised without driving a real DTLS handshake.
type dtlsSession interface {
	Feed(data []byte)
	WriteApplication(data []byte) error
	Close()
	Decoded() <-chan []byte
	TakeOutbound() [][]byte
}

var _ dtlsSession = (*dtlsengine.Session)(nil)

// Peer represents one remote endpoint from offer/answer through
// data-channel teardown. A Peer is only ever touched by the single
// goroutine that calls Host.ExchangeSDP/HandleUDP/Update/RemoveClient
// — including UserData, which an embedder should read and write from
// that same goroutine. The dtlsSession's own background goroutine
// (see internal/dtlsengine) does not count as a second caller: it
// never reaches into a Peer directly, only hands bytes across Decoded
// and TakeOutbound for the dispatch goroutine to act on.
type Peer struct {
	ID uuid.UUID

	slot int // index into the Host's peer pool

	localUser     string
	localPassword string
	remoteUser    string

	addr  netip.AddrPort
	state clientState

	localSctpPort   uint16
	remoteSctpPort  uint16
	verificationTag uint32
	remoteTSN       uint32
	tsn             uint32

	ttl           float64
	nextHeartbeat float64

	session dtlsSession

	userData any
}

// Address returns the remote UDP address this peer was last observed
// at (set by the STUN Binding Request that confirmed connectivity).
func (p *Peer) Address() netip.AddrPort {
	return p.addr
}

// UserData returns the opaque value previously set with SetUserData,
// or nil.
func (p *Peer) UserData() any {
	return p.userData
}

// SetUserData attaches an opaque value to this peer for the embedder's
// own bookkeeping.
func (p *Peer) SetUserData(v any) {
	p.userData = v
}

func (p *Peer) reset() {
	p.ID = uuid.New()
	p.state = stateDTLSHandshake
	p.remoteSctpPort = 0
	p.verificationTag = 0
	p.remoteTSN = 0
	p.tsn = 1
	p.ttl = maxClientTTL
	p.nextHeartbeat = heartbeatInterval
	p.session = nil
	p.userData = nil
}

type credKey struct {
	local, remote string
}
