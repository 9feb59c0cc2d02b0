// Package wurtc implements a minimal WebRTC data-channel server core:
// enough STUN, DTLS, and SCTP to take a browser's SDP offer, complete
// connectivity checks and a DTLS handshake, and exchange data-channel
// messages — all driven from a single dispatch goroutine via HandleUDP
// and Update.
package wurtc

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"golang.org/x/time/rate"

	"github.com/suzu-dev/wurtc/internal/arena"
	"github.com/suzu-dev/wurtc/internal/creds"
	"github.com/suzu-dev/wurtc/internal/dtlsengine"
	"github.com/suzu-dev/wurtc/internal/hostconfig"
	"github.com/suzu-dev/wurtc/internal/pool"
	"github.com/suzu-dev/wurtc/internal/ringqueue"
	"github.com/suzu-dev/wurtc/internal/sdpneg"
	"github.com/suzu-dev/wurtc/internal/selfcert"
	"github.com/suzu-dev/wurtc/internal/stun"
)

const (
	defaultMaxClients = 256
	arenaCapacity     = 1 << 20
	eventQueueDepth   = 1024

	// unauthenticatedStunRate throttles Binding Requests carrying
	// credentials that don't match any peer, resolving the original
	// implementation's own "send unauthorized" TODO with at least a
	// bound on the work a flood of bogus credentials can cause.
	unauthenticatedStunRate  = 20
	unauthenticatedStunBurst = 40
)

// Host owns every peer, the shared scratch arena, and the pending
// event queue. All of its methods except SetUDPWriteFunc/SetErrorFunc/
// SetUserData-on-a-Peer are meant to be called from a single goroutine
// — the same goroutine that owns the UDP socket.
type Host struct {
	cfg  hostconfig.Config
	cert *selfcert.Cert

	peers *pool.Pool[Peer]
	live  []*Peer

	byAddr  map[netip.AddrPort]*Peer
	byCreds map[credKey]*Peer

	arena  *arena.Arena
	events *ringqueue.Queue[Event]

	writeUDP func(data []byte, peer *Peer)
	errorFn  func(description string)

	unauthStunLimiter *rate.Limiter

	lastTick time.Time
}

// NewHost creates a Host bound to cfg. It generates a fresh self-signed
// certificate for the DTLS handshake; failure to do so is reported via
// the error return rather than the ErrorFunc callback, since there is
// no Host to report through yet.
func NewHost(cfg hostconfig.Config) (*Host, error) {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}

	cert, err := selfcert.New()
	if err != nil {
		return nil, fmt.Errorf("wurtc: failed to init crypto: %w", err)
	}

	h := &Host{
		cfg:               cfg,
		cert:              cert,
		peers:             pool.New[Peer](cfg.MaxClients),
		byAddr:            make(map[netip.AddrPort]*Peer),
		byCreds:           make(map[credKey]*Peer),
		arena:             arena.New(arenaCapacity),
		events:            ringqueue.New[Event](eventQueueDepth),
		writeUDP:          func([]byte, *Peer) {},
		errorFn:           func(string) {},
		unauthStunLimiter: rate.NewLimiter(unauthenticatedStunRate, unauthenticatedStunBurst),
		lastTick:          time.Now(),
	}
	return h, nil
}

// SetUDPWriteFunc installs the callback used whenever the Host needs
// to send a UDP datagram to a peer.
func (h *Host) SetUDPWriteFunc(fn func(data []byte, peer *Peer)) {
	if fn == nil {
		fn = func([]byte, *Peer) {}
	}
	h.writeUDP = fn
}

// SetErrorFunc installs the callback invoked for initialization-time
// errors reported after NewHost, mirroring the original system's
// single error-reporting hook.
func (h *Host) SetErrorFunc(fn func(description string)) {
	if fn == nil {
		fn = func(string) {}
	}
	h.errorFn = fn
}

// ExchangeSDP parses a browser's SDP offer, allocates a Peer, and
// returns the SDP answer the caller should send back through whatever
// signaling channel it uses.
func (h *Host) ExchangeSDP(offer []byte) ([]byte, *Peer, Status, error) {
	fields, err := sdpneg.ParseOffer(offer)
	if err != nil {
		return nil, nil, StatusInvalidSDP, err
	}

	p, slot, ok := h.peers.Acquire()
	if !ok {
		return nil, nil, StatusMaxClients, nil
	}
	p.slot = slot
	p.reset()
	p.remoteUser = fields.Ufrag

	localUser, err := creds.LocalUser()
	if err != nil {
		h.peers.Release(slot)
		return nil, nil, StatusInvalidSDP, fmt.Errorf("wurtc: generate local user: %w", err)
	}
	localPassword, err := creds.LocalPassword()
	if err != nil {
		h.peers.Release(slot)
		return nil, nil, StatusInvalidSDP, fmt.Errorf("wurtc: generate local password: %w", err)
	}
	p.localUser = localUser
	p.localPassword = localPassword

	localAddr := &net.UDPAddr{IP: net.ParseIP(h.cfg.Host), Port: int(h.cfg.Port)}
	p.session = dtlsengine.NewSession(h.cert.TLS, localAddr, &net.UDPAddr{})

	h.live = append(h.live, p)
	h.byCreds[credKey{local: localUser, remote: fields.Ufrag}] = p

	answer := sdpneg.GenerateAnswer(sdpneg.AnswerParams{
		Fingerprint:  h.cert.Fingerprint,
		Host:         h.cfg.Host,
		Port:         h.cfg.Port,
		LocalUfrag:   localUser,
		LocalPwd:     localPassword,
		RemoteFields: fields,
	})

	return answer, p, StatusSuccess, nil
}

// HandleUDP routes a UDP datagram to the STUN or DTLS path depending
// on its contents.
func (h *Host) HandleUDP(remote netip.AddrPort, datagram []byte) {
	if stun.LooksLikeStun(datagram) {
		h.handleStun(remote, datagram)
		return
	}

	p, ok := h.byAddr[remote]
	if !ok {
		return
	}
	p.session.Feed(datagram)
	h.drainOutbound(p)
}

// drainOutbound flushes every ciphertext datagram the DTLS session has
// buffered (handshake flights, retransmits, encrypted application
// data) since the last drain. This is the only place outbound UDP
// writes originate from the DTLS session, and it only ever runs on
// the goroutine calling HandleUDP/Update — the session's own
// background goroutine never touches the network directly.
func (h *Host) drainOutbound(p *Peer) {
	for _, data := range p.session.TakeOutbound() {
		h.writeUDP(data, p)
	}
}

// Update drains one pending event if available; otherwise it advances
// every peer's clocks (heartbeats, TTL), drains newly decoded SCTP
// datagrams from each peer's DTLS session, resets the scratch arena,
// and queues ClientLeave events for any peer that has timed out or
// been marked for removal. The embedder should call Update in a loop
// until it returns ok=false.
func (h *Host) Update() (Event, bool) {
	if evt, ok := h.events.Pop(); ok {
		return evt, true
	}

	now := time.Now()
	dt := now.Sub(h.lastTick).Seconds()
	h.lastTick = now
	h.arena.Reset()

	for _, p := range h.live {
		h.drainDecoded(p)
		h.drainOutbound(p)

		p.ttl -= dt
		p.nextHeartbeat -= dt
		if p.nextHeartbeat <= 0 {
			p.nextHeartbeat = heartbeatInterval
			h.sendHeartbeat(p)
		}
	}

	for _, p := range h.live {
		if p.ttl <= 0 || p.state == stateWaitingRemoval {
			h.events.Push(Event{Type: EventClientLeave, Peer: p})
		}
	}

	return Event{}, false
}

func (h *Host) drainDecoded(p *Peer) {
	for {
		select {
		case data, ok := <-p.session.Decoded():
			if !ok {
				p.state = stateWaitingRemoval
				return
			}
			h.handleSctp(p, data)
		default:
			return
		}
	}
}

// RemoveClient tears down a peer: it sends a final SHUTDOWN, closes the
// DTLS session, and releases the pool slot. Update does not do this
// automatically on ClientLeave so the embedder has a chance to flush
// its own per-peer state first.
func (h *Host) RemoveClient(p *Peer) {
	for i, live := range h.live {
		if live != p {
			continue
		}
		h.sendShutdown(p)
		h.drainOutbound(p)
		p.session.Close()
		p.state = stateDead

		delete(h.byAddr, p.addr)
		delete(h.byCreds, credKey{local: p.localUser, remote: p.remoteUser})
		h.peers.Release(p.slot)

		h.live[i] = h.live[len(h.live)-1]
		h.live = h.live[:len(h.live)-1]
		return
	}
}

