package wurtc

import (
	"encoding/binary"
	"math"
	"net/netip"

	"github.com/suzu-dev/wurtc/internal/creds"
	"github.com/suzu-dev/wurtc/internal/dcep"
	"github.com/suzu-dev/wurtc/internal/logx"
	"github.com/suzu-dev/wurtc/internal/sctp"
	"github.com/suzu-dev/wurtc/internal/stun"
)

func (h *Host) handleStun(remote netip.AddrPort, datagram []byte) {
	req, err := stun.ParseBindingRequest(datagram)
	if err != nil {
		return
	}

	key := credKey{local: req.LocalUser, remote: req.RemoteUser}
	p, ok := h.byCreds[key]
	if !ok {
		if h.unauthStunLimiter.Allow() {
			logx.Debug("stun binding request with unknown credentials from %s", remote)
		}
		return
	}

	// The limiter must run before VerifyMessageIntegrity, not just
	// before the log call: VerifyMessageIntegrity is an HMAC-SHA1 over
	// the datagram, and a flood of forged packets must not get that
	// work done on every single one just because logging is quiet.
	if !h.unauthStunLimiter.Allow() {
		return
	}
	if !stun.VerifyMessageIntegrity(datagram, p.localPassword) {
		logx.Debug("stun binding request with bad message integrity from %s", remote)
		return
	}

	ipv4 := remote.Addr().As4()
	response := stun.BuildSuccessResponse(req.TransactionID, ipv4, remote.Port(), p.localPassword)
	h.writeUDP(response, p)

	p.localSctpPort = remote.Port()
	p.addr = remote
	h.byAddr[remote] = p
}

func (h *Host) handleSctp(p *Peer, datagram []byte) {
	pkt, chunks, err := sctp.Parse(datagram)
	if err != nil {
		return
	}

	for _, chunk := range chunks {
		switch chunk.Type {
		case sctp.ChunkData:
			h.handleData(p, pkt, chunk)

		case sctp.ChunkInit:
			h.handleInit(p, pkt, chunk)
			return // original stops processing the rest of the packet after INIT

		case sctp.ChunkCookieEcho:
			if p.state < stateSCTPEstablished {
				p.state = stateSCTPEstablished
			}
			h.sendSctp(p, pkt.DestinationPort, pkt.SourcePort, sctp.Chunk{Type: sctp.ChunkCookieAck})

		case sctp.ChunkHeartbeat:
			p.ttl = maxClientTTL
			h.sendSctp(p, pkt.DestinationPort, pkt.SourcePort, sctp.Chunk{
				Type:      sctp.ChunkHeartbeatAck,
				Heartbeat: chunk.Heartbeat,
			})

		case sctp.ChunkHeartbeatAck:
			p.ttl = maxClientTTL

		case sctp.ChunkAbort:
			p.state = stateWaitingRemoval
			return

		case sctp.ChunkSack:
			if chunk.Sack.NumGapAckBlocks > 0 {
				h.sendSctp(p, pkt.DestinationPort, pkt.SourcePort, sctp.Chunk{
					Type:       sctp.ChunkForwardTsn,
					ForwardTsn: &sctp.ForwardTsnChunk{NewCumulativeTsn: p.tsn},
				})
			}
		}
	}
}

func (h *Host) handleData(p *Peer, pkt *sctp.Packet, chunk sctp.Chunk) {
	data := chunk.Data
	if data.TSN > p.remoteTSN {
		p.remoteTSN = data.TSN
	}
	p.ttl = maxClientTTL

	switch data.ProtoID {
	case dcep.ProtoControl:
		if mt, ok := dcep.MessageType(data.UserData); ok && mt == dcep.MessageTypeOpen {
			p.remoteSctpPort = pkt.SourcePort

			h.sendSctp(p, pkt.DestinationPort, pkt.SourcePort, sctp.Chunk{
				Type:  sctp.ChunkData,
				Flags: sctp.FlagCompleteUnreliable,
				Data: &sctp.DataChunk{
					TSN:      p.nextTSN(),
					StreamID: data.StreamID,
					ProtoID:  dcep.ProtoControl,
					UserData: dcep.BuildAck(),
				},
			})

			if p.state != stateDataChannelOpen {
				p.state = stateDataChannelOpen
				h.events.Push(Event{Type: EventClientJoin, Peer: p})
			}
		}

	case dcep.ProtoString:
		h.events.Push(Event{Type: EventTextData, Peer: p, Data: h.copyToArena(data.UserData)})

	case dcep.ProtoBinary:
		h.events.Push(Event{Type: EventBinaryData, Peer: p, Data: h.copyToArena(data.UserData)})
	}

	h.sendSctp(p, pkt.DestinationPort, pkt.SourcePort, sctp.Chunk{
		Type: sctp.ChunkSack,
		Sack: &sctp.SackChunk{
			CumulativeTsnAck: p.remoteTSN,
			AdvRecvWindow:    sctp.DefaultWindowCredit,
		},
	})
}

func (h *Host) handleInit(p *Peer, pkt *sctp.Packet, chunk sctp.Chunk) {
	init := chunk.Init
	p.verificationTag = init.InitiateTag
	p.remoteTSN = init.InitialTSN - 1

	h.sendSctp(p, pkt.DestinationPort, pkt.SourcePort, sctp.Chunk{
		Type: sctp.ChunkInitAck,
		Init: &sctp.InitChunk{
			InitiateTag:        creds.InitiateTag(),
			WindowCredit:       sctp.DefaultWindowCredit,
			NumOutboundStreams: init.NumInboundStreams,
			NumInboundStreams:  init.NumOutboundStreams,
			InitialTSN:         p.tsn,
		},
	})
}

func (h *Host) sendHeartbeat(p *Peer) {
	info := make([]byte, 8)
	binary.BigEndian.PutUint64(info, math.Float64bits(float64(h.lastTick.Unix())))

	h.sendSctp(p, h.cfg.Port, p.remoteSctpPort, sctp.Chunk{
		Type:      sctp.ChunkHeartbeat,
		Flags:     sctp.FlagCompleteUnreliable,
		Heartbeat: &sctp.HeartbeatChunk{Info: info},
	})
}

func (h *Host) sendShutdown(p *Peer) {
	h.sendSctp(p, h.cfg.Port, p.remoteSctpPort, sctp.Chunk{
		Type:     sctp.ChunkShutdown,
		Shutdown: &sctp.ShutdownChunk{CumulativeTsnAck: p.remoteTSN},
	})
}

// sendData implements SendText/SendBinary: a single unordered,
// unfragmented DATA chunk carrying proto on the implicit stream 0.
func (h *Host) sendData(p *Peer, payload []byte, proto uint32) error {
	if p.state < stateDataChannelOpen {
		return errPeerNotOpen
	}
	h.sendSctp(p, h.cfg.Port, p.remoteSctpPort, sctp.Chunk{
		Type:  sctp.ChunkData,
		Flags: sctp.FlagCompleteUnreliable,
		Data: &sctp.DataChunk{
			TSN:      p.nextTSN(),
			StreamID: 0, // multiple streams are out of scope; everything rides stream 0
			ProtoID:  proto,
			UserData: payload,
		},
	})
	return nil
}

func (h *Host) sendSctp(p *Peer, sourcePort, destPort uint16, chunk sctp.Chunk) {
	raw := sctp.Serialize(&sctp.Packet{
		SourcePort:      sourcePort,
		DestinationPort: destPort,
		VerificationTag: p.verificationTag,
	}, []sctp.Chunk{chunk})

	if err := p.session.WriteApplication(raw); err != nil {
		logx.Peer(p.ID).Debug("sctp write failed: %v", err)
	}
}

func (h *Host) copyToArena(data []byte) []byte {
	buf := h.arena.Acquire(len(data))
	copy(buf, data)
	return buf
}

func (p *Peer) nextTSN() uint32 {
	tsn := p.tsn
	p.tsn++
	return tsn
}
