// Package sctp implements the narrow subset of RFC 4960 (plus the
// RFC 3758 FORWARD-TSN extension) needed to establish a single SCTP
// association over a DTLS channel and carry WebRTC data-channel
// traffic: INIT/INIT-ACK, COOKIE-ECHO/COOKIE-ACK, DATA/SACK,
// HEARTBEAT/HEARTBEAT-ACK, ABORT, SHUTDOWN, and FORWARD-TSN.
//
// State-cookie validation is intentionally not implemented; COOKIE-ECHO
// is accepted unconditionally, matching the system this package was
// modeled on.
package sctp

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Chunk type values, per RFC 4960 §3.2 and RFC 3758 §3.1.
const (
	ChunkData         uint8 = 0
	ChunkInit         uint8 = 1
	ChunkInitAck      uint8 = 2
	ChunkSack         uint8 = 3
	ChunkHeartbeat    uint8 = 4
	ChunkHeartbeatAck uint8 = 5
	ChunkAbort        uint8 = 6
	ChunkShutdown     uint8 = 7
	ChunkShutdownAck  uint8 = 8
	ChunkCookieEcho   uint8 = 10
	ChunkCookieAck    uint8 = 11
	ChunkForwardTsn   uint8 = 192
)

// DATA chunk flag bits (RFC 4960 §3.3.1): unordered, begin, end.
// FlagCompleteUnreliable marks a single-fragment, unordered message —
// every message this server sends fits in one DATA chunk.
const (
	flagEnd      uint8 = 0x01
	flagBegin    uint8 = 0x02
	flagUnordered uint8 = 0x04

	FlagCompleteUnreliable = flagUnordered | flagBegin | flagEnd
)

// DefaultWindowCredit is the advertised receiver window / advertised
// buffer space used in both INIT-ACK and SACK.
const DefaultWindowCredit uint32 = 131072

const maxChunksPerPacket = 8

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Packet is the common SCTP header shared by every chunk in a datagram.
type Packet struct {
	SourcePort      uint16
	DestinationPort uint16
	VerificationTag uint32
}

// Chunk is a tagged union over the chunk kinds this package handles.
// Exactly one of the typed fields is non-nil, matching Type.
type Chunk struct {
	Type  uint8
	Flags uint8

	Data       *DataChunk
	Init       *InitChunk
	Sack       *SackChunk
	Heartbeat  *HeartbeatChunk
	ForwardTsn *ForwardTsnChunk
	Shutdown   *ShutdownChunk
}

type DataChunk struct {
	TSN        uint32
	StreamID   uint16
	StreamSeq  uint16
	ProtoID    uint32
	UserData   []byte
}

type InitChunk struct {
	InitiateTag        uint32
	WindowCredit        uint32
	NumOutboundStreams  uint16
	NumInboundStreams   uint16
	InitialTSN          uint32
}

type SackChunk struct {
	CumulativeTsnAck uint32
	AdvRecvWindow    uint32
	NumGapAckBlocks  uint16
	NumDupTsn        uint16
}

type HeartbeatChunk struct {
	Info []byte // opaque Heartbeat Info parameter payload
}

type ForwardTsnChunk struct {
	NewCumulativeTsn uint32
}

type ShutdownChunk struct {
	CumulativeTsnAck uint32
}

// Parse decodes an SCTP packet and up to maxChunksPerPacket chunks.
// It verifies the CRC32c checksum. Unrecognized chunk types are
// skipped (by their declared length) rather than rejecting the whole
// packet, since browsers may include optional chunk types this server
// does not need to act on.
func Parse(data []byte) (*Packet, []Chunk, error) {
	if len(data) < 12 {
		return nil, nil, errors.New("sctp: packet too short")
	}

	wantChecksum := binary.LittleEndian.Uint32(data[8:12])
	check := make([]byte, len(data))
	copy(check, data)
	check[8], check[9], check[10], check[11] = 0, 0, 0, 0
	if crc32.Checksum(check, crcTable) != wantChecksum {
		return nil, nil, errors.New("sctp: checksum mismatch")
	}

	p := &Packet{
		SourcePort:      binary.BigEndian.Uint16(data[0:2]),
		DestinationPort: binary.BigEndian.Uint16(data[2:4]),
		VerificationTag: binary.BigEndian.Uint32(data[4:8]),
	}

	var chunks []Chunk
	body := data[12:]
	for len(body) >= 4 && len(chunks) < maxChunksPerPacket {
		ctype := body[0]
		cflags := body[1]
		clen := int(binary.BigEndian.Uint16(body[2:4]))
		if clen < 4 || clen > len(body) {
			break
		}
		value := body[4:clen]

		chunk, ok := decodeChunk(ctype, cflags, value)
		if ok {
			chunks = append(chunks, chunk)
		}

		padded := (clen + 3) &^ 3
		if padded > len(body) {
			break
		}
		body = body[padded:]
	}

	return p, chunks, nil
}

func decodeChunk(ctype, cflags uint8, value []byte) (Chunk, bool) {
	switch ctype {
	case ChunkData:
		if len(value) < 12 {
			return Chunk{}, false
		}
		return Chunk{Type: ctype, Flags: cflags, Data: &DataChunk{
			TSN:       binary.BigEndian.Uint32(value[0:4]),
			StreamID:  binary.BigEndian.Uint16(value[4:6]),
			StreamSeq: binary.BigEndian.Uint16(value[6:8]),
			ProtoID:   binary.BigEndian.Uint32(value[8:12]),
			UserData:  value[12:],
		}}, true

	case ChunkInit, ChunkInitAck:
		if len(value) < 16 {
			return Chunk{}, false
		}
		return Chunk{Type: ctype, Flags: cflags, Init: &InitChunk{
			InitiateTag:        binary.BigEndian.Uint32(value[0:4]),
			WindowCredit:       binary.BigEndian.Uint32(value[4:8]),
			NumOutboundStreams: binary.BigEndian.Uint16(value[8:10]),
			NumInboundStreams:  binary.BigEndian.Uint16(value[10:12]),
			InitialTSN:         binary.BigEndian.Uint32(value[12:16]),
		}}, true

	case ChunkSack:
		if len(value) < 12 {
			return Chunk{}, false
		}
		return Chunk{Type: ctype, Flags: cflags, Sack: &SackChunk{
			CumulativeTsnAck: binary.BigEndian.Uint32(value[0:4]),
			AdvRecvWindow:    binary.BigEndian.Uint32(value[4:8]),
			NumGapAckBlocks:  binary.BigEndian.Uint16(value[8:10]),
			NumDupTsn:        binary.BigEndian.Uint16(value[10:12]),
		}}, true

	case ChunkHeartbeat, ChunkHeartbeatAck:
		info := value
		// Strip the Heartbeat Info parameter TLV header if present.
		if len(value) >= 4 {
			info = value[4:]
		}
		return Chunk{Type: ctype, Flags: cflags, Heartbeat: &HeartbeatChunk{Info: info}}, true

	case ChunkForwardTsn:
		if len(value) < 4 {
			return Chunk{}, false
		}
		return Chunk{Type: ctype, Flags: cflags, ForwardTsn: &ForwardTsnChunk{
			NewCumulativeTsn: binary.BigEndian.Uint32(value[0:4]),
		}}, true

	case ChunkShutdown:
		if len(value) < 4 {
			return Chunk{}, false
		}
		return Chunk{Type: ctype, Flags: cflags, Shutdown: &ShutdownChunk{
			CumulativeTsnAck: binary.BigEndian.Uint32(value[0:4]),
		}}, true

	case ChunkCookieEcho, ChunkCookieAck, ChunkAbort, ChunkShutdownAck:
		return Chunk{Type: ctype, Flags: cflags}, true

	default:
		return Chunk{}, false
	}
}

// Serialize encodes a packet header and its chunks, computing the
// CRC32c checksum over the whole datagram.
func Serialize(p *Packet, chunks []Chunk) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf[0:2], p.SourcePort)
	binary.BigEndian.PutUint16(buf[2:4], p.DestinationPort)
	binary.BigEndian.PutUint32(buf[4:8], p.VerificationTag)

	for _, c := range chunks {
		buf = append(buf, encodeChunk(c)...)
	}

	binary.LittleEndian.PutUint32(buf[8:12], crc32.Checksum(buf, crcTable))
	return buf
}

func encodeChunk(c Chunk) []byte {
	var value []byte
	switch c.Type {
	case ChunkData:
		value = make([]byte, 12+len(c.Data.UserData))
		binary.BigEndian.PutUint32(value[0:4], c.Data.TSN)
		binary.BigEndian.PutUint16(value[4:6], c.Data.StreamID)
		binary.BigEndian.PutUint16(value[6:8], c.Data.StreamSeq)
		binary.BigEndian.PutUint32(value[8:12], c.Data.ProtoID)
		copy(value[12:], c.Data.UserData)

	case ChunkInit, ChunkInitAck:
		value = make([]byte, 16)
		binary.BigEndian.PutUint32(value[0:4], c.Init.InitiateTag)
		binary.BigEndian.PutUint32(value[4:8], c.Init.WindowCredit)
		binary.BigEndian.PutUint16(value[8:10], c.Init.NumOutboundStreams)
		binary.BigEndian.PutUint16(value[10:12], c.Init.NumInboundStreams)
		binary.BigEndian.PutUint32(value[12:16], c.Init.InitialTSN)

	case ChunkSack:
		value = make([]byte, 12)
		binary.BigEndian.PutUint32(value[0:4], c.Sack.CumulativeTsnAck)
		binary.BigEndian.PutUint32(value[4:8], c.Sack.AdvRecvWindow)
		binary.BigEndian.PutUint16(value[8:10], c.Sack.NumGapAckBlocks)
		binary.BigEndian.PutUint16(value[10:12], c.Sack.NumDupTsn)

	case ChunkHeartbeat, ChunkHeartbeatAck:
		value = make([]byte, 4+len(c.Heartbeat.Info))
		binary.BigEndian.PutUint16(value[0:2], 1) // Heartbeat Info parameter type
		binary.BigEndian.PutUint16(value[2:4], uint16(4+len(c.Heartbeat.Info)))
		copy(value[4:], c.Heartbeat.Info)

	case ChunkForwardTsn:
		value = make([]byte, 4)
		binary.BigEndian.PutUint32(value[0:4], c.ForwardTsn.NewCumulativeTsn)

	case ChunkShutdown:
		value = make([]byte, 4)
		binary.BigEndian.PutUint32(value[0:4], c.Shutdown.CumulativeTsnAck)

	case ChunkCookieEcho, ChunkCookieAck, ChunkAbort, ChunkShutdownAck:
		value = nil
	}

	header := make([]byte, 4)
	header[0] = c.Type
	header[1] = c.Flags
	binary.BigEndian.PutUint16(header[2:4], uint16(4+len(value)))

	out := append(header, value...)
	if pad := (4 - len(out)%4) % 4; pad > 0 {
		out = append(out, make([]byte, pad)...)
	}
	return out
}
