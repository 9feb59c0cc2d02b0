// Package dcep implements the minimal slice of the WebRTC data-channel
// control protocol (RFC 8832) this server needs: recognizing a
// DATA_CHANNEL_OPEN message and building the DATA_CHANNEL_ACK reply.
// Channel label/protocol/priority fields are not interpreted — every
// peer gets exactly one implicit channel.
package dcep

// Payload protocol identifiers, carried in the SCTP DATA chunk's PPID
// field (RFC 8832 §8).
const (
	ProtoControl uint32 = 50
	ProtoString  uint32 = 51
	ProtoBinary  uint32 = 53
)

// DCEP message types (RFC 8832 §5.1/§5.2).
const (
	MessageTypeAck  uint8 = 0x02
	MessageTypeOpen uint8 = 0x03
)

// MessageType returns the DCEP message type of a control-channel
// payload, or ok=false if the payload is too short to contain one.
func MessageType(payload []byte) (uint8, bool) {
	if len(payload) < 1 {
		return 0, false
	}
	return payload[0], true
}

// BuildAck returns the single-byte DATA_CHANNEL_ACK message.
func BuildAck() []byte {
	return []byte{MessageTypeAck}
}
