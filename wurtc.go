package wurtc

import (
	"errors"

	"github.com/suzu-dev/wurtc/internal/dcep"
)

// errPeerNotOpen is returned by SendText/SendBinary when the peer's
// data channel has not finished opening yet.
var errPeerNotOpen = errors.New("wurtc: peer data channel not open")

// SendText sends a string-type data-channel message to p.
func (h *Host) SendText(p *Peer, text []byte) error {
	return h.sendData(p, text, dcep.ProtoString)
}

// SendBinary sends a binary-type data-channel message to p.
func (h *Host) SendBinary(p *Peer, data []byte) error {
	return h.sendData(p, data, dcep.ProtoBinary)
}
