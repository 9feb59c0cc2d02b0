// Package stun implements the narrow slice of RFC 5389 needed to
// terminate ICE connectivity checks for a single statically-configured
// host candidate: parsing a Binding Request's USERNAME attribute and
// serializing a Binding Success Response carrying XOR-MAPPED-ADDRESS,
// MESSAGE-INTEGRITY, and FINGERPRINT.
package stun

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"strings"
)

const (
	magicCookie = 0x2112A442

	typeBindingRequest      = 0x0001
	typeBindingSuccessResp  = 0x0101
	attrUsername            = 0x0006
	attrMessageIntegrity    = 0x0008
	attrXorMappedAddress    = 0x0020
	attrFingerprint         = 0x8028
	fingerprintXor   uint32 = 0x5354554E

	headerSize        = 20
	transactionIDSize = 12
	familyIPv4        = 0x01
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// ErrNotBinding is returned by ParseBindingRequest when the datagram is
// not a well-formed STUN Binding Request. Callers use this to decide
// whether a UDP datagram should fall through to the DTLS path.
var ErrNotBinding = errors.New("stun: not a binding request")

// BindingRequest holds the fields extracted from an inbound Binding
// Request relevant to this server: the transaction id (echoed back
// verbatim) and the two halves of the USERNAME attribute, which ICE
// packs as "<local-ufrag>:<remote-ufrag>".
type BindingRequest struct {
	TransactionID [transactionIDSize]byte
	LocalUser     string
	RemoteUser    string
}

// LooksLikeStun reports whether the first bytes of data resemble a
// STUN message (magic cookie present at the expected offset). HandleUDP
// uses this to route a datagram to the STUN or DTLS path without fully
// parsing it twice.
func LooksLikeStun(data []byte) bool {
	if len(data) < headerSize {
		return false
	}
	return binary.BigEndian.Uint32(data[4:8]) == magicCookie
}

// VerifyMessageIntegrity recomputes the MESSAGE-INTEGRITY attribute of
// a STUN message against password and reports whether it matches the
// one carried in data. It reconstructs the same length-field-lookahead
// header BuildSuccessResponse uses to produce the attribute (RFC 5389
// §15.4): the MAC covers the header and every attribute preceding
// MESSAGE-INTEGRITY, with the header's length field set as if
// MESSAGE-INTEGRITY were the last attribute present, discarding
// FINGERPRINT and anything after it.
func VerifyMessageIntegrity(data []byte, password string) bool {
	if len(data) < headerSize {
		return false
	}
	msgType := binary.BigEndian.Uint16(data[0:2])
	msgLen := int(binary.BigEndian.Uint16(data[2:4]))
	if headerSize+msgLen > len(data) {
		return false
	}
	var transactionID [transactionIDSize]byte
	copy(transactionID[:], data[8:20])

	body := data[headerSize : headerSize+msgLen]
	offset := 0
	for offset+4 <= len(body) {
		attrType := binary.BigEndian.Uint16(body[offset : offset+2])
		attrLen := int(binary.BigEndian.Uint16(body[offset+2 : offset+4]))
		padded := (attrLen + 3) &^ 3
		if offset+4+padded > len(body) {
			return false
		}
		if attrType == attrMessageIntegrity {
			if attrLen != sha1.Size {
				return false
			}
			want := body[offset+4 : offset+4+attrLen]

			miLen := offset + 4 + sha1.Size
			header := buildHeader(msgType, miLen, transactionID)
			mac := hmac.New(sha1.New, []byte(password))
			mac.Write(header)
			mac.Write(body[:offset])
			got := mac.Sum(nil)
			return hmac.Equal(got, want)
		}
		offset += 4 + padded
	}
	return false
}

// ParseBindingRequest parses a Binding Request and extracts its
// USERNAME attribute. MESSAGE-INTEGRITY is not checked here; callers
// that need it use VerifyMessageIntegrity once they know which peer's
// password to check against.
func ParseBindingRequest(data []byte) (*BindingRequest, error) {
	if !LooksLikeStun(data) {
		return nil, ErrNotBinding
	}
	msgType := binary.BigEndian.Uint16(data[0:2])
	if msgType != typeBindingRequest {
		return nil, ErrNotBinding
	}
	msgLen := int(binary.BigEndian.Uint16(data[2:4]))
	if headerSize+msgLen > len(data) {
		return nil, errors.New("stun: truncated message")
	}

	req := &BindingRequest{}
	copy(req.TransactionID[:], data[8:20])

	body := data[headerSize : headerSize+msgLen]
	for len(body) >= 4 {
		attrType := binary.BigEndian.Uint16(body[0:2])
		attrLen := int(binary.BigEndian.Uint16(body[2:4]))
		padded := (attrLen + 3) &^ 3
		if 4+padded > len(body) {
			break
		}
		value := body[4 : 4+attrLen]
		if attrType == attrUsername {
			username := string(value)
			if idx := strings.IndexByte(username, ':'); idx >= 0 {
				req.LocalUser = username[:idx]
				req.RemoteUser = username[idx+1:]
			} else {
				req.LocalUser = username
			}
		}
		body = body[4+padded:]
	}

	if req.LocalUser == "" {
		return nil, errors.New("stun: missing USERNAME attribute")
	}
	return req, nil
}

// SuccessResponse holds the fields extracted from a Binding Success
// Response: the echoed transaction id and the observed address carried
// in XOR-MAPPED-ADDRESS.
type SuccessResponse struct {
	TransactionID [transactionIDSize]byte
	IP            [4]byte
	Port          uint16
}

// ParseSuccessResponse parses a Binding Success Response and decodes
// its XOR-MAPPED-ADDRESS attribute. It exists so this package can
// parse its own BuildSuccessResponse output back — ParseBindingRequest
// only accepts Binding Requests, and a response needs its own decode
// path to undo the XOR masking rather than just read a USERNAME.
func ParseSuccessResponse(data []byte) (*SuccessResponse, error) {
	if !LooksLikeStun(data) {
		return nil, ErrNotBinding
	}
	if binary.BigEndian.Uint16(data[0:2]) != typeBindingSuccessResp {
		return nil, ErrNotBinding
	}
	msgLen := int(binary.BigEndian.Uint16(data[2:4]))
	if headerSize+msgLen > len(data) {
		return nil, errors.New("stun: truncated message")
	}

	resp := &SuccessResponse{}
	copy(resp.TransactionID[:], data[8:20])

	body := data[headerSize : headerSize+msgLen]
	for len(body) >= 4 {
		attrType := binary.BigEndian.Uint16(body[0:2])
		attrLen := int(binary.BigEndian.Uint16(body[2:4]))
		padded := (attrLen + 3) &^ 3
		if 4+padded > len(body) || attrLen < 8 {
			break
		}
		if attrType == attrXorMappedAddress {
			value := body[4 : 4+attrLen]
			xorPort := binary.BigEndian.Uint16(value[2:4])
			resp.Port = xorPort ^ uint16(magicCookie>>16)
			cookieBytes := [4]byte{0x21, 0x12, 0xA4, 0x42}
			for i := range resp.IP {
				resp.IP[i] = value[4+i] ^ cookieBytes[i]
			}
		}
		body = body[4+padded:]
	}
	return resp, nil
}

// BuildSuccessResponse serializes a Binding Success Response for the
// given transaction id and observed (host, port) in network byte
// order, authenticated with the short-term credential password and
// terminated with a FINGERPRINT attribute.
func BuildSuccessResponse(transactionID [transactionIDSize]byte, ipv4 [4]byte, port uint16, password string) []byte {
	var body []byte

	xorPort := port ^ uint16(magicCookie>>16)
	var xorAddr [4]byte
	cookieBytes := [4]byte{0x21, 0x12, 0xA4, 0x42}
	for i := range xorAddr {
		xorAddr[i] = ipv4[i] ^ cookieBytes[i]
	}

	xmaValue := make([]byte, 8)
	xmaValue[0] = 0
	xmaValue[1] = familyIPv4
	binary.BigEndian.PutUint16(xmaValue[2:4], xorPort)
	copy(xmaValue[4:8], xorAddr[:])
	body = appendAttr(body, attrXorMappedAddress, xmaValue)

	// MESSAGE-INTEGRITY: HMAC-SHA1 over the header+attributes so far,
	// with the length field set as if the MI attribute were already
	// appended (RFC 5389 §15.4).
	miLen := len(body) + 4 + 20
	header := buildHeader(typeBindingSuccessResp, miLen, transactionID)
	mac := hmac.New(sha1.New, []byte(password))
	mac.Write(header)
	mac.Write(body)
	body = appendAttr(body, attrMessageIntegrity, mac.Sum(nil))

	// FINGERPRINT: CRC32 over everything so far, length field set to
	// include the FINGERPRINT attribute itself.
	fpLen := len(body) + 4 + 4
	header = buildHeader(typeBindingSuccessResp, fpLen, transactionID)
	crc := crc32.Checksum(append(append([]byte{}, header...), body...), crcTable) ^ fingerprintXor
	fpValue := make([]byte, 4)
	binary.BigEndian.PutUint32(fpValue, crc)
	body = appendAttr(body, attrFingerprint, fpValue)

	return append(header, body...)
}

func buildHeader(msgType uint16, bodyLen int, transactionID [transactionIDSize]byte) []byte {
	h := make([]byte, headerSize)
	binary.BigEndian.PutUint16(h[0:2], msgType)
	binary.BigEndian.PutUint16(h[2:4], uint16(bodyLen))
	binary.BigEndian.PutUint32(h[4:8], magicCookie)
	copy(h[8:20], transactionID[:])
	return h
}

func appendAttr(body []byte, attrType uint16, value []byte) []byte {
	padded := (len(value) + 3) &^ 3
	buf := make([]byte, 4+padded)
	binary.BigEndian.PutUint16(buf[0:2], attrType)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(value)))
	copy(buf[4:], value)
	return append(body, buf...)
}
