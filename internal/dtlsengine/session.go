// Package dtlsengine drives a single peer's DTLS-over-UDP session,
// using pion/dtls/v3 as the handshake and record-layer implementation
// (per design, DTLS itself is treated as an external library used as a
// black box) wired to an in-memory net.Conn instead of a real socket.
package dtlsengine

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/pion/dtls/v3"
	"github.com/pion/dtls/v3/pkg/crypto/elliptic"
	dtlsnet "github.com/pion/dtls/v3/pkg/net"

	"github.com/suzu-dev/wurtc/internal/logx"
)

// cipherSuites restricts the handshake to non-anonymous, non-export,
// strength-ordered ECDHE_ECDSA suites — the selfcert certificate is
// ECDSA, so RSA-keyed and PSK suites never apply. Matches the original
// implementation's SSL_CTX_set_cipher_list("ALL:!ADH:!LOW:!EXP:!MD5:@STRENGTH").
var cipherSuites = []dtls.CipherSuiteID{
	dtls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
	dtls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM,
	dtls.TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8,
}

// scratchBufferSize is the reused read buffer size for decrypted
// application data, matching the original implementation's receive
// buffer.
const scratchBufferSize = 8192

// Session owns one peer's DTLS state. A background goroutine drives
// pion/dtls's blocking handshake and record-layer calls against an
// in-memory connection — unavoidable since the library's Conn blocks
// on Read/Write — but that goroutine never touches anything the
// dispatch goroutine can see directly: decrypted bytes go out through
// Decoded, and outbound ciphertext is buffered for TakeOutbound rather
// than written to a socket itself. The dispatch goroutine is the only
// thing that ever turns either of those into a real side effect
// (delivering an event, writing a UDP datagram), so Feed/TakeOutbound/
// WriteApplication/Decoded are meant to all be called from that one
// goroutine, matching the single-dispatcher model the rest of this
// module follows.
type Session struct {
	conn *memConn
	dtls *dtls.Conn

	decoded chan []byte // decrypted application-layer (SCTP) datagrams

	handshakeDone chan struct{}
	handshakeErr  error
	errOnce       sync.Once

	closeOnce sync.Once
	closed    chan struct{}
}

// NewSession creates and starts a Session.
func NewSession(cert tls.Certificate, local, remote net.Addr) *Session {
	s := &Session{
		decoded:       make(chan []byte, 32),
		handshakeDone: make(chan struct{}),
		closed:        make(chan struct{}),
	}
	s.conn = newMemConn(local, remote)

	go s.run(cert)
	return s
}

// Decoded returns the channel of decrypted application-layer (SCTP)
// datagrams. It is closed once the session fails or is torn down.
func (s *Session) Decoded() <-chan []byte {
	return s.decoded
}

// TakeOutbound drains every ciphertext datagram the DTLS stack has
// produced since the last call (handshake flights, retransmits, or
// encrypted application data) for the caller to put on the wire.
func (s *Session) TakeOutbound() [][]byte {
	return s.conn.takeOutbound()
}

func (s *Session) run(cert tls.Certificate) {
	// No SessionStore is configured, so pion/dtls never issues or
	// accepts session resumption tickets on renegotiation — the single-
	// ECDH, no-resumption posture the original implementation got from
	// never calling SSL_CTX_set_session_cache_mode.
	config := &dtls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		ClientAuth:         dtls.NoClientCert,
		LoggerFactory:      pionLoggerFactory,
		CipherSuites:       cipherSuites,
		EllipticCurves:     []elliptic.Curve{elliptic.P256},
	}

	conn, err := dtls.Server(dtlsnet.PacketConnFromConn(s.conn), s.conn.RemoteAddr(), config)
	if err != nil {
		s.fail(fmt.Errorf("dtlsengine: handshake failed: %w", err))
		return
	}
	s.dtls = conn
	logx.Success("dtls handshake complete with %s", s.conn.RemoteAddr())
	close(s.handshakeDone)

	buf := make([]byte, scratchBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			s.fail(fmt.Errorf("dtlsengine: read: %w", err))
			return
		}
		if n == 0 {
			continue
		}
		decoded := make([]byte, n)
		copy(decoded, buf[:n])
		select {
		case s.decoded <- decoded:
		case <-s.closed:
			return
		}
	}
}

func (s *Session) fail(err error) {
	s.errOnce.Do(func() {
		s.handshakeErr = err
		logx.Debug("%v", err)
		select {
		case <-s.handshakeDone:
		default:
			close(s.handshakeDone)
		}
		close(s.decoded)
	})
}

// Feed hands a raw datagram received from the real UDP socket to the
// DTLS stack (handshake message or encrypted record).
func (s *Session) Feed(data []byte) {
	s.conn.Feed(data)
}

// WriteApplication encrypts and sends an application-layer datagram
// (an SCTP packet). It is a no-op once the handshake has failed or the
// session is closed.
func (s *Session) WriteApplication(data []byte) error {
	select {
	case <-s.handshakeDone:
	case <-s.closed:
		return net.ErrClosed
	}
	if s.dtls == nil {
		return net.ErrClosed
	}
	_, err := s.dtls.Write(data)
	return err
}

// Close tears down the session and its underlying memConn.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.dtls != nil {
			s.dtls.Close()
		}
		s.conn.Close()
	})
}
