package dtlsengine

import (
	"net"
	"testing"
	"time"

	"github.com/pion/dtls/v3"
	dtlsnet "github.com/pion/dtls/v3/pkg/net"

	"github.com/suzu-dev/wurtc/internal/selfcert"
)

// TestHandshakeAndApplicationData drives a real pion/dtls client
// against a Session, bridged over a net.Pipe so the Session's
// TakeOutbound/Feed plumbing is exercised the same way it would be by
// real UDP datagrams: a poll loop stands in for a dispatch goroutine,
// draining TakeOutbound and feeding the bridge exactly like Host does.
func TestHandshakeAndApplicationData(t *testing.T) {
	cert, err := selfcert.New()
	if err != nil {
		t.Fatalf("selfcert.New: %v", err)
	}

	clientConn, bridgeConn := net.Pipe()
	defer clientConn.Close()
	defer bridgeConn.Close()

	local := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	remote := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4001}

	session := NewSession(cert.TLS, local, remote)
	defer session.Close()

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				for _, b := range session.TakeOutbound() {
					_, _ = bridgeConn.Write(b)
				}
			}
		}
	}()

	go func() {
		buf := make([]byte, 8192)
		for {
			n, err := bridgeConn.Read(buf)
			if err != nil {
				return
			}
			session.Feed(buf[:n])
		}
	}()

	clientConfig := &dtls.Config{
		InsecureSkipVerify: true,
	}

	clientDTLS, err := dtls.Client(dtlsnet.PacketConnFromConn(clientConn), clientConn.RemoteAddr(), clientConfig)
	if err != nil {
		t.Fatalf("dtls.Client: %v", err)
	}
	defer clientDTLS.Close()

	select {
	case <-session.handshakeDone:
	case <-time.After(5 * time.Second):
		t.Fatalf("server handshake did not complete in time")
	}
	if session.handshakeErr != nil {
		t.Fatalf("server handshake failed: %v", session.handshakeErr)
	}

	payload := []byte("hello sctp")
	if _, err := clientDTLS.Write(payload); err != nil {
		t.Fatalf("client write: %v", err)
	}

	select {
	case got := <-session.Decoded():
		if string(got) != string(payload) {
			t.Errorf("got %q want %q", got, payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not decode application data in time")
	}

	if err := session.WriteApplication([]byte("reply")); err != nil {
		t.Fatalf("WriteApplication: %v", err)
	}

	buf := make([]byte, 64)
	clientDTLS.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := clientDTLS.Read(buf)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(buf[:n]) != "reply" {
		t.Errorf("got %q want %q", buf[:n], "reply")
	}
}
