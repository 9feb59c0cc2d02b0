// Package selfcert generates the ephemeral self-signed certificate a
// Host presents during the DTLS handshake, and the SHA-256 fingerprint
// advertised in SDP answers.
package selfcert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Cert bundles the generated key pair, its tls.Certificate form (ready
// to hand to a DTLS config), and the colon-separated hex fingerprint
// string used in the SDP "a=fingerprint" line.
type Cert struct {
	TLS         tls.Certificate
	Fingerprint string // e.g. "AB:CD:EF:..."
}

// New generates a fresh ECDSA P-256 self-signed certificate, matching
// the original implementation's use of NID_X9_62_prime256v1.
func New() (*Cert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("selfcert: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("selfcert: generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "wurtc"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("selfcert: create certificate: %w", err)
	}

	sum := sha256.Sum256(der)
	hexParts := make([]string, len(sum))
	for i, b := range sum {
		hexParts[i] = fmt.Sprintf("%02X", b)
	}

	return &Cert{
		TLS: tls.Certificate{
			Certificate: [][]byte{der},
			PrivateKey:  key,
		},
		Fingerprint: strings.Join(hexParts, ":"),
	}, nil
}
