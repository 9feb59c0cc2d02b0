// Package creds generates the random identifiers the STUN and SCTP
// layers need: local ICE credentials and SCTP initiate tags.
package creds

import (
	"github.com/pion/randutil"
)

const (
	// UfragLength matches the original implementation's fixed local
	// username fragment size.
	UfragLength = 4
	// PasswordLength matches the original implementation's fixed local
	// password size.
	PasswordLength = 24

	credentialChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// LocalUser generates a random local ICE username fragment.
func LocalUser() (string, error) {
	return randutil.GenerateCryptoRandomString(UfragLength, credentialChars)
}

// LocalPassword generates a random local ICE password.
func LocalPassword() (string, error) {
	return randutil.GenerateCryptoRandomString(PasswordLength, credentialChars)
}

// InitiateTag generates a random SCTP verification tag for an INIT-ACK,
// matching the original implementation's use of a random 32-bit tag.
func InitiateTag() uint32 {
	v, _ := randutil.CryptoUint64()
	return uint32(v)
}
