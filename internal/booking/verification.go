package booking

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// MintToken returns a 32-character hex token for unauthenticated appointment
// lookup. 128 bits of randomness make collisions negligible, so uniqueness
// is not re-checked against the store.
func MintToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("mint verification token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// MintPIN returns a 4-digit PIN drawn uniformly from 1000-9999. PINs are
// not unique across appointments; lookups pair them with the booking email.
func MintPIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("mint verification pin: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}
