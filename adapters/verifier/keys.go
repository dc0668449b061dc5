package verifier

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/clavis-id/clavis/core"
)

// Multicodec prefixes for public keys, varint-encoded as they appear in
// multibase-encoded verification material:
// ed25519-pub 0xED, secp256k1-pub 0xE7, p256-pub 0x1200.
var (
	prefixEd25519   = []byte{0xED, 0x01}
	prefixSecp256k1 = []byte{0xE7, 0x01}
	prefixP256      = []byte{0x80, 0x24}
)

// decodePublicKeyMultibase parses a publicKeyMultibase string (base58btc,
// "z" prefix) and returns the key algorithm declared by its multicodec
// prefix along with the raw key bytes.
func decodePublicKeyMultibase(encoded string) (core.KeyAlgorithm, []byte, error) {
	if !strings.HasPrefix(encoded, "z") {
		return 0, nil, core.ErrUnknownVerificationMethod
	}

	decoded, err := base58.Decode(encoded[1:])
	if err != nil {
		return 0, nil, core.ErrUnknownVerificationMethod
	}
	if len(decoded) < 3 {
		return 0, nil, core.ErrUnknownVerificationMethod
	}

	prefix, key := decoded[:2], decoded[2:]
	switch {
	case bytes.Equal(prefix, prefixEd25519):
		if len(key) != 32 {
			return 0, nil, core.ErrUnknownVerificationMethod
		}
		return core.AlgEd25519, key, nil
	case bytes.Equal(prefix, prefixSecp256k1):
		if len(key) != 33 {
			return 0, nil, core.ErrUnknownVerificationMethod
		}
		return core.AlgSecp256k1, key, nil
	case bytes.Equal(prefix, prefixP256):
		if len(key) != 33 {
			return 0, nil, core.ErrUnknownVerificationMethod
		}
		return core.AlgP256, key, nil
	default:
		return 0, nil, core.ErrUnsupportedAlgorithm
	}
}

// EncodePublicKeyMultibase is the inverse of decodePublicKeyMultibase. Key
// bytes must be in the compressed form for the ECDSA curves.
func EncodePublicKeyMultibase(alg core.KeyAlgorithm, key []byte) string {
	var prefix []byte
	switch alg {
	case core.AlgEd25519:
		prefix = prefixEd25519
	case core.AlgSecp256k1:
		prefix = prefixSecp256k1
	case core.AlgP256:
		prefix = prefixP256
	default:
		return ""
	}
	return "z" + base58.Encode(append(append([]byte{}, prefix...), key...))
}

// parseP256PublicKey accepts the 33-byte compressed SEC1 encoding.
func parseP256PublicKey(key []byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), key)
	if x == nil {
		return nil, core.ErrUnknownVerificationMethod
	}
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}
