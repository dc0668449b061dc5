package verifier

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// ProofVerifier validates signatures over challenge messages against the
// verification methods published in the subject's DID document. Dispatch
// over key algorithms is a closed switch; there is never a fallback from
// one curve to another.
type ProofVerifier struct {
	resolver        ports.Resolver
	allowDemoProofs bool
}

// Option configures a ProofVerifier.
type Option func(*ProofVerifier)

// WithDemoProofs enables the non-cryptographic demo proof path. Never
// enable this outside local development.
func WithDemoProofs() Option {
	return func(v *ProofVerifier) {
		v.allowDemoProofs = true
	}
}

// New creates a proof verifier backed by the given DID resolver.
func New(resolver ports.Resolver, opts ...Option) *ProofVerifier {
	v := &ProofVerifier{resolver: resolver}
	for _, opt := range opts {
		opt(v)
	}
	if v.allowDemoProofs {
		slog.Warn("demo proofs enabled: signatures of type " + core.DemoProofType + " are NOT cryptographically verified")
	}
	return v
}

// Verify checks the proof against the challenge. The signed bytes must
// equal challenge.Message verbatim; any normalization that let a signature
// over a related message pass would break the replay guarantees.
func (v *ProofVerifier) Verify(ctx context.Context, challenge *core.Challenge, proof *core.Proof) error {
	if proof == nil {
		return core.ErrInvalidProof
	}

	if proof.Type == core.DemoProofType {
		return v.verifyDemo(challenge, proof)
	}

	if (proof.JWS == "") == (proof.Signature == "") {
		// exactly one of jws/signature must be set
		return core.ErrInvalidProof
	}

	methodID := proof.VerificationMethod
	if methodID == "" {
		methodID = challenge.VerificationMethod
	}
	if methodID == "" {
		return core.ErrUnknownVerificationMethod
	}
	// A method bound at issuance pins the proof to that method.
	if challenge.VerificationMethod != "" && methodID != challenge.VerificationMethod {
		return core.ErrUnknownVerificationMethod
	}

	doc, err := v.resolver.Resolve(ctx, challenge.DID)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", challenge.DID, core.ErrUnknownVerificationMethod)
	}

	method := doc.Method(methodID)
	if method == nil {
		return core.ErrUnknownVerificationMethod
	}

	alg, key, err := decodePublicKeyMultibase(method.PublicKeyMultibase)
	if err != nil {
		return err
	}

	// Named method types must agree with the key's multicodec prefix.
	// Multikey entries carry the algorithm in the prefix alone.
	if method.Type != "" && method.Type != "Multikey" {
		declared, err := core.AlgorithmForMethodType(method.Type)
		if err != nil {
			return err
		}
		if declared != alg {
			return core.ErrUnsupportedAlgorithm
		}
	}

	if proof.JWS != "" {
		return verifyJWS(alg, key, challenge.Message, proof.JWS)
	}

	sig, err := decodeSignature(proof.Signature)
	if err != nil {
		return core.ErrInvalidProof
	}
	return verifySignature(alg, key, []byte(challenge.Message), sig)
}

// verifyDemo checks the deterministic pseudo-signature used by demo
// signers. Rejected outright unless the verifier was built with
// WithDemoProofs.
func (v *ProofVerifier) verifyDemo(challenge *core.Challenge, proof *core.Proof) error {
	if !v.allowDemoProofs {
		return core.ErrUnsupportedAlgorithm
	}
	digest := sha256.Sum256([]byte("demo:" + challenge.Message))
	expected := base64.RawURLEncoding.EncodeToString(digest[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(proof.Signature)) != 1 {
		return core.ErrSignatureMismatch
	}
	return nil
}

// verifyJWS validates a compact JWS whose payload must byte-equal the
// challenge message. The header alg must agree with the key algorithm.
func verifyJWS(alg core.KeyAlgorithm, key []byte, message, jws string) error {
	parts := strings.Split(jws, ".")
	if len(parts) != 3 {
		return core.ErrInvalidProof
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return core.ErrInvalidProof
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return core.ErrInvalidProof
	}
	if jwsAlgFor(alg) != header.Alg {
		return core.ErrUnsupportedAlgorithm
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return core.ErrInvalidProof
	}
	if !bytes.Equal(payload, []byte(message)) {
		return core.ErrMessageMismatch
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return core.ErrInvalidProof
	}

	signingInput := []byte(parts[0] + "." + parts[1])
	return verifySignature(alg, key, signingInput, sig)
}

// verifySignature dispatches on the closed algorithm set. Ed25519 signs the
// raw bytes; the ECDSA suites sign the SHA-256 digest with compact r||s
// signatures.
func verifySignature(alg core.KeyAlgorithm, key, message, sig []byte) error {
	switch alg {
	case core.AlgEd25519:
		if len(sig) != ed25519.SignatureSize {
			return core.ErrSignatureMismatch
		}
		if !ed25519.Verify(ed25519.PublicKey(key), message, sig) {
			return core.ErrSignatureMismatch
		}
		return nil

	case core.AlgSecp256k1:
		// Accept a trailing recovery byte but verify without it.
		if len(sig) == 65 {
			sig = sig[:64]
		}
		if len(sig) != 64 {
			return core.ErrSignatureMismatch
		}
		digest := sha256.Sum256(message)
		if !ethcrypto.VerifySignature(key, digest[:], sig) {
			return core.ErrSignatureMismatch
		}
		return nil

	case core.AlgP256:
		pub, err := parseP256PublicKey(key)
		if err != nil {
			return err
		}
		if len(sig) != 64 {
			return core.ErrSignatureMismatch
		}
		r := new(big.Int).SetBytes(sig[:32])
		s := new(big.Int).SetBytes(sig[32:])
		digest := sha256.Sum256(message)
		if !ecdsa.Verify(pub, digest[:], r, s) {
			return core.ErrSignatureMismatch
		}
		return nil

	default:
		return core.ErrUnsupportedAlgorithm
	}
}

func jwsAlgFor(alg core.KeyAlgorithm) string {
	switch alg {
	case core.AlgEd25519:
		return "EdDSA"
	case core.AlgSecp256k1:
		return "ES256K"
	case core.AlgP256:
		return "ES256"
	default:
		return ""
	}
}

// decodeSignature accepts the base64 variants signers produce in practice.
func decodeSignature(encoded string) ([]byte, error) {
	if sig, err := base64.RawURLEncoding.DecodeString(encoded); err == nil {
		return sig, nil
	}
	return base64.StdEncoding.DecodeString(encoded)
}

var _ ports.ProofVerifier = (*ProofVerifier)(nil)
