package core

// Proof carries a signature over a challenge message, attributed to a
// verification method from the subject's DID document. Exactly one of JWS or
// Signature must be set. Proofs are transient and are never persisted.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created,omitempty"`
	VerificationMethod string `json:"verificationMethod,omitempty"`
	ProofPurpose       string `json:"proofPurpose,omitempty"`
	JWS                string `json:"jws,omitempty"`
	Signature          string `json:"signature,omitempty"` // base64-encoded raw signature bytes
}

// DemoProofType marks a non-cryptographic proof used in demos. A verifier
// only accepts it when constructed with the explicit insecure flag.
const DemoProofType = "DemoSignature2023"

// VerificationMethod is an entry in a DID document describing a public key
// usable to verify signatures attributed to the DID.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// DIDDocument is the subset of a DID document the authentication flow needs.
type DIDDocument struct {
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod,omitempty"`
	Authentication     []string             `json:"authentication,omitempty"`
}

// Method returns the verification method with the given id, or nil. Both the
// fully qualified form (did#fragment) and a bare fragment are accepted.
func (d *DIDDocument) Method(id string) *VerificationMethod {
	for i := range d.VerificationMethod {
		vm := &d.VerificationMethod[i]
		if vm.ID == id || vm.ID == d.ID+"#"+id {
			return vm
		}
	}
	return nil
}

// KeyAlgorithm is the closed set of signature algorithms the verifier
// dispatches over. Adding or rejecting an algorithm is a compile-time
// decision; there is no fallback between variants.
type KeyAlgorithm uint8

const (
	AlgEd25519 KeyAlgorithm = iota + 1
	AlgSecp256k1
	AlgP256
)

func (a KeyAlgorithm) String() string {
	switch a {
	case AlgEd25519:
		return "Ed25519"
	case AlgSecp256k1:
		return "secp256k1"
	case AlgP256:
		return "P-256"
	default:
		return "unknown"
	}
}

// AlgorithmForMethodType maps a verification method type string to its key
// algorithm. Multikey is intentionally absent: for Multikey entries the
// algorithm is derived from the multicodec prefix of the key itself.
func AlgorithmForMethodType(methodType string) (KeyAlgorithm, error) {
	switch methodType {
	case "Ed25519VerificationKey2018", "Ed25519VerificationKey2020":
		return AlgEd25519, nil
	case "EcdsaSecp256k1VerificationKey2019":
		return AlgSecp256k1, nil
	case "EcdsaSecp256r1VerificationKey2019", "P256Key2021":
		return AlgP256, nil
	default:
		return 0, ErrUnsupportedAlgorithm
	}
}
