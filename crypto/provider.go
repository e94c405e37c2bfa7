package crypto

// Provider is the narrow crypto interface used by the spend verifier.
// Implementations must be safe for concurrent use.
type Provider interface {
	Hash160(input []byte) [20]byte
	VerifyECDSA(pubkey []byte, derSig []byte, digest []byte) bool
	VerifySchnorr(xOnlyPubkey []byte, sig []byte, digest []byte) bool
}
