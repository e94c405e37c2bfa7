package crypto

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // HASH160 is RIPEMD160(SHA256(x)) by consensus.
)

// Secp256k1Provider verifies Bitcoin ECDSA and BIP-340 signatures with btcec.
type Secp256k1Provider struct{}

func (Secp256k1Provider) Hash160(input []byte) [20]byte {
	sha := sha256.Sum256(input)
	h := ripemd160.New()
	_, _ = h.Write(sha[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyECDSA expects a strict DER signature without the trailing sighash byte.
func (Secp256k1Provider) VerifyECDSA(pubkey []byte, derSig []byte, digest []byte) bool {
	if len(digest) != 32 {
		return false
	}
	pk, err := btcec.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return false
	}
	return sig.Verify(digest, pk)
}

// VerifySchnorr expects a 32-byte x-only key and a 64-byte signature.
func (Secp256k1Provider) VerifySchnorr(xOnlyPubkey []byte, sig []byte, digest []byte) bool {
	if len(digest) != 32 || len(sig) != schnorr.SignatureSize {
		return false
	}
	pk, err := schnorr.ParsePubKey(xOnlyPubkey)
	if err != nil {
		return false
	}
	s, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return s.Verify(digest, pk)
}

// Default returns the provider used when callers do not inject one.
func Default() Provider {
	return Secp256k1Provider{}
}
