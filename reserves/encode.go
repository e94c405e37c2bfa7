package reserves

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// EncodeProof serializes a packet into the base64 form DecodeProof accepts.
func EncodeProof(pkt *psbt.Packet) (string, error) {
	if pkt == nil {
		return "", prooferr(PROOF_ERR_MALFORMED, "nil packet")
	}
	return pkt.B64Encode()
}

// EncodeProofBytes serializes a packet into binary PSBT form.
func EncodeProofBytes(pkt *psbt.Packet) ([]byte, error) {
	if pkt == nil {
		return nil, prooferr(PROOF_ERR_MALFORMED, "nil packet")
	}
	var buf bytes.Buffer
	if err := pkt.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode re-serializes the PSBT a proof was decoded from.
func (p *ProofTx) Encode() (string, error) {
	return EncodeProof(p.Packet)
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}
