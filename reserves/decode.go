package reserves

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// MaxProofBytes bounds the serialized PSBT accepted by the decoder.
const MaxProofBytes = 1 << 20

// DecodeProof decodes a base64 PSBT into a proof transaction.
func DecodeProof(b64 string) (*ProofTx, error) {
	s := strings.TrimSpace(b64)
	if s == "" {
		return nil, prooferr(PROOF_ERR_MALFORMED, "empty proof")
	}
	if base64.StdEncoding.DecodedLen(len(s)) > MaxProofBytes {
		return nil, prooferr(PROOF_ERR_MALFORMED, "proof exceeds size limit")
	}
	pkt, err := psbt.NewFromRawBytes(strings.NewReader(s), true)
	if err != nil {
		return nil, prooferr(PROOF_ERR_MALFORMED, fmt.Sprintf("psbt: %v", err))
	}
	return decodePacket(pkt)
}

// DecodeProofBytes decodes a binary PSBT into a proof transaction.
func DecodeProofBytes(raw []byte) (*ProofTx, error) {
	if len(raw) == 0 {
		return nil, prooferr(PROOF_ERR_MALFORMED, "empty proof")
	}
	if len(raw) > MaxProofBytes {
		return nil, prooferr(PROOF_ERR_MALFORMED, "proof exceeds size limit")
	}
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, prooferr(PROOF_ERR_MALFORMED, fmt.Sprintf("psbt: %v", err))
	}
	return decodePacket(pkt)
}

func decodePacket(pkt *psbt.Packet) (*ProofTx, error) {
	utx := pkt.UnsignedTx
	if utx == nil {
		return nil, prooferr(PROOF_ERR_MALFORMED, "psbt: missing unsigned tx")
	}
	if len(pkt.Inputs) != len(utx.TxIn) || len(pkt.Outputs) != len(utx.TxOut) {
		return nil, prooferr(PROOF_ERR_MALFORMED, "psbt: input/output map count mismatch")
	}

	// Output shape is checked before any input is looked at.
	if len(utx.TxOut) != 1 {
		return nil, prooferr(PROOF_ERR_WRONG_OUTPUT_COUNT, fmt.Sprintf("got %d outputs", len(utx.TxOut)))
	}
	out := utx.TxOut[0]
	if out.Value < 0 || out.Value > btcutil.MaxSatoshi {
		return nil, prooferr(PROOF_ERR_MALFORMED, fmt.Sprintf("output value %d out of range", out.Value))
	}

	inputs := make([]ProofInput, 0, len(utx.TxIn))
	seen := make(map[wire.OutPoint]struct{}, len(utx.TxIn))
	for i, txIn := range utx.TxIn {
		pIn := &pkt.Inputs[i]
		if _, dup := seen[txIn.PreviousOutPoint]; dup {
			return nil, inputerr(PROOF_ERR_MALFORMED, i, fmt.Sprintf("duplicate outpoint %v", txIn.PreviousOutPoint))
		}
		seen[txIn.PreviousOutPoint] = struct{}{}

		if !isFinalized(pIn, i == 0) {
			return nil, inputerr(PROOF_ERR_UNFINALIZED, i, "")
		}

		utxo, committed, err := resolveUtxo(txIn.PreviousOutPoint, pIn)
		if err != nil {
			return nil, atInput(err, i)
		}
		if utxo == nil && i > 0 {
			return nil, inputerr(PROOF_ERR_MALFORMED, i, "missing witness or non-witness utxo")
		}
		if utxo != nil && utxo.Value < 0 {
			return nil, inputerr(PROOF_ERR_MALFORMED, i, fmt.Sprintf("negative utxo value %d", utxo.Value))
		}

		inputs = append(inputs, ProofInput{
			Index:          i,
			PrevOut:        txIn.PreviousOutPoint,
			Utxo:           utxo,
			ValueCommitted: committed,
		})
	}

	final, err := psbt.Extract(pkt)
	if err != nil {
		return nil, prooferr(PROOF_ERR_MALFORMED, fmt.Sprintf("extract: %v", err))
	}
	for i := range inputs {
		inputs[i].ScriptSig = final.TxIn[i].SignatureScript
		inputs[i].Witness = final.TxIn[i].Witness
	}

	return &ProofTx{
		Packet: pkt,
		Tx:     final,
		Inputs: inputs,
		Output: out,
	}, nil
}

// isFinalized reports whether the input carries final unlocking data. Partial
// signatures or a bare taproot key-spend signature do not count. The
// challenge is finalized by bdk-reserves with an empty scriptSig, so for it
// the presence of the field is enough.
func isFinalized(in *psbt.PInput, challenge bool) bool {
	if challenge && in.FinalScriptSig != nil {
		return true
	}
	return len(in.FinalScriptSig) > 0 || len(in.FinalScriptWitness) > 0
}

// resolveUtxo picks the previous output from the non-witness UTXO (checked
// against the outpoint) or the witness UTXO. When both are present they must
// agree.
func resolveUtxo(prev wire.OutPoint, in *psbt.PInput) (*wire.TxOut, bool, error) {
	var full *wire.TxOut
	if in.NonWitnessUtxo != nil {
		if in.NonWitnessUtxo.TxHash() != prev.Hash {
			return nil, false, prooferr(PROOF_ERR_MALFORMED, "non-witness utxo does not hash to the outpoint txid")
		}
		idx, ok := u32Index(prev.Index, len(in.NonWitnessUtxo.TxOut))
		if !ok {
			return nil, false, prooferr(PROOF_ERR_MALFORMED, fmt.Sprintf("non-witness utxo has no output %d", prev.Index))
		}
		full = in.NonWitnessUtxo.TxOut[idx]
	}

	switch {
	case full != nil && in.WitnessUtxo != nil:
		if full.Value != in.WitnessUtxo.Value || !bytes.Equal(full.PkScript, in.WitnessUtxo.PkScript) {
			return nil, false, prooferr(PROOF_ERR_MALFORMED, "witness and non-witness utxo disagree")
		}
		return full, true, nil
	case full != nil:
		return full, true, nil
	case in.WitnessUtxo != nil:
		return in.WitnessUtxo, false, nil
	default:
		return nil, false, nil
	}
}
