package reserves

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"

	"reserves.dev/verifier/crypto"
)

// spendVerifier checks real inputs of one proof.
type spendVerifier struct {
	ctx *spendContext
	p   crypto.Provider
}

func newSpendVerifier(proof *ProofTx, p crypto.Provider) *spendVerifier {
	if p == nil {
		p = crypto.Default()
	}
	return &spendVerifier{ctx: newSpendContext(proof), p: p}
}

// VerifySpend checks the unlocking data of real input idx against its
// previous output. Index 0 is the challenge and is never a valid argument.
func VerifySpend(proof *ProofTx, idx int, p crypto.Provider) (Template, error) {
	if proof == nil || idx <= 0 || idx >= len(proof.Inputs) {
		return TemplateUnknown, inputerr(PROOF_ERR_INVALID_SIGNATURE, idx, "not a real input")
	}
	return newSpendVerifier(proof, p).verify(idx)
}

func (v *spendVerifier) verify(idx int) (Template, error) {
	in := &v.ctx.proof.Inputs[idx]
	shape, err := classifySpend(in)
	if err != nil {
		return TemplateUnknown, inputerr(PROOF_ERR_INVALID_SIGNATURE, idx, err.Error())
	}

	switch shape.tpl {
	case TemplateP2PKH:
		err = v.verifyP2PKH(in, shape)
	case TemplateP2WPKH:
		err = v.verifyP2WPKH(in, shape)
	case TemplateP2SHP2PKH:
		err = v.verifyP2SHP2PKH(in, shape)
	case TemplateP2SHP2WPKH:
		err = v.verifyP2SHP2WPKH(in, shape)
	case TemplateP2TRKeyPath:
		err = v.verifyP2TRKeyPath(in, shape)
	case TemplateP2WSHMultisig:
		err = v.verifyP2WSHMultisig(in, shape)
	case TemplateP2SHP2WSHMultisig:
		err = v.verifyP2SHP2WSHMultisig(in, shape)
	default:
		err = errUnsupportedTemplate
	}
	if err != nil {
		return shape.tpl, inputerr(PROOF_ERR_INVALID_SIGNATURE, idx, fmt.Sprintf("%s: %v", shape.tpl, err))
	}

	// Replay the scripts through the consensus engine as well; the
	// template checks above must never be the only gate.
	if err := v.execute(in); err != nil {
		return shape.tpl, inputerr(PROOF_ERR_INVALID_SIGNATURE, idx, fmt.Sprintf("%s: script execution: %v", shape.tpl, err))
	}
	return shape.tpl, nil
}

func (v *spendVerifier) verifyP2PKH(in *ProofInput, s spendShape) error {
	if !in.ValueCommitted {
		return errors.New("legacy spend requires a non-witness utxo")
	}
	if err := v.checkKeyHash(in.Utxo.PkScript[3:23], s.pubkey); err != nil {
		return err
	}
	return v.checkECDSA(s, func(ht txscript.SigHashType) ([]byte, error) {
		return v.ctx.legacyDigest(in.Utxo.PkScript, ht, in.Index)
	})
}

func (v *spendVerifier) verifyP2WPKH(in *ProofInput, s spendShape) error {
	if len(s.pubkey) != 33 {
		return errors.New("witness pubkey must be compressed")
	}
	if err := v.checkKeyHash(in.Utxo.PkScript[2:22], s.pubkey); err != nil {
		return err
	}
	return v.checkECDSA(s, func(ht txscript.SigHashType) ([]byte, error) {
		return v.ctx.witnessV0Digest(in.Utxo.PkScript, ht, in.Index, in.Utxo.Value)
	})
}

func (v *spendVerifier) verifyP2SHP2PKH(in *ProofInput, s spendShape) error {
	if !in.ValueCommitted {
		return errors.New("legacy spend requires a non-witness utxo")
	}
	if err := v.checkScriptHash(in.Utxo.PkScript, s.redeem); err != nil {
		return err
	}
	if err := v.checkKeyHash(s.redeem[3:23], s.pubkey); err != nil {
		return err
	}
	return v.checkECDSA(s, func(ht txscript.SigHashType) ([]byte, error) {
		return v.ctx.legacyDigest(s.redeem, ht, in.Index)
	})
}

func (v *spendVerifier) verifyP2SHP2WPKH(in *ProofInput, s spendShape) error {
	if len(s.pubkey) != 33 {
		return errors.New("witness pubkey must be compressed")
	}
	if err := v.checkScriptHash(in.Utxo.PkScript, s.redeem); err != nil {
		return err
	}
	if err := v.checkKeyHash(s.redeem[2:22], s.pubkey); err != nil {
		return err
	}
	return v.checkECDSA(s, func(ht txscript.SigHashType) ([]byte, error) {
		return v.ctx.witnessV0Digest(s.redeem, ht, in.Index, in.Utxo.Value)
	})
}

func (v *spendVerifier) verifyP2TRKeyPath(in *ProofInput, s spendShape) error {
	sig, ht, err := splitSchnorrSig(s.sig)
	if err != nil {
		return err
	}
	digest, err := v.ctx.taprootDigest(ht, in.Index)
	if err != nil {
		return err
	}
	outputKey := in.Utxo.PkScript[2:34]
	if !v.p.VerifySchnorr(outputKey, sig, digest) {
		return errors.New("schnorr signature invalid")
	}
	return nil
}

func (v *spendVerifier) verifyP2WSHMultisig(in *ProofInput, s spendShape) error {
	if err := checkWitnessScriptHash(in.Utxo.PkScript[2:34], s.witnessScript); err != nil {
		return err
	}
	return v.checkMultisig(in, s)
}

func (v *spendVerifier) verifyP2SHP2WSHMultisig(in *ProofInput, s spendShape) error {
	if err := v.checkScriptHash(in.Utxo.PkScript, s.redeem); err != nil {
		return err
	}
	if err := checkWitnessScriptHash(s.redeem[2:34], s.witnessScript); err != nil {
		return err
	}
	return v.checkMultisig(in, s)
}

// checkMultisig matches signatures to keys in script order, the way
// OP_CHECKMULTISIG does: a key that fails a signature is skipped for good.
func (v *spendVerifier) checkMultisig(in *ProofInput, s spendShape) error {
	keys, err := multisigKeys(s.witnessScript)
	if err != nil {
		return err
	}
	k := 0
	for i, sig := range s.sigs {
		der, ht, err := splitECDSASig(sig)
		if err != nil {
			return fmt.Errorf("signature %d: %w", i, err)
		}
		digest, err := v.ctx.witnessV0Digest(s.witnessScript, ht, in.Index, in.Utxo.Value)
		if err != nil {
			return fmt.Errorf("signature %d: %w", i, err)
		}
		matched := false
		for ; k < len(keys) && !matched; k++ {
			if len(keys[k]) != 33 {
				return errors.New("witness pubkey must be compressed")
			}
			matched = v.p.VerifyECDSA(keys[k], der, digest)
		}
		if !matched {
			return fmt.Errorf("signature %d matches no remaining key", i)
		}
	}
	return nil
}

func (v *spendVerifier) checkECDSA(s spendShape, digestFn func(txscript.SigHashType) ([]byte, error)) error {
	der, ht, err := splitECDSASig(s.sig)
	if err != nil {
		return err
	}
	digest, err := digestFn(ht)
	if err != nil {
		return err
	}
	if !v.p.VerifyECDSA(s.pubkey, der, digest) {
		return errors.New("ecdsa signature invalid")
	}
	return nil
}

func (v *spendVerifier) checkKeyHash(want []byte, pubkey []byte) error {
	got := v.p.Hash160(pubkey)
	if !bytes.Equal(got[:], want) {
		return errors.New("key binding mismatch")
	}
	return nil
}

func (v *spendVerifier) checkScriptHash(pkScript []byte, redeem []byte) error {
	got := v.p.Hash160(redeem)
	if !bytes.Equal(got[:], pkScript[2:22]) {
		return errors.New("redeem script hash mismatch")
	}
	return nil
}

func checkWitnessScriptHash(program []byte, witnessScript []byte) error {
	if !bytes.Equal(chainhash.HashB(witnessScript), program) {
		return errors.New("witness script hash mismatch")
	}
	return nil
}

func (v *spendVerifier) execute(in *ProofInput) error {
	vm, err := txscript.NewEngine(
		in.Utxo.PkScript,
		v.ctx.tx,
		in.Index,
		txscript.StandardVerifyFlags,
		nil,
		v.ctx.sigHashes,
		in.Utxo.Value,
		v.ctx.fetcher,
	)
	if err != nil {
		return err
	}
	return vm.Execute()
}
