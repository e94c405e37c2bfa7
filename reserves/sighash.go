package reserves

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// spendContext carries the transaction-wide signing state shared by every
// real input of one proof.
type spendContext struct {
	proof     *ProofTx
	tx        *wire.MsgTx
	fetcher   txscript.PrevOutputFetcher
	sigHashes *txscript.TxSigHashes
}

func newSpendContext(p *ProofTx) *spendContext {
	fetcher := p.prevOutFetcher()
	return &spendContext{
		proof:     p,
		tx:        p.Tx,
		fetcher:   fetcher,
		sigHashes: txscript.NewTxSigHashes(p.Tx, fetcher),
	}
}

// checkSigHashType accepts ALL, NONE and SINGLE. ANYONECANPAY is refused: a
// signature that does not commit to every input does not commit to the
// challenge input, and could be replayed under another message.
func checkSigHashType(ht txscript.SigHashType, idx int, outputs int, legacy bool) error {
	if ht&txscript.SigHashAnyOneCanPay != 0 {
		return fmt.Errorf("sighash type 0x%02x does not commit to the challenge input", uint32(ht))
	}
	switch ht {
	case txscript.SigHashAll, txscript.SigHashNone:
		return nil
	case txscript.SigHashSingle:
		// Legacy SIGHASH_SINGLE without a matching output signs the
		// constant 1 and binds nothing.
		if legacy && idx >= outputs {
			return errors.New("sighash single without matching output")
		}
		return nil
	default:
		return fmt.Errorf("non-standard sighash type 0x%02x", uint32(ht))
	}
}

// splitECDSASig separates the DER body from the trailing sighash byte.
func splitECDSASig(sig []byte) ([]byte, txscript.SigHashType, error) {
	if len(sig) < 9 || len(sig) > 73 {
		return nil, 0, fmt.Errorf("ecdsa signature length %d", len(sig))
	}
	return sig[:len(sig)-1], txscript.SigHashType(sig[len(sig)-1]), nil
}

// splitSchnorrSig handles the implicit SIGHASH_DEFAULT (64 bytes) and the
// explicit form (65 bytes, type must not be 0x00).
func splitSchnorrSig(sig []byte) ([]byte, txscript.SigHashType, error) {
	switch len(sig) {
	case schnorr.SignatureSize:
		return sig, txscript.SigHashDefault, nil
	case schnorr.SignatureSize + 1:
		ht := txscript.SigHashType(sig[schnorr.SignatureSize])
		if ht == txscript.SigHashDefault {
			return nil, 0, errors.New("explicit sighash default is not allowed")
		}
		return sig[:schnorr.SignatureSize], ht, nil
	default:
		return nil, 0, fmt.Errorf("schnorr signature length %d", len(sig))
	}
}

// legacyDigest is the pre-segwit signature hash over subScript.
func (c *spendContext) legacyDigest(subScript []byte, ht txscript.SigHashType, idx int) ([]byte, error) {
	if err := checkSigHashType(ht, idx, len(c.tx.TxOut), true); err != nil {
		return nil, err
	}
	return txscript.CalcSignatureHash(subScript, ht, c.tx, idx)
}

// witnessV0Digest is the BIP-143 signature hash; for P2WPKH the script code
// is derived from the witness program inside txscript.
func (c *spendContext) witnessV0Digest(program []byte, ht txscript.SigHashType, idx int, amount int64) ([]byte, error) {
	if err := checkSigHashType(ht, idx, len(c.tx.TxOut), false); err != nil {
		return nil, err
	}
	return txscript.CalcWitnessSigHash(program, c.sigHashes, ht, c.tx, idx, amount)
}

// taprootDigest is the BIP-341 key-path signature hash, committing to every
// input's amount and script.
func (c *spendContext) taprootDigest(ht txscript.SigHashType, idx int) ([]byte, error) {
	if ht != txscript.SigHashDefault {
		if err := checkSigHashType(ht, idx, len(c.tx.TxOut), false); err != nil {
			return nil, err
		}
	}
	return txscript.CalcTaprootSignatureHash(c.sigHashes, ht, c.tx, idx, c.fetcher)
}
