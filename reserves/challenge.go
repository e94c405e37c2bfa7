package reserves

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ChallengePrefix is the domain separator hashed ahead of the message. It
// matches the proofs produced by bdk-reserves.
const ChallengePrefix = "Proof-of-Reserves: "

// ChallengeVout is the output index every challenge outpoint refers to.
const ChallengeVout = 0

// ExpectedChallenge derives the synthetic outpoint a proof for message must
// spend as input 0: SHA256d(prefix || message) as the txid, index 0. There is
// no transaction with that id, so the input can never be spent for real.
func ExpectedChallenge(message string) wire.OutPoint {
	return wire.OutPoint{
		Hash:  chainhash.DoubleHashH([]byte(ChallengePrefix + message)),
		Index: ChallengeVout,
	}
}

// BindChallenge checks that input 0 of the proof is the challenge for
// message. Its unlocking data is not verified: there is no coin behind it.
func BindChallenge(p *ProofTx, message string) error {
	if p == nil || len(p.Inputs) == 0 {
		return prooferr(PROOF_ERR_NO_INPUTS, "")
	}
	in := p.Inputs[0]
	want := ExpectedChallenge(message)
	if in.PrevOut != want {
		return inputerr(PROOF_ERR_BAD_CHALLENGE, 0, fmt.Sprintf("spends %v, want %v", in.PrevOut, want))
	}
	if in.Utxo != nil && in.Utxo.Value != 0 {
		return inputerr(PROOF_ERR_BAD_CHALLENGE, 0, fmt.Sprintf("challenge claims value %d", in.Utxo.Value))
	}
	return nil
}

// BurnOutputScript is the P2PKH of HASH160(0x00) that bdk-reserves proofs pay
// their single output to. Nobody knows a key for it.
func BurnOutputScript() []byte {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160([]byte{0x00})).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		panic(err)
	}
	return script
}

// checkBurnOutput requires the proof output to pay BurnOutputScript.
func checkBurnOutput(p *ProofTx) error {
	if p == nil || p.Output == nil {
		return prooferr(PROOF_ERR_INVALID_OUTPUT, "missing output")
	}
	if !bytes.Equal(p.Output.PkScript, BurnOutputScript()) {
		return prooferr(PROOF_ERR_INVALID_OUTPUT, fmt.Sprintf("output script %x", p.Output.PkScript))
	}
	return nil
}
