package reserves

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// Template is the closed set of spend shapes the verifier understands.
type Template uint8

const (
	TemplateUnknown Template = iota
	TemplateP2PKH
	TemplateP2WPKH
	TemplateP2SHP2PKH
	TemplateP2SHP2WPKH
	TemplateP2TRKeyPath
	TemplateP2WSHMultisig
	TemplateP2SHP2WSHMultisig
)

func (t Template) String() string {
	switch t {
	case TemplateP2PKH:
		return "p2pkh"
	case TemplateP2WPKH:
		return "p2wpkh"
	case TemplateP2SHP2PKH:
		return "p2sh-p2pkh"
	case TemplateP2SHP2WPKH:
		return "p2sh-p2wpkh"
	case TemplateP2TRKeyPath:
		return "p2tr-keypath"
	case TemplateP2WSHMultisig:
		return "p2wsh-multisig"
	case TemplateP2SHP2WSHMultisig:
		return "p2sh-p2wsh-multisig"
	default:
		return "unknown"
	}
}

// Segwit reports whether the template is spent through the witness.
func (t Template) Segwit() bool {
	switch t {
	case TemplateP2WPKH, TemplateP2SHP2WPKH, TemplateP2TRKeyPath, TemplateP2WSHMultisig, TemplateP2SHP2WSHMultisig:
		return true
	default:
		return false
	}
}

const taprootAnnexTag = 0x50

// spendShape is the unlocking data of one input, split by template.
// Multisig spends carry sigs and witnessScript instead of sig and pubkey.
type spendShape struct {
	tpl    Template
	sig    []byte
	pubkey []byte
	redeem []byte

	sigs          [][]byte
	witnessScript []byte
}

var errUnsupportedTemplate = errors.New("unsupported script template")

// classifySpend dispatches on the previous output script. P2SH needs the
// redeem script and P2TR needs the witness to tell key path from script path.
func classifySpend(in *ProofInput) (spendShape, error) {
	if in.Utxo == nil {
		return spendShape{}, errors.New("missing previous output")
	}
	pkScript := in.Utxo.PkScript

	switch class := txscript.GetScriptClass(pkScript); class {
	case txscript.PubKeyHashTy:
		if len(in.Witness) != 0 {
			return spendShape{}, errors.New("p2pkh: unexpected witness")
		}
		pushes, err := scriptPushes(in.ScriptSig)
		if err != nil {
			return spendShape{}, fmt.Errorf("p2pkh: %w", err)
		}
		if len(pushes) != 2 {
			return spendShape{}, fmt.Errorf("p2pkh: scriptSig has %d pushes, want 2", len(pushes))
		}
		return spendShape{tpl: TemplateP2PKH, sig: pushes[0], pubkey: pushes[1]}, nil

	case txscript.WitnessV0PubKeyHashTy:
		if len(in.ScriptSig) != 0 {
			return spendShape{}, errors.New("p2wpkh: scriptSig must be empty")
		}
		if len(in.Witness) != 2 {
			return spendShape{}, fmt.Errorf("p2wpkh: witness has %d items, want 2", len(in.Witness))
		}
		return spendShape{tpl: TemplateP2WPKH, sig: in.Witness[0], pubkey: in.Witness[1]}, nil

	case txscript.WitnessV0ScriptHashTy:
		if len(in.ScriptSig) != 0 {
			return spendShape{}, errors.New("p2wsh: scriptSig must be empty")
		}
		sigs, ws, err := multisigWitness(in.Witness)
		if err != nil {
			return spendShape{}, fmt.Errorf("p2wsh: %w", err)
		}
		return spendShape{tpl: TemplateP2WSHMultisig, sigs: sigs, witnessScript: ws}, nil

	case txscript.ScriptHashTy:
		pushes, err := scriptPushes(in.ScriptSig)
		if err != nil {
			return spendShape{}, fmt.Errorf("p2sh: %w", err)
		}
		if len(pushes) == 0 {
			return spendShape{}, errors.New("p2sh: missing redeem script")
		}
		redeem := pushes[len(pushes)-1]
		switch inner := txscript.GetScriptClass(redeem); inner {
		case txscript.WitnessV0PubKeyHashTy:
			if len(pushes) != 1 {
				return spendShape{}, errors.New("p2sh-p2wpkh: scriptSig must only push the redeem script")
			}
			if len(in.Witness) != 2 {
				return spendShape{}, fmt.Errorf("p2sh-p2wpkh: witness has %d items, want 2", len(in.Witness))
			}
			return spendShape{tpl: TemplateP2SHP2WPKH, sig: in.Witness[0], pubkey: in.Witness[1], redeem: redeem}, nil
		case txscript.PubKeyHashTy:
			if len(in.Witness) != 0 {
				return spendShape{}, errors.New("p2sh-p2pkh: unexpected witness")
			}
			if len(pushes) != 3 {
				return spendShape{}, fmt.Errorf("p2sh-p2pkh: scriptSig has %d pushes, want 3", len(pushes))
			}
			return spendShape{tpl: TemplateP2SHP2PKH, sig: pushes[0], pubkey: pushes[1], redeem: redeem}, nil
		case txscript.WitnessV0ScriptHashTy:
			if len(pushes) != 1 {
				return spendShape{}, errors.New("p2sh-p2wsh: scriptSig must only push the redeem script")
			}
			sigs, ws, err := multisigWitness(in.Witness)
			if err != nil {
				return spendShape{}, fmt.Errorf("p2sh-p2wsh: %w", err)
			}
			return spendShape{tpl: TemplateP2SHP2WSHMultisig, sigs: sigs, witnessScript: ws, redeem: redeem}, nil
		default:
			return spendShape{}, fmt.Errorf("%w: p2sh wrapping %s", errUnsupportedTemplate, inner)
		}

	case txscript.WitnessV1TaprootTy:
		if len(in.ScriptSig) != 0 {
			return spendShape{}, errors.New("p2tr: scriptSig must be empty")
		}
		wit := in.Witness
		if len(wit) >= 2 && len(wit[len(wit)-1]) > 0 && wit[len(wit)-1][0] == taprootAnnexTag {
			return spendShape{}, fmt.Errorf("%w: p2tr witness with annex", errUnsupportedTemplate)
		}
		if len(wit) != 1 {
			return spendShape{}, fmt.Errorf("%w: p2tr script path", errUnsupportedTemplate)
		}
		return spendShape{tpl: TemplateP2TRKeyPath, sig: wit[0]}, nil

	default:
		return spendShape{}, fmt.Errorf("%w: %s", errUnsupportedTemplate, class)
	}
}

// multisigWitness splits a CHECKMULTISIG witness: the empty dummy element,
// exactly m signatures, then the witness script. Other witness scripts are
// not supported.
func multisigWitness(wit [][]byte) ([][]byte, []byte, error) {
	if len(wit) < 3 {
		return nil, nil, fmt.Errorf("witness has %d items", len(wit))
	}
	ws := wit[len(wit)-1]
	if class := txscript.GetScriptClass(ws); class != txscript.MultiSigTy {
		return nil, nil, fmt.Errorf("%w: witness script is %s", errUnsupportedTemplate, class)
	}
	if len(wit[0]) != 0 {
		return nil, nil, errors.New("multisig dummy element must be empty")
	}
	_, nSigs, err := txscript.CalcMultiSigStats(ws)
	if err != nil {
		return nil, nil, err
	}
	sigs := wit[1 : len(wit)-1]
	if len(sigs) != nSigs {
		return nil, nil, fmt.Errorf("witness has %d signatures, script requires %d", len(sigs), nSigs)
	}
	return sigs, ws, nil
}

// multisigKeys returns the public keys of a canonical multisig script in
// script order.
func multisigKeys(script []byte) ([][]byte, error) {
	nKeys, _, err := txscript.CalcMultiSigStats(script)
	if err != nil {
		return nil, err
	}
	keys := make([][]byte, 0, nKeys)
	tok := txscript.MakeScriptTokenizer(0, script)
	for tok.Next() {
		if d := tok.Data(); d != nil {
			keys = append(keys, d)
		}
	}
	if err := tok.Err(); err != nil {
		return nil, err
	}
	if len(keys) != nKeys {
		return nil, fmt.Errorf("multisig script has %d keys, header says %d", len(keys), nKeys)
	}
	return keys, nil
}

// scriptPushes returns the data pushed by a push-only script. Small-integer
// opcodes and empty pushes are rejected since none of the supported
// templates use them.
func scriptPushes(script []byte) ([][]byte, error) {
	var pushes [][]byte
	tok := txscript.MakeScriptTokenizer(0, script)
	for tok.Next() {
		op := tok.Opcode()
		if op == txscript.OP_0 || op > txscript.OP_PUSHDATA4 {
			return nil, fmt.Errorf("non-data opcode 0x%02x in scriptSig", op)
		}
		pushes = append(pushes, tok.Data())
	}
	if err := tok.Err(); err != nil {
		return nil, err
	}
	return pushes, nil
}
