package reserves

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"reserves.dev/verifier/crypto"
)

// Config tunes a Verifier. The zero value infers the network from the
// addresses and uses the default secp256k1 provider.
type Config struct {
	Network  Network
	Provider crypto.Provider

	// RequireBurnOutput rejects proofs whose output does not pay
	// BurnOutputScript, as bdk-reserves itself does.
	RequireBurnOutput bool
}

// Verifier validates proof-of-reserves PSBTs. It holds no mutable state and
// is safe for concurrent use.
type Verifier struct {
	net        Network
	provider   crypto.Provider
	burnOutput bool
}

func NewVerifier(cfg Config) *Verifier {
	net := cfg.Network
	if net == "" {
		net = NetworkAuto
	}
	p := cfg.Provider
	if p == nil {
		p = crypto.Default()
	}
	return &Verifier{net: net, provider: p, burnOutput: cfg.RequireBurnOutput}
}

// VerifiedInput is one real input that passed every check.
type VerifiedInput struct {
	Index    int
	PrevOut  wire.OutPoint
	Address  string
	Template Template
	Value    int64
}

// Verification is the outcome of a successful validation.
type Verification struct {
	Spendable uint64
	Network   string
	Inputs    []VerifiedInput
}

// Validate verifies proofB64 as a proof that addresses control funds, bound
// to message. Any failure is a *ProofError and no partial total is
// returned.
func Validate(message string, addresses []string, proofB64 string) (*Verification, error) {
	return NewVerifier(Config{}).Validate(message, addresses, proofB64)
}

func (v *Verifier) Validate(message string, addresses []string, proofB64 string) (*Verification, error) {
	proof, err := DecodeProof(proofB64)
	if err != nil {
		return nil, err
	}
	claimed, params, err := ParseAddresses(addresses, v.net)
	if err != nil {
		return nil, err
	}
	res, err := v.ValidateProof(message, claimed, proof)
	if err != nil {
		return nil, err
	}
	res.Network = params.Name
	return res, nil
}

// ValidateProof runs the checks on an already decoded proof. Real inputs are
// processed in order and the first failure ends verification.
func (v *Verifier) ValidateProof(message string, claimed []ClaimedAddress, proof *ProofTx) (*Verification, error) {
	if proof == nil || len(proof.Inputs) == 0 {
		return nil, prooferr(PROOF_ERR_NO_INPUTS, "")
	}
	if err := BindChallenge(proof, message); err != nil {
		return nil, err
	}
	if v.burnOutput {
		if err := checkBurnOutput(proof); err != nil {
			return nil, err
		}
	}

	sv := newSpendVerifier(proof, v.provider)
	var total uint64
	verified := make([]VerifiedInput, 0, len(proof.Inputs)-1)
	for idx := 1; idx < len(proof.Inputs); idx++ {
		in := &proof.Inputs[idx]

		addr, err := MatchAddress(in.Utxo.PkScript, claimed)
		if err != nil {
			return nil, atInput(err, idx)
		}
		tpl, err := sv.verify(idx)
		if err != nil {
			return nil, err
		}
		total, err = addAmount(total, in.Utxo.Value)
		if err != nil {
			return nil, atInput(err, idx)
		}

		verified = append(verified, VerifiedInput{
			Index:    idx,
			PrevOut:  in.PrevOut,
			Address:  addr.Raw,
			Template: tpl,
			Value:    in.Utxo.Value,
		})
	}

	if uint64(proof.Output.Value) > total {
		return nil, prooferr(PROOF_ERR_VALUE_CONSERVATION, fmt.Sprintf("output %d exceeds inputs %d", proof.Output.Value, total))
	}

	return &Verification{Spendable: total, Inputs: verified}, nil
}
