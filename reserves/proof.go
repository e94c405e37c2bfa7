package reserves

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ProofInput is one decoded input of a proof PSBT.
type ProofInput struct {
	Index   int
	PrevOut wire.OutPoint

	// Utxo is the previous output claimed by the PSBT. It is nil only for a
	// challenge input that carries no UTXO record.
	Utxo *wire.TxOut

	// ValueCommitted is set when Utxo was taken from a non-witness UTXO whose
	// txid matches PrevOut, so the amount is bound to the signed outpoint
	// even for legacy spends.
	ValueCommitted bool

	ScriptSig []byte
	Witness   wire.TxWitness
}

// ProofTx is a decoded proof: the PSBT, the finalized transaction extracted
// from it, and the per-input view the verifier works on.
type ProofTx struct {
	Packet *psbt.Packet
	Tx     *wire.MsgTx
	Inputs []ProofInput
	Output *wire.TxOut
}

// Challenge returns input 0, or nil for a proof without inputs.
func (p *ProofTx) Challenge() *ProofInput {
	if p == nil || len(p.Inputs) == 0 {
		return nil
	}
	return &p.Inputs[0]
}

// RealInputs returns the inputs that may carry spendable value.
func (p *ProofTx) RealInputs() []ProofInput {
	if p == nil || len(p.Inputs) < 2 {
		return nil
	}
	return p.Inputs[1:]
}

// ClaimedTotal sums the claimed values of the real inputs without verifying
// anything. It saturates instead of failing.
func (p *ProofTx) ClaimedTotal() uint64 {
	var total uint64
	for _, in := range p.RealInputs() {
		next, err := addAmount(total, in.Utxo.Value)
		if err != nil {
			return maxAmount
		}
		total = next
	}
	return total
}

// prevOutFetcher serves every input's previous output. The challenge input
// without a UTXO record is served as a zero-value empty script, which is what
// a signer without that record would have committed to.
func (p *ProofTx) prevOutFetcher() *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, in := range p.Inputs {
		utxo := in.Utxo
		if utxo == nil {
			utxo = wire.NewTxOut(0, nil)
		}
		fetcher.AddPrevOut(in.PrevOut, utxo)
	}
	return fetcher
}

// ProofSummary is a read-only description of a decoded proof.
type ProofSummary struct {
	Txid         string         `json:"txid"`
	InputCount   int            `json:"input_count"`
	OutputValue  int64          `json:"output_value"`
	OutputScript string         `json:"output_script"`
	ClaimedTotal uint64         `json:"claimed_total"`
	Inputs       []InputSummary `json:"inputs"`
}

type InputSummary struct {
	Index     int    `json:"index"`
	PrevOut   string `json:"prevout"`
	Value     int64  `json:"value"`
	Script    string `json:"script,omitempty"`
	Template  string `json:"template"`
	Committed bool   `json:"value_committed"`
}

func (p *ProofTx) Summary() ProofSummary {
	s := ProofSummary{
		Txid:         p.Tx.TxHash().String(),
		InputCount:   len(p.Inputs),
		OutputValue:  p.Output.Value,
		OutputScript: hexString(p.Output.PkScript),
		ClaimedTotal: p.ClaimedTotal(),
		Inputs:       make([]InputSummary, 0, len(p.Inputs)),
	}
	for i := range p.Inputs {
		in := &p.Inputs[i]
		is := InputSummary{
			Index:     in.Index,
			PrevOut:   in.PrevOut.String(),
			Committed: in.ValueCommitted,
			Template:  "challenge",
		}
		if in.Utxo != nil {
			is.Value = in.Utxo.Value
			is.Script = hexString(in.Utxo.PkScript)
		}
		if i > 0 {
			shape, err := classifySpend(in)
			if err != nil {
				is.Template = TemplateUnknown.String()
			} else {
				is.Template = shape.tpl.String()
			}
		}
		s.Inputs = append(s.Inputs, is)
	}
	return s
}
