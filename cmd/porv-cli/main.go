package main

import (
	"encoding/json"
	"io"
	"os"

	"reserves.dev/verifier/reserves"
)

type Request struct {
	Op        string   `json:"op"`
	Message   string   `json:"message,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
	ProofPSBT string   `json:"proof_psbt,omitempty"`
	ProofFile string   `json:"proof_file,omitempty"`
	Network   string   `json:"network,omitempty"`
	// StrictOutput requires the output to pay the bdk-reserves burn script.
	StrictOutput bool `json:"strict_output,omitempty"`
}

type InputJSON struct {
	Index    int    `json:"index"`
	PrevOut  string `json:"prevout"`
	Address  string `json:"address"`
	Template string `json:"template"`
	Value    int64  `json:"value"`
}

type Response struct {
	Ok        bool                   `json:"ok"`
	Err       string                 `json:"err,omitempty"`
	Detail    string                 `json:"detail,omitempty"`
	Spendable *uint64                `json:"spendable,omitempty"`
	Network   string                 `json:"network,omitempty"`
	Inputs    []InputJSON            `json:"inputs,omitempty"`
	Txid      string                 `json:"challenge_txid,omitempty"`
	Vout      *uint32                `json:"challenge_vout,omitempty"`
	Proof     *reserves.ProofSummary `json:"proof,omitempty"`
}

func writeResp(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

func main() {
	os.Exit(runWithIO(os.Stdin, os.Stdout))
}
