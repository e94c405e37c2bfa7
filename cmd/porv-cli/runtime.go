package main

import (
	"encoding/json"
	"fmt"
	"io"

	"reserves.dev/verifier/reserves"
)

// runWithIO answers one request. The exit code is 0 whenever a response
// was written, including rejections.
func runWithIO(r io.Reader, w io.Writer) int {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		writeResp(w, Response{Ok: false, Err: fmt.Sprintf("bad request: %v", err)})
		return 0
	}
	writeResp(w, handle(req))
	return 0
}

func handle(req Request) Response {
	switch req.Op {
	case "verify_proof":
		return verifyProof(req)
	case "challenge":
		op := reserves.ExpectedChallenge(req.Message)
		vout := op.Index
		return Response{Ok: true, Txid: op.Hash.String(), Vout: &vout}
	case "decode_proof":
		p, resp := loadProof(req)
		if p == nil {
			return resp
		}
		s := p.Summary()
		return Response{Ok: true, Proof: &s}
	default:
		return Response{Ok: false, Err: "unknown op"}
	}
}

// loadProof returns the decoded proof, or nil and the error response.
func loadProof(req Request) (*reserves.ProofTx, Response) {
	if req.ProofFile == "" {
		p, err := reserves.DecodeProof(req.ProofPSBT)
		if err != nil {
			return nil, errResp(err)
		}
		return p, Response{}
	}
	if req.ProofPSBT != "" {
		return nil, Response{Ok: false, Err: "bad request", Detail: "proof_psbt and proof_file are exclusive"}
	}
	p, err := loadProofFile(req.ProofFile)
	if err != nil {
		if reserves.CodeOf(err) != "" {
			return nil, errResp(err)
		}
		return nil, Response{Ok: false, Err: "bad proof_file", Detail: err.Error()}
	}
	return p, Response{}
}

func verifyProof(req Request) Response {
	net, err := reserves.ParseNetwork(req.Network)
	if err != nil {
		return Response{Ok: false, Err: "bad network", Detail: err.Error()}
	}
	proof, resp := loadProof(req)
	if proof == nil {
		return resp
	}
	claimed, params, err := reserves.ParseAddresses(req.Addresses, net)
	if err != nil {
		return errResp(err)
	}
	v := reserves.NewVerifier(reserves.Config{Network: net, RequireBurnOutput: req.StrictOutput})
	res, err := v.ValidateProof(req.Message, claimed, proof)
	if err != nil {
		return errResp(err)
	}

	inputs := make([]InputJSON, 0, len(res.Inputs))
	for _, in := range res.Inputs {
		inputs = append(inputs, InputJSON{
			Index:    in.Index,
			PrevOut:  in.PrevOut.String(),
			Address:  in.Address,
			Template: in.Template.String(),
			Value:    in.Value,
		})
	}
	spendable := res.Spendable
	return Response{Ok: true, Spendable: &spendable, Network: params.Name, Inputs: inputs}
}

func errResp(err error) Response {
	if code := reserves.CodeOf(err); code != "" {
		return Response{Ok: false, Err: string(code), Detail: err.Error()}
	}
	return Response{Ok: false, Err: err.Error()}
}
