package reserves

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ClaimedAddress is a caller-supplied address with its canonical locking
// script.
type ClaimedAddress struct {
	Raw     string
	Address btcutil.Address
	Script  []byte
}

// ParseAddresses decodes every claimed address for net. With NetworkAuto the
// network is taken from the first address and the rest must agree.
func ParseAddresses(raw []string, net Network) ([]ClaimedAddress, *chaincfg.Params, error) {
	if len(raw) == 0 {
		return nil, nil, prooferr(PROOF_ERR_NO_ADDRESSES, "")
	}
	params, err := net.Params()
	if err != nil {
		return nil, nil, prooferr(PROOF_ERR_INVALID_ADDRESS, err.Error())
	}
	if params == nil {
		params, err = inferParams(strings.TrimSpace(raw[0]))
		if err != nil {
			return nil, nil, prooferr(PROOF_ERR_INVALID_ADDRESS, err.Error())
		}
	}

	out := make([]ClaimedAddress, 0, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		addr, err := btcutil.DecodeAddress(s, params)
		if err != nil {
			return nil, nil, prooferr(PROOF_ERR_INVALID_ADDRESS, fmt.Sprintf("address %d %q: %v", i, s, err))
		}
		if !addr.IsForNet(params) {
			return nil, nil, prooferr(PROOF_ERR_INVALID_ADDRESS, fmt.Sprintf("address %d %q is not a %s address", i, s, params.Name))
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, nil, prooferr(PROOF_ERR_INVALID_ADDRESS, fmt.Sprintf("address %d %q: %v", i, s, err))
		}
		out = append(out, ClaimedAddress{Raw: s, Address: addr, Script: script})
	}
	return out, params, nil
}

// MatchAddress finds the claimed address whose locking script is exactly
// script. Comparison is on scripts, never on address strings.
func MatchAddress(script []byte, claimed []ClaimedAddress) (*ClaimedAddress, error) {
	for i := range claimed {
		if bytes.Equal(claimed[i].Script, script) {
			return &claimed[i], nil
		}
	}
	return nil, prooferr(PROOF_ERR_UNCLAIMED_ADDRESS, fmt.Sprintf("script %x matches no claimed address", script))
}
