package reserves

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Network selects the chain claimed addresses are decoded for.
type Network string

const (
	NetworkAuto    Network = "auto"
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkSignet  Network = "signet"
	NetworkRegtest Network = "regtest"
)

// autoCandidates is the order networks are tried in when the network is
// inferred from the first claimed address.
var autoCandidates = []*chaincfg.Params{
	&chaincfg.MainNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.RegressionNetParams,
}

func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(s))); n {
	case "":
		return NetworkAuto, nil
	case NetworkAuto, NetworkMainnet, NetworkTestnet, NetworkSignet, NetworkRegtest:
		return n, nil
	case "testnet3":
		return NetworkTestnet, nil
	case "bitcoin", "main":
		return NetworkMainnet, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

// Params returns the chain parameters, or nil for NetworkAuto.
func (n Network) Params() (*chaincfg.Params, error) {
	switch n {
	case NetworkAuto, "":
		return nil, nil
	case NetworkMainnet:
		return &chaincfg.MainNetParams, nil
	case NetworkTestnet:
		return &chaincfg.TestNet3Params, nil
	case NetworkSignet:
		return &chaincfg.SigNetParams, nil
	case NetworkRegtest:
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", string(n))
	}
}

func inferParams(addr string) (*chaincfg.Params, error) {
	for _, params := range autoCandidates {
		a, err := btcutil.DecodeAddress(addr, params)
		if err == nil && a.IsForNet(params) {
			return params, nil
		}
	}
	return nil, fmt.Errorf("cannot infer network from %q", addr)
}
