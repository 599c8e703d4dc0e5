package bitcoin

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

// scriptDecoder extracts addresses from ScriptPubKey results using the
// address encoding of one network.
type scriptDecoder struct {
	params *chaincfg.Params
}

// NewScriptDecoder initializes a decoder for the provided network.
func NewScriptDecoder(network model.Network) (ScriptDecoder, error) {
	params, err := chainParamsForNetwork(network)
	if err != nil {
		return nil, err
	}
	return &scriptDecoder{params: params}, nil
}

// DecodeAddress returns the output's address when its script pays exactly one
// address, and "" for bare multisig, OP_RETURN and non-standard scripts.
func (d *scriptDecoder) DecodeAddress(vout btcjson.Vout) (string, error) {
	addresses, err := d.decodeAddresses(vout)
	if err != nil {
		return "", err
	}
	if len(addresses) != 1 {
		return "", nil
	}
	return addresses[0], nil
}

func (d *scriptDecoder) decodeAddresses(vout btcjson.Vout) ([]string, error) {
	// Nodes report either the legacy list or the single address field; the
	// raw script is only decoded when neither is present.
	if len(vout.ScriptPubKey.Addresses) > 0 {
		return append([]string(nil), vout.ScriptPubKey.Addresses...), nil
	}
	if vout.ScriptPubKey.Address != "" {
		return []string{vout.ScriptPubKey.Address}, nil
	}
	if vout.ScriptPubKey.Hex == "" {
		return nil, nil
	}

	script, err := hex.DecodeString(vout.ScriptPubKey.Hex)
	if err != nil {
		return nil, fmt.Errorf("decode script hex: %w", err)
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, d.params)
	if err != nil {
		return nil, fmt.Errorf("extract script addresses: %w", err)
	}

	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		result = append(result, addr.EncodeAddress())
	}
	return result, nil
}

func chainParamsForNetwork(network model.Network) (*chaincfg.Params, error) {
	switch strings.ToLower(string(network)) {
	case "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}
