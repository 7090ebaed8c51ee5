// market/asset.go
package market

import (
	"fmt"
	"sort"
	"strings"
)

type AssetType string

const (
	Crypto AssetType = "crypto"
	Forex  AssetType = "forex"
	Stock  AssetType = "stock"
)

type Asset struct {
	Symbol string    `json:"symbol" yaml:"symbol"`
	Name   string    `json:"name" yaml:"name"`
	Type   AssetType `json:"type" yaml:"type"`
}

// Assets is the catalog of tradable symbols.
var Assets = map[string]Asset{
	"BTCUSDT": {Symbol: "BTCUSDT", Name: "Bitcoin", Type: Crypto},
	"ETHUSDT": {Symbol: "ETHUSDT", Name: "Ethereum", Type: Crypto},
	"EURUSD":  {Symbol: "EURUSD", Name: "EUR/USD", Type: Forex},
	"AAPL":    {Symbol: "AAPL", Name: "Apple Inc.", Type: Stock},
}

// LookupAsset finds a catalog entry, case-insensitively.
func LookupAsset(symbol string) (Asset, error) {
	a, ok := Assets[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Asset{}, fmt.Errorf("unknown asset: %s", symbol)
	}
	return a, nil
}

// AssetList returns the catalog sorted by symbol.
func AssetList() []Asset {
	out := make([]Asset, 0, len(Assets))
	for _, a := range Assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
