// Package provider fetches price history and quotes from market data APIs.
package provider

import (
	"context"
	"fmt"

	"github.com/rustyeddy/tradegate/market"
)

// PriceSource supplies an ordered (oldest first) price window and the
// latest quote for an asset.
type PriceSource interface {
	History(ctx context.Context, asset market.Asset, limit int) ([]market.PriceSample, error)
	Quote(ctx context.Context, asset market.Asset) (market.Quote, error)
}

// Router sends crypto assets to one source and everything else to another.
type Router struct {
	Crypto PriceSource
	Other  PriceSource
}

func (r *Router) pick(asset market.Asset) (PriceSource, error) {
	src := r.Other
	if asset.Type == market.Crypto {
		src = r.Crypto
	}
	if src == nil {
		return nil, fmt.Errorf("no price source for %s (%s)", asset.Symbol, asset.Type)
	}
	return src, nil
}

func (r *Router) History(ctx context.Context, asset market.Asset, limit int) ([]market.PriceSample, error) {
	src, err := r.pick(asset)
	if err != nil {
		return nil, err
	}
	return src.History(ctx, asset, limit)
}

func (r *Router) Quote(ctx context.Context, asset market.Asset) (market.Quote, error) {
	src, err := r.pick(asset)
	if err != nil {
		return market.Quote{}, err
	}
	return src.Quote(ctx, asset)
}
