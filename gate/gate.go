// Package gate decides whether a recommendation may execute under the
// current trading mode, cooldowns and risk state.
package gate

import (
	"context"

	"github.com/rustyeddy/tradegate/cooldown"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/regime"
)

const (
	ReasonCooldown            = "cooldown"
	ReasonCooldownUnavailable = "cooldown status unavailable"
	ReasonManual              = "manual confirmation required"
	ReasonAssisted            = "assisted confirmation required"
	ReasonPaper               = "paper simulation"
	ReasonLowConfidence       = "confidence below threshold"
	ReasonRegime              = "regime disallows trading"
	ReasonHold                = "no-op recommendation"
	ReasonApproved            = "autopilot execution approved"
	ReasonUnknownMode         = "unknown trading mode"
)

// Decision says whether a recommendation fires automatically.
type Decision struct {
	Execute  bool     `json:"execute"`
	Reason   string   `json:"reason"`
	Mode     Mode     `json:"mode"`
	Settings Settings `json:"-"`
}

// Gate bundles the mutable state every evaluation reads: the settings
// store and the cooldown registry.
type Gate struct {
	settings  *SettingsStore
	cooldowns cooldown.Registry
}

func New(settings *SettingsStore, cooldowns cooldown.Registry) *Gate {
	return &Gate{settings: settings, cooldowns: cooldowns}
}

func (g *Gate) Settings() *SettingsStore     { return g.settings }
func (g *Gate) Cooldowns() cooldown.Registry { return g.cooldowns }

// Decide evaluates rec for asset against one settings snapshot. The
// snapshot used is returned in the Decision so execution sizes with the
// same values the decision saw.
func (g *Gate) Decide(ctx context.Context, rec market.Recommendation, snap regime.Snapshot, asset string) Decision {
	s := g.settings.Get()
	d := Decision{Mode: s.Mode, Settings: s}

	st, err := g.cooldowns.Status(ctx, asset)
	if err != nil {
		d.Reason = ReasonCooldownUnavailable
		return d
	}
	if st.InCooldown {
		d.Reason = ReasonCooldown
		return d
	}

	switch s.Mode {
	case Manual:
		d.Reason = ReasonManual
	case Assisted:
		d.Reason = ReasonAssisted
	case Paper:
		d.Execute, d.Reason = true, ReasonPaper
	case Autopilot, Hybrid:
		switch {
		case !(rec.Confidence >= s.ConfidenceThreshold): // NaN never passes
			d.Reason = ReasonLowConfidence
		case !snap.AllowTrading:
			d.Reason = ReasonRegime
		case rec.Action == market.Hold:
			d.Reason = ReasonHold
		default:
			d.Execute, d.Reason = true, ReasonApproved
		}
	default:
		d.Reason = ReasonUnknownMode
	}
	return d
}

// StartCooldown sets the asset's cooldown for the configured period.
func (g *Gate) StartCooldown(ctx context.Context, asset string, s Settings) (cooldown.Status, error) {
	return g.cooldowns.Set(ctx, asset, s.CooldownPeriod)
}
