package gate

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidSettings = errors.New("invalid trading settings")

// Settings is the operator configuration read by every evaluation.
type Settings struct {
	Mode                Mode          `json:"mode" yaml:"mode" default:"MANUAL"`
	MaxRiskPerTrade     float64       `json:"max_risk_per_trade" yaml:"max_risk_per_trade" default:"0.02"`
	ConfidenceThreshold float64       `json:"confidence_threshold" yaml:"confidence_threshold" default:"70"`
	CooldownPeriod      time.Duration `json:"cooldown_period" yaml:"cooldown_period" default:"5m"`
	DeclineThreshold    float64       `json:"decline_threshold" yaml:"decline_threshold" default:"-0.05"`
	PauseOnDecline      bool          `json:"pause_on_decline" yaml:"pause_on_decline" default:"true"`
	EnableStopLoss      bool          `json:"enable_stop_loss" yaml:"enable_stop_loss" default:"true"`
	EnableTakeProfit    bool          `json:"enable_take_profit" yaml:"enable_take_profit" default:"true"`
	ManualFraction      float64       `json:"manual_fraction" yaml:"manual_fraction" default:"0.01"`
}

func DefaultSettings() Settings {
	return Settings{
		Mode:                Manual,
		MaxRiskPerTrade:     0.02,
		ConfidenceThreshold: 70,
		CooldownPeriod:      5 * time.Minute,
		DeclineThreshold:    -0.05,
		PauseOnDecline:      true,
		EnableStopLoss:      true,
		EnableTakeProfit:    true,
		ManualFraction:      0.01,
	}
}

func (s Settings) Validate() error {
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, s.Mode)
	}
	for name, v := range map[string]float64{
		"max_risk_per_trade":   s.MaxRiskPerTrade,
		"confidence_threshold": s.ConfidenceThreshold,
		"decline_threshold":    s.DeclineThreshold,
		"manual_fraction":      s.ManualFraction,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidSettings, name)
		}
	}
	if s.MaxRiskPerTrade <= 0 || s.MaxRiskPerTrade > 1 {
		return fmt.Errorf("%w: max_risk_per_trade must be in (0, 1]", ErrInvalidSettings)
	}
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 100 {
		return fmt.Errorf("%w: confidence_threshold must be in [0, 100]", ErrInvalidSettings)
	}
	if s.CooldownPeriod < 0 {
		return fmt.Errorf("%w: cooldown_period must not be negative", ErrInvalidSettings)
	}
	if s.DeclineThreshold >= 0 {
		return fmt.Errorf("%w: decline_threshold must be negative", ErrInvalidSettings)
	}
	if s.ManualFraction < 0 || s.ManualFraction > 1 {
		return fmt.Errorf("%w: manual_fraction must be in [0, 1]", ErrInvalidSettings)
	}
	return nil
}

// Patch is a partial settings update; nil fields are left unchanged.
type Patch struct {
	Mode                *Mode          `json:"mode,omitempty"`
	MaxRiskPerTrade     *float64       `json:"max_risk_per_trade,omitempty"`
	ConfidenceThreshold *float64       `json:"confidence_threshold,omitempty"`
	CooldownPeriod      *time.Duration `json:"cooldown_period,omitempty"`
	DeclineThreshold    *float64       `json:"decline_threshold,omitempty"`
	PauseOnDecline      *bool          `json:"pause_on_decline,omitempty"`
	EnableStopLoss      *bool          `json:"enable_stop_loss,omitempty"`
	EnableTakeProfit    *bool          `json:"enable_take_profit,omitempty"`
	ManualFraction      *float64       `json:"manual_fraction,omitempty"`
}

func (p Patch) apply(s Settings) Settings {
	if p.Mode != nil {
		s.Mode = *p.Mode
	}
	if p.MaxRiskPerTrade != nil {
		s.MaxRiskPerTrade = *p.MaxRiskPerTrade
	}
	if p.ConfidenceThreshold != nil {
		s.ConfidenceThreshold = *p.ConfidenceThreshold
	}
	if p.CooldownPeriod != nil {
		s.CooldownPeriod = *p.CooldownPeriod
	}
	if p.DeclineThreshold != nil {
		s.DeclineThreshold = *p.DeclineThreshold
	}
	if p.PauseOnDecline != nil {
		s.PauseOnDecline = *p.PauseOnDecline
	}
	if p.EnableStopLoss != nil {
		s.EnableStopLoss = *p.EnableStopLoss
	}
	if p.EnableTakeProfit != nil {
		s.EnableTakeProfit = *p.EnableTakeProfit
	}
	if p.ManualFraction != nil {
		s.ManualFraction = *p.ManualFraction
	}
	return s
}

// SettingsStore publishes immutable Settings values. Readers take a
// snapshot per evaluation; Update swaps the whole value so a change is seen
// in full by every later read.
type SettingsStore struct {
	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[Settings]
}

func NewSettingsStore(s Settings) (*SettingsStore, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	st := &SettingsStore{}
	st.cur.Store(&s)
	return st, nil
}

func (st *SettingsStore) Get() Settings {
	return *st.cur.Load()
}

// Update applies p and returns the new settings. An invalid result is
// rejected and the current settings are kept.
func (st *SettingsStore) Update(p Patch) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := p.apply(st.Get())
	if err := next.Validate(); err != nil {
		return st.Get(), err
	}
	st.cur.Store(&next)
	return next, nil
}
