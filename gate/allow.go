package gate

import (
	"fmt"

	"github.com/rustyeddy/tradegate/regime"
	"github.com/rustyeddy/tradegate/risk"
)

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Verdict says whether any trade, manual or automatic, is permitted.
type Verdict struct {
	Allowed    bool        `json:"allowed"`
	Overridden bool        `json:"overridden,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
}

func (v *Verdict) add(code, msg string) {
	v.Violations = append(v.Violations, Violation{Code: code, Msg: msg})
	v.Allowed = false
}

// Reason is the first violation message, or "allowed".
func (v Verdict) Reason() string {
	if len(v.Violations) == 0 {
		return "allowed"
	}
	return v.Violations[0].Msg
}

// AllowAny checks the portfolio and regime halts. override skips every
// check.
func AllowAny(snap regime.Snapshot, rs risk.Snapshot, s Settings, override bool) Verdict {
	v := Verdict{Allowed: true}
	if override {
		v.Overridden = true
		return v
	}

	// a NaN drawdown or threshold blocks
	if !(rs.PortfolioDrawdown <= rs.MaxDrawdownThreshold) {
		v.add("DRAWDOWN_LIMIT",
			fmt.Sprintf("drawdown %.4f%% exceeds threshold %.5f", rs.PortfolioDrawdown, rs.MaxDrawdownThreshold))
	} else if rs.PauseTrading {
		v.add("RISK_PAUSE", "trading paused by risk controls")
	}

	if snap.Regime.Halts() {
		v.add("REGIME_HALT", fmt.Sprintf("regime %s disallows trading", snap.Regime))
	}

	if s.PauseOnDecline && rs.NAVReturn() <= s.DeclineThreshold {
		v.add("DECLINE_LIMIT",
			fmt.Sprintf("portfolio return %.2f%% at or below decline threshold %.2f%%",
				100*rs.NAVReturn(), 100*s.DeclineThreshold))
	}

	return v
}
