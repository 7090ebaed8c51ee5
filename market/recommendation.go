package market

import "time"

// Recommendation is an advisor's opinion on one asset.
type Recommendation struct {
	Asset      string    `json:"asset"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"` // 0-100
	Reasoning  string    `json:"reasoning"`
	Model      string    `json:"model,omitempty"`
	Time       time.Time `json:"time"`
}
