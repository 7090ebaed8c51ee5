package gate

import (
	"fmt"
	"strings"
)

// Mode is the operator-selected trading mode.
type Mode string

const (
	Manual    Mode = "MANUAL"
	Assisted  Mode = "ASSISTED"
	Autopilot Mode = "AUTOPILOT"
	Hybrid    Mode = "HYBRID"
	Paper     Mode = "PAPER"
)

var modeDescriptions = map[Mode]string{
	Manual:    "Manual - You control all trades",
	Assisted:  "Assisted - AI suggests, you confirm",
	Autopilot: "Autopilot - AI executes automatically",
	Hybrid:    "Hybrid - Auto with risk controls",
	Paper:     "Paper - Simulate trades only",
}

func (m Mode) Valid() bool {
	_, ok := modeDescriptions[m]
	return ok
}

func (m Mode) Description() string {
	if d, ok := modeDescriptions[m]; ok {
		return d
	}
	return string(m)
}

// Automatic reports whether the mode fires trades without confirmation.
func (m Mode) Automatic() bool {
	return m == Autopilot || m == Hybrid || m == Paper
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown trading mode %q", s)
	}
	return m, nil
}

// Modes lists every mode in display order.
func Modes() []Mode {
	return []Mode{Manual, Assisted, Autopilot, Hybrid, Paper}
}
