package market

import (
	"fmt"
	"strings"
)

// Action is a recommended direction.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

func (a Action) String() string { return string(a) }

// ParseAction accepts BUY, SELL or HOLD in any case.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	case Hold:
		return Hold, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}
