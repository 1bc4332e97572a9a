package scenario

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	cerrors "github.com/flashbots/contender/internal/errors"
)

var weiPerUnit = map[string]*big.Int{
	"wei":   big.NewInt(1),
	"gwei":  new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil),
	"ether": new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
	"eth":   new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
}

// ParseValue accepts a bare integer (wei) or a unit-suffixed amount such as
// "1 ether" / "0.5 gwei" (spec.md §6) and returns the wei amount.
func ParseValue(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return big.NewInt(0), nil
	}

	fields := strings.Fields(s)
	if len(fields) == 1 {
		n, ok := new(big.Int).SetString(fields[0], 0)
		if !ok {
			return nil, cerrors.AbiMismatch(fmt.Sprintf("invalid value %q", s), nil)
		}
		return n, nil
	}
	if len(fields) != 2 {
		return nil, cerrors.AbiMismatch(fmt.Sprintf("invalid value %q", s), nil)
	}

	unit, ok := weiPerUnit[strings.ToLower(fields[1])]
	if !ok {
		return nil, cerrors.AbiMismatch(fmt.Sprintf("unknown value unit %q", fields[1]), nil)
	}

	amount, _, err := big.ParseFloat(fields[0], 10, 256, big.ToNearestEven)
	if err != nil {
		return nil, cerrors.AbiMismatch(fmt.Sprintf("invalid value amount %q", fields[0]), err)
	}
	unitF := new(big.Float).SetInt(unit)
	result := new(big.Float).Mul(amount, unitF)
	wei, _ := result.Int(nil)
	return wei, nil
}

// formatWeiForLog renders a *big.Int compactly, used only in debug logs.
func formatWeiForLog(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return strconv.FormatInt(n.Int64(), 10)
}
