package ton

import (
	"fmt"
	"math/big"
	"strings"
)

// 1 TON = 1_000_000_000 nanoTON.
const nanoPerTON = 1_000_000_000

// ParseTON converts a decimal TON string (e.g. "5.5") to nanoTON.
func ParseTON(tonStr string) (*big.Int, error) {
	tonStr = strings.TrimSpace(tonStr)
	if tonStr == "" {
		return nil, fmt.Errorf("empty TON amount")
	}

	parts := strings.Split(tonStr, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid TON amount: %s", tonStr)
	}

	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}

	// nanoTON is the smallest unit; finer amounts cannot be settled.
	if len(frac) > 9 {
		return nil, fmt.Errorf("TON amount %s is more precise than 1 nanoTON", tonStr)
	}
	for len(frac) < 9 {
		frac += "0"
	}

	nano, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid TON amount: %s", tonStr)
	}
	return nano, nil
}

// FormatNano renders a nanoTON amount as a decimal TON string with
// trailing zeros trimmed.
func FormatNano(nano *big.Int) string {
	neg := nano.Sign() < 0
	abs := new(big.Int).Abs(nano)

	whole, frac := new(big.Int).DivMod(abs, big.NewInt(nanoPerTON), new(big.Int))
	s := whole.String()
	if frac.Sign() > 0 {
		f := fmt.Sprintf("%09d", frac)
		f = strings.TrimRight(f, "0")
		s += "." + f
	}
	if neg {
		s = "-" + s
	}
	return s
}

// SplitNano divides an amount into a numerator/100 share and the
// remainder, so the two parts always sum back to the whole.
func SplitNano(amount *big.Int, percent int64) (share, rest *big.Int) {
	share = new(big.Int).Mul(amount, big.NewInt(percent))
	share.Div(share, big.NewInt(100))
	rest = new(big.Int).Sub(amount, share)
	return share, rest
}
