package model

import "github.com/shopspring/decimal"

// PaiseToFloat converts an integer paise amount to a rupee float.
// The division is done in decimal so values like 10.1 round-trip exactly.
func PaiseToFloat(paise int64) float64 {
	return decimal.New(paise, -2).InexactFloat64()
}

// FormatPaise renders a paise amount as rupees with two decimals.
func FormatPaise(paise int64) string {
	return decimal.New(paise, -2).StringFixed(2)
}

// Itoa is a minimal int-to-string converter for hot-path usage.
// Avoids importing strconv to eliminate unnecessary overhead.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
