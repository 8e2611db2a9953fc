// Package sim produces synthetic TF candles for local development: a seeded
// random-walk price source, a tick-to-candle bucket builder and a history
// generator that respects exchange sessions.
package sim

import "math/rand"

// DefaultPrices are starting prices in paise for well-known tokens.
var DefaultPrices = map[string]int64{
	"2885":     1850_50,  // RELIANCE
	"1594":     1520_00,  // INFY
	"3045":     812_35,   // SBIN
	"99926000": 25660_00, // NIFTY 50
	"99926009": 56110_00, // NIFTY BANK
}

// fallbackPrice is used for tokens without a default.
const fallbackPrice = 1000_00

// floor keeps the walk above one rupee.
const floor = 100

// StartPrice returns the default starting price for token.
func StartPrice(token string) int64 {
	if p, ok := DefaultPrices[token]; ok {
		return p
	}
	return fallbackPrice
}

// Walker is a bounded random walk over paise prices. Not safe for
// concurrent use.
type Walker struct {
	rng   *rand.Rand
	price int64
	// Step is the maximum relative move per tick (0.001 = 0.1%).
	Step float64
	// MaxQty bounds the traded quantity per tick.
	MaxQty int
}

// NewWalker returns a walker starting at price. Equal seeds replay the
// same path.
func NewWalker(seed int64, price int64) *Walker {
	if price < floor {
		price = floor
	}
	return &Walker{
		rng:    rand.New(rand.NewSource(seed)),
		price:  price,
		Step:   0.001,
		MaxQty: 100,
	}
}

// Price returns the current price.
func (w *Walker) Price() int64 { return w.price }

// Next moves the price by up to Step in either direction and returns the
// new price with a traded quantity in [1, MaxQty].
func (w *Walker) Next() (price, qty int64) {
	pct := (w.rng.Float64()*2 - 1) * w.Step
	w.price += int64(float64(w.price) * pct)
	if w.price < floor {
		w.price = floor
	}
	return w.price, int64(w.rng.Intn(w.MaxQty) + 1)
}
