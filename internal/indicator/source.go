package indicator

import (
	"fmt"

	"advchart/internal/model"
)

// Source names the candle field an indicator reads.
type Source string

const (
	SourceOpen   Source = "open"
	SourceHigh   Source = "high"
	SourceLow    Source = "low"
	SourceClose  Source = "close"
	SourceVolume Source = "volume"
	SourceHL2    Source = "hl2"
	SourceHLC3   Source = "hlc3"
	SourceOHLC4  Source = "ohlc4"
)

var allSources = []Source{SourceClose, SourceOpen, SourceHigh, SourceLow, SourceHL2, SourceHLC3, SourceOHLC4, SourceVolume}

func (s Source) value(c *model.Candle) float64 {
	switch s {
	case SourceOpen:
		return c.Open
	case SourceHigh:
		return c.High
	case SourceLow:
		return c.Low
	case SourceVolume:
		return c.Volume
	case SourceHL2:
		return (c.High + c.Low) / 2
	case SourceHLC3:
		return (c.High + c.Low + c.Close) / 3
	case SourceOHLC4:
		return (c.Open + c.High + c.Low + c.Close) / 4
	default:
		return c.Close
	}
}

// parseSource accepts any known source name; empty means close.
func parseSource(v string) (Source, error) {
	if v == "" {
		return SourceClose, nil
	}
	for _, s := range allSources {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", v)
}

// prices extracts the chosen field from every candle.
func prices(candles []model.Candle, src Source) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = src.value(&candles[i])
	}
	return out
}

func sourceOptions() []string {
	out := make([]string, len(allSources))
	for i, s := range allSources {
		out[i] = string(s)
	}
	return out
}
