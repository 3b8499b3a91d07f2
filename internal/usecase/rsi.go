package usecase

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_scanner/internal/domain"
)

// averages holds the running Wilder averages of gains and losses.
type averages struct {
	up   float64
	down float64
}

func (a *averages) smooth(gain, loss float64, period int) {
	p := float64(period)
	a.up = (a.up*(p-1) + gain) / p
	a.down = (a.down*(p-1) + loss) / p
}

func (a averages) rsi() float64 {
	switch {
	case a.down == 0 && a.up == 0:
		return 50
	case a.down == 0:
		return 100
	}
	return 100 - 100/(1+a.up/a.down)
}

func gainLoss(delta float64) (float64, float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

// CalculateRSI returns Wilder's RSI for closes, rounded to two places.
// Indexes before period are NaN; nothing is computed when period is not
// in [1, len(closes)).
func CalculateRSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || period >= len(closes) {
		return out
	}

	var avg averages
	for i := 1; i <= period; i++ {
		g, l := gainLoss(closes[i] - closes[i-1])
		avg.up += g
		avg.down += l
	}
	avg.up /= float64(period)
	avg.down /= float64(period)
	out[period] = round2(avg.rsi())

	for i := period + 1; i < len(closes); i++ {
		g, l := gainLoss(closes[i] - closes[i-1])
		avg.smooth(g, l, period)
		out[i] = round2(avg.rsi())
	}
	return out
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// SetRsiForTickers returns a copy of candles with RSI set from index
// period onward. The input is left untouched.
func SetRsiForTickers(candles []domain.Candle, period int) []domain.Candle {
	out := make([]domain.Candle, len(candles))
	copy(out, candles)

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	for i, v := range CalculateRSI(closes, period) {
		out[i].RSI = nil
		if !math.IsNaN(v) {
			out[i].RSI = &v
		}
	}
	return out
}
