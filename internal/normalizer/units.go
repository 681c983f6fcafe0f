package normalizer

import "math"

// Metric horsepower per kilowatt. One HP is 0.7355 kW.
const kwPerHP = 0.7355

func hpToKW(hp int) int {
	return int(math.Round(float64(hp) * kwPerHP))
}

func kwToHP(kw int) int {
	return int(math.Round(float64(kw) / kwPerHP))
}

// DefaultEURRates converts listing currencies to EUR. The table is
// deliberately static; callers wanting live rates inject their own.
var DefaultEURRates = map[string]float64{
	"EUR": 1.0,
	"CHF": 1.05,
	"GBP": 1.17,
	"PLN": 0.23,
	"CZK": 0.040,
	"DKK": 0.134,
	"SEK": 0.087,
}
