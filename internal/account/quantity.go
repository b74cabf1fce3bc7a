package account

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// RandomQuantity 在 [min, max] 内均匀取值并保留两位小数。
func RandomQuantity(rng *rand.Rand, min, max float64) float64 {
	if max < min {
		min, max = max, min
	}
	value := min
	if max > min {
		if rng != nil {
			value = min + rng.Float64()*(max-min)
		} else {
			value = min + rand.Float64()*(max-min)
		}
	}
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}
