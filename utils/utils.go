package utils

import (
	"math"

	"golang.org/x/exp/constraints"
)

func Map[T constraints.Float](in_min, in_max, out_min, out_max T) func(x T) T {
	return func(x T) T {
		return (x-in_min)*(out_max-out_min)/(in_max-in_min) + out_min
	}
}

func Limit[T constraints.Ordered](min, max T) func(x T) T {
	return func(x T) T {
		switch {
		case x > max:
			return max
		case x < min:
			return min
		}
		return x
	}
}

// Clamp bounds x between a and b whichever order they are given in.
func Clamp[T constraints.Ordered](x, a, b T) T {
	return Limit(min(a, b), max(a, b))(x)
}

// ThetaFormat wraps an angle in radians into (-pi, pi].
func ThetaFormat(x float64) float64 {
	x = math.Mod(x+math.Pi, 2*math.Pi)
	if x <= 0 {
		x += 2 * math.Pi
	}
	return x - math.Pi
}

// UintToFloat spreads a bits-wide unsigned reading over [min, max].
func UintToFloat(x uint16, min, max float64, bits uint) float64 {
	return float64(x)*(max-min)/float64(uint32(1)<<bits-1) + min
}

func FloatToUint(x, min, max float64, bits uint) uint16 {
	top := float64(uint32(1)<<bits - 1)
	v := math.Round((x - min) * top / (max - min))
	return uint16(Limit(0, top)(v))
}
