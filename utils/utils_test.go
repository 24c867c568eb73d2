package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	fit := Map(-1.0, 1.0, 1000.0, 2000.0)
	assert.InDelta(t, 1500.0, fit(0), 1e-9)
	assert.InDelta(t, 1000.0, fit(-1), 1e-9)
	assert.InDelta(t, 2250.0, fit(1.5), 1e-9)
}

func TestLimit(t *testing.T) {
	limit := Limit(int32(-500), 500)
	assert.Equal(t, int32(500), limit(32767))
	assert.Equal(t, int32(-500), limit(-501))
	assert.Equal(t, int32(42), limit(42))
}

func TestClampOrderIndependent(t *testing.T) {
	xs := []float64{-10, -1.5, -0.2, 0, 0.3, 0.99, 7}
	bounds := [][2]float64{{-1, 1}, {1, -1}, {0.5, 0.5}, {-3, -2}, {2, -0.25}}
	for _, b := range bounds {
		lo, hi := math.Min(b[0], b[1]), math.Max(b[0], b[1])
		for _, x := range xs {
			got := Clamp(x, b[0], b[1])
			require.GreaterOrEqual(t, got, lo)
			require.LessOrEqual(t, got, hi)
			assert.Equal(t, got, Clamp(x, b[1], b[0]), "x=%v bounds=%v", x, b)
			assert.Equal(t, got, Clamp(got, b[0], b[1]), "not idempotent x=%v bounds=%v", x, b)
			if x >= lo && x <= hi {
				assert.Equal(t, x, got)
			}
		}
	}
}

func TestThetaFormat(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{4*math.Pi + 0.25, 0.25},
		{-0.5, -0.5},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, ThetaFormat(c.in), 1e-9, "in=%v", c.in)
	}
	for x := -20.0; x < 20; x += 0.37 {
		v := ThetaFormat(x)
		require.Greater(t, v, -math.Pi)
		require.LessOrEqual(t, v, math.Pi)
	}
}

func TestUintToFloat(t *testing.T) {
	assert.InDelta(t, -math.Pi/2, UintToFloat(0, -math.Pi/2, math.Pi/2, 11), 1e-9)
	assert.InDelta(t, math.Pi/2, UintToFloat(2047, -math.Pi/2, math.Pi/2, 11), 1e-9)
	for _, raw := range []uint16{0, 1, 512, 1023, 1024, 2047} {
		x := UintToFloat(raw, -math.Pi/2, math.Pi/2, 11)
		assert.Equal(t, raw, FloatToUint(x, -math.Pi/2, math.Pi/2, 11))
	}
	assert.Equal(t, uint16(2047), FloatToUint(10, -1, 1, 11))
	assert.Equal(t, uint16(0), FloatToUint(-10, -1, 1, 11))
}
