package gimbal

import (
	"math"

	"pico-gimbal/utils"
)

// DefaultMaxPitch is the hard pitch ceiling in the inertial frame.
const DefaultMaxPitch = math.Pi / 2 * 0.9

// Limits is the static pitch range in the motor frame.
type Limits struct {
	Upper  float64
	Lower  float64
	Middle float64
}

// NewLimits builds limits from encoder readings in (-pi, pi], unwrapping the
// bounds by a full turn when the range straddles the encoder seam.
func NewLimits(upper, middle, lower float64) Limits {
	l := Limits{Upper: upper, Lower: lower, Middle: middle}
	if l.Upper <= l.Middle {
		l.Upper += 2 * math.Pi
	}
	if l.Lower >= l.Middle {
		l.Lower -= 2 * math.Pi
	}
	return l
}

// Envelope is the pitch range translated into the inertial frame for one cycle.
type Envelope struct {
	Lower float64
	Upper float64
}

// Envelope shifts the motor-frame bounds by the live offset between the motor
// and inertial readings, then applies the maxPitch ceiling.
func (l Limits) Envelope(motorPos, imuPos, maxPitch float64) Envelope {
	upperDelta := l.Upper - motorPos
	lowerDelta := l.Lower - motorPos
	return Envelope{
		Upper: min(upperDelta+imuPos, maxPitch),
		Lower: max(lowerDelta+imuPos, -maxPitch),
	}
}

func (e Envelope) Clamp(x float64) float64 {
	return utils.Clamp(x, e.Lower, e.Upper)
}
