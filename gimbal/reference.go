package gimbal

import (
	"math"
	"time"

	"pico-gimbal/sbus"
)

// ReferenceSource yields the raw desired pitch and yaw in radians.
type ReferenceSource interface {
	Reference(now time.Time) (pitch, yaw float64)
}

// Link is the read side of the radio receiver.
type Link interface {
	IsOffline() bool
	Channel(i int) uint16
	ReceiverType() sbus.ReceiverType
}

// LiveSource reads the sticks through the receiver's calibration.
type LiveSource struct {
	Link Link
}

func (s LiveSource) Reference(time.Time) (float64, float64) {
	p := sbus.ProfileFor(s.Link.ReceiverType())
	return p.Normalize(s.Link.Channel(p.PitchChannel)), p.Normalize(s.Link.Channel(p.YawChannel))
}

// SineSource drives both axes with the same sine wave, for tuning.
type SineSource struct {
	Amplitude float64
	Offset    float64
	Period    time.Duration
	Start     time.Time
}

func (s SineSource) Reference(now time.Time) (float64, float64) {
	if s.Period <= 0 {
		return s.Offset, s.Offset
	}
	phase := 2 * math.Pi * float64(now.Sub(s.Start)) / float64(s.Period)
	v := s.Amplitude*math.Sin(phase) + s.Offset
	return v, v
}
