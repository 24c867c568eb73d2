package motor

import (
	"encoding/binary"
	"math"

	"pico-gimbal/utils"
)

const (
	CommandID    = 0x1FF // voltage command for motor ids 1..4
	FeedbackBase = 0x204 // feedback id is FeedbackBase + motor id

	EncoderResolution = 8192
	MaxVoltage        = 30000
)

// Frame is one classic CAN data frame.
type Frame struct {
	ID   uint32
	Len  uint8
	Data [8]byte
}

// Measure is the periodic feedback a GM6020 reports.
type Measure struct {
	Angle       uint16 // 0 .. 8191 = 0 .. 360 deg
	Speed       int16  // unit:rpm
	Current     int16
	Temperature uint8
	Turns       int32
	lastAngle   uint16
	valid       bool
}

func (m *Measure) UnmarshalBinary(b []byte) error {
	if len(b) < 7 {
		return ErrShortFrame
	}
	m.Angle = binary.BigEndian.Uint16(b[0:2]) % EncoderResolution
	m.Speed = int16(binary.BigEndian.Uint16(b[2:4]))
	m.Current = int16(binary.BigEndian.Uint16(b[4:6]))
	m.Temperature = b[6]
	if m.valid {
		switch {
		case m.lastAngle < EncoderResolution/4 && m.Angle > EncoderResolution*3/4:
			m.Turns--
		case m.lastAngle > EncoderResolution*3/4 && m.Angle < EncoderResolution/4:
			m.Turns++
		}
	}
	m.lastAngle = m.Angle
	m.valid = true
	return nil
}

func (m *Measure) MarshalBinary() ([]byte, error) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b[0:2], m.Angle)
	binary.BigEndian.PutUint16(b[2:4], uint16(m.Speed))
	binary.BigEndian.PutUint16(b[4:6], uint16(m.Current))
	b[6] = m.Temperature
	return b, nil
}

// Motor binds one GM6020 on the bus to a mounting direction.
type Motor struct {
	ID        uint8   // 1 .. 4
	Direction float64 // +1 or -1
}

func (m Motor) FeedbackID() uint32 {
	return FeedbackBase + uint32(m.ID)
}

var (
	EncoderToRad = utils.Map[float64](0, EncoderResolution, 0, 2*math.Pi)
	RadToEncoder = utils.Map[float64](0, 2*math.Pi, 0, EncoderResolution)
)

// Position maps an encoder reading into (-pi, pi].
func (m Motor) Position(ms Measure) float64 {
	return utils.ThetaFormat(EncoderToRad(float64(ms.Angle)) * m.Direction)
}

// Velocity is the reported speed in rad/s.
func (m Motor) Velocity(ms Measure) float64 {
	return float64(ms.Speed) * 2 * math.Pi / 60 * m.Direction
}

var limitVoltage = utils.Limit[float64](-MaxVoltage, MaxVoltage)

// PutVoltage writes v into the motor's slot of a 0x1FF command.
func (m Motor) PutVoltage(f *Frame, v float64) {
	slot := int(m.ID-1) * 2
	binary.BigEndian.PutUint16(f.Data[slot : slot+2], uint16(int16(math.Round(limitVoltage(v*m.Direction)))))
}

// Voltage reads back the motor's slot of a 0x1FF command.
func (m Motor) Voltage(f Frame) int16 {
	slot := int(m.ID-1) * 2
	return int16(binary.BigEndian.Uint16(f.Data[slot : slot+2]))
}
