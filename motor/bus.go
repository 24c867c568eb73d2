package motor

import (
	"github.com/pkg/errors"

	"pico-gimbal/gimbal"
)

var ErrShortFrame = errors.New("motor: short feedback frame")

// maxDrain bounds how many queued frames one Sample consumes.
const maxDrain = 16

// Port is a CAN controller that can be polled without blocking.
type Port interface {
	// Receive returns the next queued frame, or ok=false when none is queued.
	Receive() (f Frame, ok bool, err error)
	Transmit(f Frame) error
}

// Bus drives the pitch and yaw GM6020 sharing one CAN port.
type Bus struct {
	port     Port
	motors   [2]Motor
	measures [2]Measure
	cmd      Frame

	malformed uint32
}

func NewBus(port Port, pitch, yaw Motor) *Bus {
	b := &Bus{port: port}
	b.motors[gimbal.AxisPitch] = pitch
	b.motors[gimbal.AxisYaw] = yaw
	b.cmd.ID = CommandID
	b.cmd.Len = 8
	return b
}

// Sample drains queued feedback frames. Malformed frames are counted and
// skipped.
func (b *Bus) Sample() error {
	for i := 0; i < maxDrain; i++ {
		f, ok, err := b.port.Receive()
		if err != nil {
			return errors.Wrap(err, "receive feedback")
		}
		if !ok {
			return nil
		}
		for a, m := range b.motors {
			if f.ID != m.FeedbackID() {
				continue
			}
			if err := b.measures[a].UnmarshalBinary(f.Data[:f.Len]); err != nil {
				b.malformed++
			}
		}
	}
	return nil
}

// Output sends both axis commands in one 0x1FF frame.
func (b *Bus) Output(c gimbal.Command) error {
	b.motors[gimbal.AxisPitch].PutVoltage(&b.cmd, c.Pitch)
	b.motors[gimbal.AxisYaw].PutVoltage(&b.cmd, c.Yaw)
	return errors.Wrap(b.port.Transmit(b.cmd), "transmit command")
}

func (b *Bus) Stop() error {
	return b.Output(gimbal.Command{})
}

func (b *Bus) MotorPosition(a gimbal.Axis) float64 {
	return b.motors[a].Position(b.measures[a])
}

func (b *Bus) MotorVelocity(a gimbal.Axis) float64 {
	return b.motors[a].Velocity(b.measures[a])
}

func (b *Bus) Measure(a gimbal.Axis) Measure {
	return b.measures[a]
}

// Malformed counts feedback frames dropped for a bad length.
func (b *Bus) Malformed() uint32 { return b.malformed }

// Online reports whether the motor has sent any feedback yet.
func (b *Bus) Online(a gimbal.Axis) bool {
	return b.measures[a].valid
}
