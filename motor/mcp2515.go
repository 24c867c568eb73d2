//go:build tinygo

package motor

import (
	"runtime"

	"tinygo.org/x/drivers/mcp2515"

	"pico-gimbal/gimbal"
)

// CANPort adapts an MCP2515 to Port.
type CANPort struct {
	dev *mcp2515.Device
}

func NewCANPort(dev *mcp2515.Device) *CANPort {
	return &CANPort{dev: dev}
}

func (p *CANPort) Receive() (Frame, bool, error) {
	if !p.dev.Received() {
		return Frame{}, false, nil
	}
	msg, err := p.dev.Rx()
	if err != nil {
		return Frame{}, false, err
	}
	f := Frame{ID: msg.ID, Len: msg.Dlc}
	f.Len = uint8(copy(f.Data[:], msg.Data[:min(int(msg.Dlc), len(msg.Data))]))
	return f, true, nil
}

func (p *CANPort) Transmit(f Frame) error {
	return p.dev.Tx(f.ID, f.Len, f.Data[:f.Len])
}

// WaitFeedback blocks until both motors have reported once.
func WaitFeedback(b *Bus) error {
	for !b.Online(gimbal.AxisPitch) || !b.Online(gimbal.AxisYaw) {
		if err := b.Sample(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}
