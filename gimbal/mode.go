package gimbal

import "pico-gimbal/sbus"

type Mode uint8

const (
	ModeOff        Mode = iota // every motor commanded off
	ModeSafe                   // all commands held at zero
	ModeAngle                  // stabilized on inertial feedback
	ModeMotorAngle             // stabilized on the motor encoder
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "OFF"
	case ModeSafe:
		return "SAFE"
	case ModeAngle:
		return "ANGLE"
	case ModeMotorAngle:
		return "MOTOR_ANGLE"
	}
	return "INVALID"
}

// Active reports whether the cascade runs in this mode.
func (m Mode) Active() bool {
	return m == ModeAngle || m == ModeMotorAngle
}

// Switch designates the channel and raw value that select angle control.
type Switch struct {
	Channel    int    `yaml:"channel"`
	AngleValue uint16 `yaml:"angle_value"`
}

var DefaultSwitch = Switch{Channel: 4, AngleValue: 0x0400}

// SelectMode derives the mode from the radio alone. OFF and MOTOR_ANGLE are
// never selected here; they need an external command (Gimbal.Override).
func SelectMode(offline bool, rt sbus.ReceiverType, raw uint16, sw Switch) Mode {
	switch {
	case offline:
		return ModeSafe
	case rt == sbus.ReceiverUnknown:
		return ModeSafe
	case raw == sw.AngleValue:
		return ModeAngle
	}
	return ModeSafe
}
