package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pico-gimbal/gimbal"
	"pico-gimbal/imu"
	"pico-gimbal/motor"
)

const middle = -2.063708757

var (
	pitchMotor = motor.Motor{ID: 2, Direction: 1}
	yawMotor   = motor.Motor{ID: 1, Direction: -1}
)

func newPlant() *Plant {
	return New(Config{
		PitchMotor:  pitchMotor,
		YawMotor:    yawMotor,
		PitchMiddle: middle,
		PitchStops:  gimbal.NewLimits(-1.609145879, middle, -2.806417942),
	})
}

func TestFeedbackThroughBus(t *testing.T) {
	p := newPlant()
	p.Set(0.1, 0.4)
	bus := motor.NewBus(p, pitchMotor, yawMotor)
	require.NoError(t, bus.Sample())
	res := 2 * math.Pi / motor.EncoderResolution
	assert.InDelta(t, middle+0.1, bus.MotorPosition(gimbal.AxisPitch), res)
	assert.InDelta(t, 0.4, bus.MotorPosition(gimbal.AxisYaw), res)
}

func TestCommandDrivesAxis(t *testing.T) {
	p := newPlant()
	bus := motor.NewBus(p, pitchMotor, yawMotor)
	require.NoError(t, bus.Output(gimbal.Command{Yaw: 10000}))
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Sample())
	}
	_, yaw := p.Attitude()
	assert.Greater(t, yaw, 0.0)
	_, gyro, err := p.Read()
	require.NoError(t, err)
	assert.InDelta(t, 13, gyro[2], 0.5)
	assert.Equal(t, 100*time.Millisecond, p.Elapsed())
}

func TestPitchHardStops(t *testing.T) {
	p := newPlant()
	bus := motor.NewBus(p, pitchMotor, yawMotor)
	require.NoError(t, bus.Output(gimbal.Command{Pitch: 25000}))
	for i := 0; i < 1000; i++ {
		require.NoError(t, p.Sample())
	}
	pitch, _ := p.Attitude()
	assert.InDelta(t, -1.609145879-middle, pitch, 1e-9)
}

func TestGravityMatchesPitch(t *testing.T) {
	p := newPlant()
	p.Set(0.3, 0)
	m := imu.New(p, imu.Vec3{})
	require.NoError(t, m.Sample())
	assert.InDelta(t, 0.3, m.InertialAngle(gimbal.AxisPitch), 1e-9)
}

func TestIgnoresForeignFrames(t *testing.T) {
	p := newPlant()
	require.NoError(t, p.Transmit(motor.Frame{ID: 0x200, Len: 8, Data: [8]byte{0x7f, 0xff}}))
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Sample())
	}
	pitch, yaw := p.Attitude()
	assert.Zero(t, pitch)
	assert.Zero(t, yaw)
}
