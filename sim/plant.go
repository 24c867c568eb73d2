// Package sim is a two-axis gimbal on a fixed base, for running the control
// stack without hardware.
package sim

import (
	"math"
	"sync"
	"time"

	"pico-gimbal/gimbal"
	"pico-gimbal/imu"
	"pico-gimbal/motor"
	"pico-gimbal/utils"
)

const (
	gravity  = 9.80665
	substeps = 4
)

// AxisModel is a driven inertia with viscous friction: J*dw/dt = Gain*v - Damping*w.
type AxisModel struct {
	Inertia float64
	Gain    float64
	Damping float64
}

// DefaultAxis roughly matches an unloaded GM6020: about 33 rad/s at 25000.
var DefaultAxis = AxisModel{Inertia: 0.01, Gain: 1.3e-3, Damping: 1}

type Config struct {
	Step       time.Duration // advanced per Sample
	PitchMotor motor.Motor
	YawMotor   motor.Motor
	Pitch      AxisModel
	Yaw        AxisModel

	// Motor-frame encoder angle at zero inertial pitch, and the hard stops.
	PitchMiddle float64
	PitchStops  gimbal.Limits
}

type axis struct {
	model AxisModel
	angle float64 // inertial
	vel   float64
	volt  float64
}

func (a *axis) advance(dt float64) {
	acc := (a.model.Gain*a.volt - a.model.Damping*a.vel) / a.model.Inertia
	a.vel += acc * dt
	a.angle += a.vel * dt
}

// Plant implements motor.Port and imu.Sensor over the same simulated body.
type Plant struct {
	cfg Config

	mu      sync.Mutex
	pitch   axis
	yaw     axis
	pending []motor.Frame
	elapsed time.Duration
}

func New(cfg Config) *Plant {
	if cfg.Step <= 0 {
		cfg.Step = time.Millisecond
	}
	if cfg.Pitch == (AxisModel{}) {
		cfg.Pitch = DefaultAxis
	}
	if cfg.Yaw == (AxisModel{}) {
		cfg.Yaw = DefaultAxis
	}
	p := &Plant{
		cfg:   cfg,
		pitch: axis{model: cfg.Pitch},
		yaw:   axis{model: cfg.Yaw},
	}
	p.queueFeedback()
	return p
}

// Sample advances the body by one step and queues motor feedback.
func (p *Plant) Sample() error {
	p.Advance(p.cfg.Step)
	return nil
}

func (p *Plant) Advance(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dt := d.Seconds() / substeps
	lo := p.cfg.PitchStops.Lower - p.cfg.PitchMiddle
	hi := p.cfg.PitchStops.Upper - p.cfg.PitchMiddle
	for i := 0; i < substeps; i++ {
		p.pitch.advance(dt)
		if hi > lo && (p.pitch.angle < lo || p.pitch.angle > hi) {
			p.pitch.angle = utils.Clamp(p.pitch.angle, lo, hi)
			p.pitch.vel = 0
		}
		p.yaw.advance(dt)
	}
	p.yaw.angle = utils.ThetaFormat(p.yaw.angle)
	p.elapsed += d
	p.queueFeedback()
}

func (p *Plant) motorAngle(a gimbal.Axis) float64 {
	if a == gimbal.AxisYaw {
		return p.yaw.angle
	}
	return p.pitch.angle + p.cfg.PitchMiddle
}

func (p *Plant) queueFeedback() {
	for a, m := range [2]motor.Motor{p.cfg.PitchMotor, p.cfg.YawMotor} {
		ax := gimbal.Axis(a)
		if m.ID == 0 {
			continue
		}
		vel := p.pitch.vel
		if ax == gimbal.AxisYaw {
			vel = p.yaw.vel
		}
		enc := math.Mod(p.motorAngle(ax)*m.Direction, 2*math.Pi)
		if enc < 0 {
			enc += 2 * math.Pi
		}
		ms := motor.Measure{
			Angle:       uint16(math.Round(motor.RadToEncoder(enc))) % motor.EncoderResolution,
			Speed:       int16(math.Round(vel * 60 / (2 * math.Pi) * m.Direction)),
			Temperature: 35,
		}
		b, _ := ms.MarshalBinary()
		f := motor.Frame{ID: m.FeedbackID(), Len: 8}
		copy(f.Data[:], b)
		if len(p.pending) >= 8 {
			p.pending = p.pending[1:]
		}
		p.pending = append(p.pending, f)
	}
}

func (p *Plant) Receive() (motor.Frame, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return motor.Frame{}, false, nil
	}
	f := p.pending[0]
	p.pending = p.pending[1:]
	return f, true, nil
}

func (p *Plant) Transmit(f motor.Frame) error {
	if f.ID != motor.CommandID {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if m := p.cfg.PitchMotor; m.ID != 0 {
		p.pitch.volt = float64(m.Voltage(f)) * m.Direction
	}
	if m := p.cfg.YawMotor; m.ID != 0 {
		p.yaw.volt = float64(m.Voltage(f)) * m.Direction
	}
	return nil
}

// Read reports gravity and body rates as a level-mounted IMU would.
func (p *Plant) Read() (accel, gyro imu.Vec3, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	accel = imu.Vec3{-gravity * math.Sin(p.pitch.angle), 0, gravity * math.Cos(p.pitch.angle)}
	gyro = imu.Vec3{0, p.pitch.vel, p.yaw.vel}
	return accel, gyro, nil
}

// Attitude is the true inertial pitch and yaw.
func (p *Plant) Attitude() (pitch, yaw float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pitch.angle, p.yaw.angle
}

// Set places the body at rest at the given attitude.
func (p *Plant) Set(pitch, yaw float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pitch.angle, p.pitch.vel = pitch, 0
	p.yaw.angle, p.yaw.vel = utils.ThetaFormat(yaw), 0
	p.pending = p.pending[:0]
	p.queueFeedback()
}

func (p *Plant) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elapsed
}
