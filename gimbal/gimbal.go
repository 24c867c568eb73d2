package gimbal

import (
	"time"

	"pico-gimbal/pid"
	"pico-gimbal/utils"
)

type Axis uint8

const (
	AxisPitch Axis = iota
	AxisYaw
)

func (a Axis) String() string {
	if a == AxisYaw {
		return "yaw"
	}
	return "pitch"
}

type MotorFeedback interface {
	// MotorPosition is the encoder angle in radians, direction applied.
	MotorPosition(a Axis) float64
}

type InertialFeedback interface {
	InertialAngle(a Axis) float64
	InertialVelocity(a Axis) float64
}

// Command is the per-axis actuator value handed to the motor driver.
type Command struct {
	Pitch float64
	Yaw   float64
}

type AxisState struct {
	MotorPos float64 // motor frame
	Pos      float64 // inertial frame
	Vel      float64
	RefPos   float64
	RefVel   float64
	Cmd      float64
}

// State is everything the gimbal derived in the last cycle.
type State struct {
	Mode     Mode
	LastMode Mode
	Pitch    AxisState
	Yaw      AxisState
	Limits   Limits
	Envelope Envelope
}

type Config struct {
	Switch      Switch
	PitchLimits Limits
	MaxPitch    float64
	PitchPos    pid.Gains
	PitchVel    pid.Gains
	YawPos      pid.Gains
	YawVel      pid.Gains
}

type Gimbal struct {
	link   Link
	motors MotorFeedback
	imu    InertialFeedback
	ref    ReferenceSource

	sw       Switch
	maxPitch float64
	pitch    *Cascade
	yaw      *Cascade

	override   Mode
	overridden bool

	st State
}

func New(cfg Config, link Link, motors MotorFeedback, imu InertialFeedback, ref ReferenceSource) *Gimbal {
	return &Gimbal{
		link:     link,
		motors:   motors,
		imu:      imu,
		ref:      ref,
		sw:       cfg.Switch,
		maxPitch: cfg.MaxPitch,
		pitch:    NewCascade(cfg.PitchPos, cfg.PitchVel),
		yaw:      NewCascade(cfg.YawPos, cfg.YawVel),
		st: State{
			Mode:     ModeSafe,
			LastMode: ModeSafe,
			Limits:   cfg.PitchLimits,
		},
	}
}

// SetConfig swaps the mode switch, the pitch envelope and the gains. It must
// be called between steps; controller state is kept.
func (g *Gimbal) SetConfig(cfg Config) {
	g.sw = cfg.Switch
	g.maxPitch = cfg.MaxPitch
	g.st.Limits = cfg.PitchLimits
	g.pitch.Pos.SetGains(cfg.PitchPos)
	g.pitch.Vel.SetGains(cfg.PitchVel)
	g.yaw.Pos.SetGains(cfg.YawPos)
	g.yaw.Vel.SetGains(cfg.YawVel)
}

// Override replaces the switch reading with m while the link is online. This
// is the only way into OFF and MOTOR_ANGLE.
func (g *Gimbal) Override(m Mode) {
	g.override = m
	g.overridden = true
}

func (g *Gimbal) ClearOverride() {
	g.overridden = false
}

// Step runs one control cycle and returns the command to send.
func (g *Gimbal) Step(now time.Time) Command {
	g.setMode()
	g.observe()
	g.reference(now)
	g.console()
	return g.Command()
}

func (g *Gimbal) setMode() {
	g.st.LastMode = g.st.Mode
	offline := g.link.IsOffline()
	mode := SelectMode(offline, g.link.ReceiverType(), g.link.Channel(g.sw.Channel), g.sw)
	if g.overridden && !offline {
		mode = g.override
	}
	g.st.Mode = mode
	if g.st.LastMode.Active() && !mode.Active() {
		g.pitch.Reset()
		g.yaw.Reset()
	}
}

func (g *Gimbal) observe() {
	g.st.Pitch.MotorPos = g.motors.MotorPosition(AxisPitch)
	g.st.Yaw.MotorPos = g.motors.MotorPosition(AxisYaw)

	g.st.Pitch.Pos = g.imu.InertialAngle(AxisPitch)
	g.st.Pitch.Vel = g.imu.InertialVelocity(AxisPitch)
	g.st.Yaw.Pos = g.imu.InertialAngle(AxisYaw)
	g.st.Yaw.Vel = g.imu.InertialVelocity(AxisYaw)

	g.st.Envelope = g.st.Limits.Envelope(g.st.Pitch.MotorPos, g.st.Pitch.Pos, g.maxPitch)
}

func (g *Gimbal) reference(now time.Time) {
	pitch, yaw := g.ref.Reference(now)
	g.st.Pitch.RefPos = g.st.Envelope.Clamp(utils.ThetaFormat(pitch))
	g.st.Yaw.RefPos = utils.ThetaFormat(yaw)
}

func (g *Gimbal) console() {
	if !g.st.Mode.Active() {
		g.st.Pitch.RefVel, g.st.Pitch.Cmd = 0, 0
		g.st.Yaw.RefVel, g.st.Yaw.Cmd = 0, 0
		return
	}
	// MOTOR_ANGLE shares the inertial loop; its reference lives in the
	// inertial frame already.
	g.st.Pitch.RefVel, g.st.Pitch.Cmd = g.pitch.Update(g.st.Pitch.Pos, g.st.Pitch.Vel, g.st.Pitch.RefPos)
	g.st.Yaw.RefVel, g.st.Yaw.Cmd = g.yaw.Update(g.st.Yaw.Pos, g.st.Yaw.Vel, g.st.Yaw.RefPos)
}

func (g *Gimbal) Command() Command {
	return Command{Pitch: g.st.Pitch.Cmd, Yaw: g.st.Yaw.Cmd}
}

func (g *Gimbal) State() State { return g.st }

func (g *Gimbal) Mode() Mode { return g.st.Mode }

// Cascades exposes the controllers for live retuning.
func (g *Gimbal) Cascades() (pitch, yaw *Cascade) { return g.pitch, g.yaw }
