package gimbal

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pico-gimbal/pid"
	"pico-gimbal/sbus"
)

type fakeLink struct {
	offline bool
	rt      sbus.ReceiverType
	ch      [sbus.NumChannels]uint16
}

func (l *fakeLink) IsOffline() bool                 { return l.offline }
func (l *fakeLink) Channel(i int) uint16            { return l.ch[i] }
func (l *fakeLink) ReceiverType() sbus.ReceiverType { return l.rt }

type fakeFeedback struct {
	motor [2]float64
	angle [2]float64
	vel   [2]float64
}

func (f *fakeFeedback) MotorPosition(a Axis) float64    { return f.motor[a] }
func (f *fakeFeedback) InertialAngle(a Axis) float64    { return f.angle[a] }
func (f *fakeFeedback) InertialVelocity(a Axis) float64 { return f.vel[a] }

type fixedRef struct{ pitch, yaw float64 }

func (r fixedRef) Reference(time.Time) (float64, float64) { return r.pitch, r.yaw }

var testLimits = NewLimits(-1.609145879, -2.063708757, -2.806417942)

func testConfig() Config {
	return Config{
		Switch:      DefaultSwitch,
		PitchLimits: testLimits,
		MaxPitch:    DefaultMaxPitch,
		PitchPos:    pid.Gains{Kp: 50, MaxOut: 20},
		PitchVel:    pid.Gains{Kp: 5000, Ki: 5, MaxOut: 25000, MaxIOut: 1000},
		YawPos:      pid.Gains{Kp: 30, MaxOut: 20},
		YawVel:      pid.Gains{Kp: 10000, Ki: 100, MaxOut: 25000, MaxIOut: 5000},
	}
}

func et08aLink() *fakeLink {
	l := &fakeLink{rt: sbus.ReceiverET08A}
	for i := range l.ch {
		l.ch[i] = 1024
	}
	return l
}

func TestSelectMode(t *testing.T) {
	sw := DefaultSwitch
	cases := []struct {
		name    string
		offline bool
		rt      sbus.ReceiverType
		raw     uint16
		want    Mode
	}{
		{"switch selects angle", false, sbus.ReceiverET08A, 0x0400, ModeAngle},
		{"other switch value", false, sbus.ReceiverET08A, 353, ModeSafe},
		{"offline wins over switch", true, sbus.ReceiverET08A, 0x0400, ModeSafe},
		{"unknown receiver", false, sbus.ReceiverUnknown, 0x0400, ModeSafe},
		{"other receiver", false, sbus.ReceiverAT9SPro, 0x0400, ModeAngle},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, SelectMode(c.offline, c.rt, c.raw, sw))
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "MOTOR_ANGLE", ModeMotorAngle.String())
	assert.Equal(t, "INVALID", Mode(9).String())
	assert.True(t, ModeAngle.Active())
	assert.False(t, ModeOff.Active())
}

func TestNewLimitsUnwrap(t *testing.T) {
	l := NewLimits(-1.6, -2.0, -2.8)
	assert.Equal(t, Limits{Upper: -1.6, Lower: -2.8, Middle: -2.0}, l)

	// range straddling the encoder seam
	l = NewLimits(-2.9, 2.8, 2.5)
	assert.InDelta(t, -2.9+2*math.Pi, l.Upper, 1e-12)
	assert.InDelta(t, 2.5, l.Lower, 1e-12)

	l = NewLimits(-2.5, -2.8, 2.9)
	assert.InDelta(t, 2.9-2*math.Pi, l.Lower, 1e-12)
	assert.Less(t, l.Lower, l.Middle)
	assert.Greater(t, l.Upper, l.Middle)
}

func TestEnvelopeTracksMotorDrift(t *testing.T) {
	l := Limits{Upper: 0.4, Lower: -0.4, Middle: 0}
	base := l.Envelope(0, 0, 10)
	for _, delta := range []float64{-0.3, -0.05, 0.1, 0.25} {
		e := l.Envelope(delta, 0, 10)
		assert.InDelta(t, base.Upper-delta, e.Upper, 1e-12)
		assert.InDelta(t, base.Lower-delta, e.Lower, 1e-12)

		// the inertial reading moving with the motor leaves the envelope in place
		e = l.Envelope(delta, delta, 10)
		assert.InDelta(t, base.Upper, e.Upper, 1e-12)
		assert.InDelta(t, base.Lower, e.Lower, 1e-12)
	}
}

func TestEnvelopeCeilingWins(t *testing.T) {
	l := Limits{Upper: 3, Lower: -3, Middle: 0}
	e := l.Envelope(0, 0, DefaultMaxPitch)
	assert.Equal(t, DefaultMaxPitch, e.Upper)
	assert.Equal(t, -DefaultMaxPitch, e.Lower)
}

func TestEnvelopeDefaultLimits(t *testing.T) {
	e := testLimits.Envelope(testLimits.Middle, 0, DefaultMaxPitch)
	assert.InDelta(t, -1.609145879+2.063708757, e.Upper, 1e-9)
	assert.InDelta(t, -2.806417942+2.063708757, e.Lower, 1e-9)
	assert.Equal(t, 0.0, e.Clamp(0))
	assert.Equal(t, e.Upper, e.Clamp(1))
	assert.Equal(t, e.Lower, e.Clamp(-1))
}

func TestSafeModesZeroCommand(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, m := range []Mode{ModeOff, ModeSafe} {
		link := et08aLink()
		fb := &fakeFeedback{}
		ref := &fixedRef{}
		g := New(testConfig(), link, fb, fb, ref)
		g.Override(m)
		for i := 0; i < 200; i++ {
			fb.motor = [2]float64{rng.NormFloat64(), rng.NormFloat64()}
			fb.angle = [2]float64{rng.NormFloat64(), rng.NormFloat64()}
			fb.vel = [2]float64{10 * rng.NormFloat64(), 10 * rng.NormFloat64()}
			ref.pitch, ref.yaw = 3*rng.NormFloat64(), 3*rng.NormFloat64()
			cmd := g.Step(time.Now())
			require.Equal(t, m, g.Mode())
			require.Equal(t, Command{}, cmd)
		}
		pitch, yaw := g.Cascades()
		assert.Zero(t, pitch.Vel.Integral(), m.String())
		assert.Zero(t, yaw.Vel.Integral(), m.String())
	}
}

func TestOverrideNeedsLink(t *testing.T) {
	link := et08aLink()
	link.ch[4] = 353
	fb := &fakeFeedback{}
	g := New(testConfig(), link, fb, fb, fixedRef{})

	g.Step(time.Now())
	assert.Equal(t, ModeSafe, g.Mode())

	g.Override(ModeMotorAngle)
	g.Step(time.Now())
	assert.Equal(t, ModeMotorAngle, g.Mode())
	assert.Equal(t, ModeSafe, g.State().LastMode)

	link.offline = true
	g.Step(time.Now())
	assert.Equal(t, ModeSafe, g.Mode())

	link.offline = false
	g.ClearOverride()
	g.Step(time.Now())
	assert.Equal(t, ModeSafe, g.Mode())
}

func TestIntegralsResetWhenSafed(t *testing.T) {
	link := et08aLink()
	link.ch[4] = 0x0400
	fb := &fakeFeedback{}
	fb.motor[AxisPitch] = testLimits.Middle
	g := New(testConfig(), link, fb, fb, fixedRef{pitch: 0.2, yaw: 0.5})
	for i := 0; i < 5; i++ {
		g.Step(time.Now())
	}
	pitch, yaw := g.Cascades()
	require.NotZero(t, pitch.Vel.Integral())
	require.NotZero(t, yaw.Vel.Integral())

	link.ch[4] = 353
	g.Step(time.Now())
	assert.Equal(t, ModeAngle, g.State().LastMode)
	assert.Equal(t, ModeSafe, g.Mode())
	assert.Zero(t, pitch.Vel.Integral())
	assert.Zero(t, yaw.Vel.Integral())
}

func TestReferenceClampedIntoEnvelope(t *testing.T) {
	link := et08aLink()
	link.ch[4] = 0x0400
	fb := &fakeFeedback{}
	fb.motor[AxisPitch] = testLimits.Middle
	ref := &fixedRef{pitch: 1.2, yaw: 3 * math.Pi / 2}
	g := New(testConfig(), link, fb, fb, ref)

	g.Step(time.Now())
	st := g.State()
	assert.InDelta(t, st.Envelope.Upper, st.Pitch.RefPos, 1e-12)
	assert.InDelta(t, -math.Pi/2, st.Yaw.RefPos, 1e-12, "yaw is only wrapped")

	ref.pitch = -1.2
	g.Step(time.Now())
	assert.InDelta(t, g.State().Envelope.Lower, g.State().Pitch.RefPos, 1e-12)

	// envelope follows the live motor/inertial offset
	fb.angle[AxisPitch] = 0.1
	ref.pitch = 1
	g.Step(time.Now())
	assert.InDelta(t, -1.609145879+2.063708757+0.1, g.State().Pitch.RefPos, 1e-9)
}

func TestSetConfigAppliesBetweenSteps(t *testing.T) {
	link := et08aLink()
	link.ch[4] = 0x0400
	fb := &fakeFeedback{}
	fb.motor[AxisPitch] = testLimits.Middle
	g := New(testConfig(), link, fb, fb, fixedRef{pitch: 0.5})

	g.Step(time.Now())
	require.Equal(t, ModeAngle, g.Mode())
	assert.InDelta(t, -1.609145879+2.063708757, g.State().Pitch.RefPos, 1e-9)

	cfg := testConfig()
	cfg.MaxPitch = 0.1
	cfg.PitchPos = pid.Gains{Kp: 10, MaxOut: 20}
	g.SetConfig(cfg)
	g.Step(time.Now())
	st := g.State()
	assert.InDelta(t, 0.1, st.Pitch.RefPos, 1e-12)
	assert.InDelta(t, 1.0, st.Pitch.RefVel, 1e-9)

	cfg.Switch = Switch{Channel: 5, AngleValue: 0x0200}
	cfg.PitchLimits = NewLimits(-1.8, -2.063708757, -2.806417942)
	g.SetConfig(cfg)
	g.Step(time.Now())
	assert.Equal(t, ModeSafe, g.Mode(), "channel 5 is centered")
	assert.Equal(t, cfg.PitchLimits, g.State().Limits)

	link.ch[5] = 0x0200
	g.Step(time.Now())
	assert.Equal(t, ModeAngle, g.Mode())
	assert.InDelta(t, 0.1, g.State().Pitch.RefPos, 1e-12)
}

func TestCascadeRunsInAngleMode(t *testing.T) {
	link := et08aLink()
	link.ch[4] = 0x0400
	fb := &fakeFeedback{}
	fb.motor[AxisPitch] = testLimits.Middle
	g := New(testConfig(), link, fb, fb, fixedRef{pitch: 0.1, yaw: -0.2})

	cmd := g.Step(time.Now())
	st := g.State()
	assert.Equal(t, ModeAngle, st.Mode)
	assert.InDelta(t, 5.0, st.Pitch.RefVel, 1e-9)
	assert.InDelta(t, -6.0, st.Yaw.RefVel, 1e-9)
	assert.Equal(t, 25000.0, cmd.Pitch)
	assert.Equal(t, -25000.0, cmd.Yaw)
}

func TestColdStartCenteredStickCommandsZero(t *testing.T) {
	link := et08aLink()
	link.ch[4] = 0x0400
	fb := &fakeFeedback{}
	fb.motor[AxisPitch] = testLimits.Middle
	g := New(testConfig(), link, fb, fb, LiveSource{Link: link})

	cmd := g.Step(time.Now())
	st := g.State()
	assert.Equal(t, ModeAngle, st.Mode)
	assert.Zero(t, st.Pitch.RefPos)
	pitch, _ := g.Cascades()
	assert.Zero(t, pitch.Pos.Error())
	assert.Equal(t, Command{}, cmd)
}

func TestOfflineLinkForcesSafe(t *testing.T) {
	clk := time.Unix(0, 0)
	now := func() time.Time { return clk }
	rx := sbus.NewReceiver(nil, sbus.WithClock(now), sbus.WithOfflineThreshold(100*time.Millisecond))

	f := sbus.Frame{Flag: 0}
	for i := range f.Channels {
		f.Channels[i] = 1024
	}
	b := sbus.Encode(f)
	rx.Write(b[:])
	require.True(t, rx.IdleLine())

	fb := &fakeFeedback{}
	fb.motor[AxisPitch] = testLimits.Middle
	g := New(testConfig(), rx, fb, fb, fixedRef{pitch: 0.3, yaw: 0.3})
	cmd := g.Step(clk)
	require.Equal(t, ModeAngle, g.Mode())
	require.NotEqual(t, Command{}, cmd)

	clk = clk.Add(150 * time.Millisecond)
	cmd = g.Step(clk)
	assert.Equal(t, ModeSafe, g.Mode())
	assert.Equal(t, Command{}, cmd)
}

func TestLiveSourceProfiles(t *testing.T) {
	link := &fakeLink{rt: sbus.ReceiverESP32Tracker}
	link.ch[1] = 2047
	link.ch[2] = 0
	pitch, yaw := LiveSource{Link: link}.Reference(time.Time{})
	assert.InDelta(t, math.Pi/2, pitch, 1e-9)
	assert.InDelta(t, -math.Pi/2, yaw, 1e-9)

	link.rt = sbus.ReceiverUnknown
	pitch, yaw = LiveSource{Link: link}.Reference(time.Time{})
	assert.Zero(t, pitch)
	assert.Zero(t, yaw)
}

func TestSineSource(t *testing.T) {
	start := time.Unix(100, 0)
	s := SineSource{Amplitude: 0.3, Period: 5 * time.Second, Start: start}
	p, y := s.Reference(start)
	assert.InDelta(t, 0, p, 1e-12)
	assert.Equal(t, p, y)
	p, _ = s.Reference(start.Add(1250 * time.Millisecond))
	assert.InDelta(t, 0.3, p, 1e-12)
	p, _ = s.Reference(start.Add(3750 * time.Millisecond))
	assert.InDelta(t, -0.3, p, 1e-12)

	p, _ = SineSource{Offset: 0.1}.Reference(start)
	assert.Equal(t, 0.1, p)
}
