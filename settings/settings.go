package settings

import (
	"fmt"
	"math"
	"time"

	"pico-gimbal/gimbal"
	"pico-gimbal/pid"
	"pico-gimbal/sbus"
)

type Settings struct {
	Period           time.Duration `yaml:"period"`
	SoftStartCycles  int32         `yaml:"soft_start_cycles"`
	OfflineThreshold time.Duration `yaml:"offline_threshold"`
	RestartInterval  time.Duration `yaml:"restart_interval"`
	Receiver         string        `yaml:"receiver"` // empty: classify from the first frame
	Switch           gimbal.Switch `yaml:"switch"`

	PitchUpper  float64 `yaml:"pitch_upper"` // unit:rad, motor frame
	PitchMiddle float64 `yaml:"pitch_middle"`
	PitchLower  float64 `yaml:"pitch_lower"`
	MaxPitch    float64 `yaml:"max_pitch"` // unit:rad, inertial frame

	PitchPos pid.Gains `yaml:"pitch_pos"`
	PitchVel pid.Gains `yaml:"pitch_vel"`
	YawPos   pid.Gains `yaml:"yaw_pos"`
	YawVel   pid.Gains `yaml:"yaw_vel"`

	Reference     string        `yaml:"reference"` // live or sine
	SineAmplitude float64       `yaml:"sine_amplitude"`
	SineOffset    float64       `yaml:"sine_offset"`
	SinePeriod    time.Duration `yaml:"sine_period"`

	PitchMotorID   uint8   `yaml:"pitch_motor_id"`
	YawMotorID     uint8   `yaml:"yaw_motor_id"`
	PitchDirection float64 `yaml:"pitch_direction"`
	YawDirection   float64 `yaml:"yaw_direction"`
	GyroBiasYaw    float64 `yaml:"gyro_bias_yaw"` // unit:rad/s
}

const (
	ReferenceLive = "live"
	ReferenceSine = "sine"
)

var (
	defaultSettings = Settings{
		Period:           time.Millisecond,
		SoftStartCycles:  300,
		OfflineThreshold: sbus.DefaultOfflineThreshold,
		RestartInterval:  sbus.DefaultOfflineThreshold,
		Switch:           gimbal.DefaultSwitch,
		PitchUpper:       -1.609145879,
		PitchMiddle:      -2.063708757,
		PitchLower:       -2.806417942,
		MaxPitch:         gimbal.DefaultMaxPitch,
		PitchPos:         pid.Gains{Kp: 50, MaxOut: 20},
		PitchVel:         pid.Gains{Kp: 5000, Ki: 5, MaxOut: 25000, MaxIOut: 1000},
		YawPos:           pid.Gains{Kp: 30, MaxOut: 20},
		YawVel:           pid.Gains{Kp: 10000, Ki: 100, MaxOut: 25000, MaxIOut: 5000},
		Reference:        ReferenceLive,
		SineAmplitude:    0.3,
		SinePeriod:       5 * time.Second,
		PitchMotorID:     2,
		YawMotorID:       1,
		PitchDirection:   1,
		YawDirection:     1,
		GyroBiasYaw:      0.003096855,
	}
	currentSettings = defaultSettings
	subscribe       []func(s Settings) error
)

func Default() Settings {
	return defaultSettings
}

func Validate(s Settings) error {
	if s.Period <= 0 {
		return fmt.Errorf("invalid period: %s", s.Period)
	}
	if s.SoftStartCycles < 0 {
		return fmt.Errorf("invalid soft start cycles: %d", s.SoftStartCycles)
	}
	if s.OfflineThreshold <= 0 {
		return fmt.Errorf("invalid offline threshold: %s", s.OfflineThreshold)
	}
	if s.RestartInterval < 0 {
		return fmt.Errorf("invalid restart interval: %s", s.RestartInterval)
	}
	if s.Receiver != "" {
		if _, err := sbus.ParseReceiverType(s.Receiver); err != nil {
			return err
		}
	}
	if s.Switch.Channel < 0 || s.Switch.Channel >= sbus.NumChannels {
		return fmt.Errorf("invalid switch channel: %d", s.Switch.Channel)
	}
	if s.Switch.AngleValue > 0x07FF {
		return fmt.Errorf("invalid switch angle value: %d", s.Switch.AngleValue)
	}
	for _, v := range []float64{s.PitchUpper, s.PitchMiddle, s.PitchLower} {
		if v <= -math.Pi || v > math.Pi {
			return fmt.Errorf("invalid pitch limit: %f", v)
		}
	}
	if s.MaxPitch <= 0 || s.MaxPitch > math.Pi/2 {
		return fmt.Errorf("invalid max pitch: %f", s.MaxPitch)
	}
	for name, g := range map[string]pid.Gains{
		"pitch position": s.PitchPos,
		"pitch velocity": s.PitchVel,
		"yaw position":   s.YawPos,
		"yaw velocity":   s.YawVel,
	} {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("%s gains: %w", name, err)
		}
	}
	switch s.Reference {
	case ReferenceLive, ReferenceSine:
	default:
		return fmt.Errorf("invalid reference source: %q", s.Reference)
	}
	if s.Reference == ReferenceSine && s.SinePeriod <= 0 {
		return fmt.Errorf("invalid sine period: %s", s.SinePeriod)
	}
	if s.PitchMotorID < 1 || s.PitchMotorID > 4 || s.YawMotorID < 1 || s.YawMotorID > 4 {
		return fmt.Errorf("invalid motor ids: pitch %d yaw %d", s.PitchMotorID, s.YawMotorID)
	}
	if s.PitchMotorID == s.YawMotorID {
		return fmt.Errorf("invalid motor ids: both %d", s.PitchMotorID)
	}
	if math.Abs(s.PitchDirection) != 1 || math.Abs(s.YawDirection) != 1 {
		return fmt.Errorf("invalid motor direction: pitch %f yaw %f", s.PitchDirection, s.YawDirection)
	}
	return nil
}

func SubscribeClear() {
	subscribe = nil
}

func SubscribeAdd(f func(s Settings) error) {
	subscribe = append(subscribe, f)
}

// Store persists settings between boots.
type Store interface {
	Load() (Settings, error)
	Save(s Settings) error
}

var store Store

func SetStore(st Store) {
	store = st
}

// Restore loads the stored settings, falling back to the defaults when
// nothing valid is stored.
func Restore() error {
	s := defaultSettings
	if store != nil {
		loaded, err := store.Load()
		if err != nil {
			Update(defaultSettings)
			return err
		}
		s = loaded
	}
	if err := Update(s); err != nil {
		currentSettings = defaultSettings
		Update(currentSettings)
		return err
	}
	return nil
}

func Save(s Settings) error {
	if err := Validate(s); err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	return store.Save(s)
}

func Update(s Settings) error {
	if err := Validate(s); err != nil {
		return err
	}
	// notify all subscribers
	for _, l := range subscribe {
		if err := l(s); err != nil {
			return err
		}
	}
	currentSettings = s
	return nil
}

func Get() Settings {
	return currentSettings
}

// ReceiverType resolves the pinned receiver model, unknown when unset.
func (s Settings) ReceiverType() sbus.ReceiverType {
	rt, _ := sbus.ParseReceiverType(s.Receiver)
	return rt
}

func (s Settings) GimbalConfig() gimbal.Config {
	return gimbal.Config{
		Switch:      s.Switch,
		PitchLimits: gimbal.NewLimits(s.PitchUpper, s.PitchMiddle, s.PitchLower),
		MaxPitch:    s.MaxPitch,
		PitchPos:    s.PitchPos,
		PitchVel:    s.PitchVel,
		YawPos:      s.YawPos,
		YawVel:      s.YawVel,
	}
}

// ReferenceSource builds the configured reference strategy.
func (s Settings) ReferenceSource(link gimbal.Link, start time.Time) gimbal.ReferenceSource {
	if s.Reference == ReferenceSine {
		return gimbal.SineSource{
			Amplitude: s.SineAmplitude,
			Offset:    s.SineOffset,
			Period:    s.SinePeriod,
			Start:     start,
		}
	}
	return gimbal.LiveSource{Link: link}
}
