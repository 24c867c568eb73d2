package control

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"pico-gimbal/gimbal"
	"pico-gimbal/logger"
	"pico-gimbal/sbus"
	"pico-gimbal/settings"
)

// Sampler refreshes one feedback source before the gimbal reads it.
type Sampler interface {
	Sample() error
}

type CommandSink interface {
	Output(c gimbal.Command) error
}

// Link is the radio receiver as seen by the loop.
type Link interface {
	gimbal.Link
	RestartIfOffline() (bool, error)
}

// TunableLink is a Link whose supervision can be reconfigured at runtime.
type TunableLink interface {
	SetTimeouts(threshold, restartInterval time.Duration)
	SetReceiverType(t sbus.ReceiverType)
}

// Observer sees every cycle after the command went out.
type Observer func(now time.Time, st gimbal.State, cmd gimbal.Command)

type Loop struct {
	gimbal   *gimbal.Gimbal
	link     Link
	sink     CommandSink
	samplers []Sampler
	now      func() time.Time
	observer Observer
	updates  chan settings.Settings

	period    time.Duration
	softStart int32
	cnt       int32

	mode     gimbal.Mode
	receiver sbus.ReceiverType
	offline  bool
	cycles   uint64
}

func New(g *gimbal.Gimbal, link Link, sink CommandSink, samplers ...Sampler) *Loop {
	s := settings.Get()
	return &Loop{
		gimbal:    g,
		link:      link,
		sink:      sink,
		samplers:  samplers,
		now:       time.Now,
		updates:   make(chan settings.Settings, 1),
		period:    s.Period,
		softStart: s.SoftStartCycles,
		mode:      g.Mode(),
	}
}

func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Loop) SetObserver(o Observer) {
	l.observer = o
}

// Subscribe routes settings updates into the loop. They are applied at the
// start of the next cycle, on the loop's goroutine.
func (l *Loop) Subscribe() {
	settings.SubscribeClear()
	settings.SubscribeAdd(func(s settings.Settings) error {
		for {
			select {
			case l.updates <- s:
				return nil
			default:
			}
			select {
			case <-l.updates:
			default:
			}
		}
	})
}

func (l *Loop) apply(s settings.Settings) {
	l.gimbal.SetConfig(s.GimbalConfig())
	if tl, ok := l.link.(TunableLink); ok {
		tl.SetTimeouts(s.OfflineThreshold, s.RestartInterval)
		if s.Receiver != "" {
			tl.SetReceiverType(s.ReceiverType())
		}
	}
	l.period = s.Period
	l.softStart = s.SoftStartCycles
	logger.Print("settings applied")
}

// Step runs one control cycle at now.
func (l *Loop) Step(now time.Time) error {
	select {
	case s := <-l.updates:
		l.apply(s)
	default:
	}
	restarted, err := l.link.RestartIfOffline()
	if err != nil {
		logger.Print("sbus restart failed:", err)
	} else if restarted {
		logger.Print("sbus offline, receiver restarted")
	}
	for _, s := range l.samplers {
		if err := s.Sample(); err != nil {
			return errors.Wrap(err, "sample feedback")
		}
	}

	cmd := l.gimbal.Step(now)
	l.report()

	if l.cnt < l.softStart {
		l.cnt++
		k := float64(l.cnt) / float64(l.softStart)
		cmd.Pitch *= k
		cmd.Yaw *= k
	}
	if err := l.sink.Output(cmd); err != nil {
		return errors.Wrap(err, "output command")
	}
	l.cycles++
	if l.observer != nil {
		l.observer(now, l.gimbal.State(), cmd)
	}
	return nil
}

func (l *Loop) report() {
	if rt := l.link.ReceiverType(); rt != l.receiver {
		logger.Printf("receiver %s", rt)
		l.receiver = rt
	}
	if off := l.link.IsOffline(); off != l.offline {
		if off {
			logger.Print("sbus link lost")
		} else {
			logger.Print("sbus link up")
		}
		l.offline = off
	}
	mode := l.gimbal.Mode()
	if mode == l.mode {
		return
	}
	logger.Printf("mode %s -> %s", l.mode, mode)
	if mode.Active() && !l.mode.Active() {
		l.cnt = 0
	}
	l.mode = mode
}

// Loop ticks Step every period until ctx is done, then zeroes the actuators.
func (l *Loop) Loop(ctx context.Context) error {
	period := l.period
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(l.sink.Output(gimbal.Command{}), "stop")
		case <-tick.C:
			if err := l.Step(l.now()); err != nil {
				if stopErr := l.sink.Output(gimbal.Command{}); stopErr != nil {
					logger.Print("stop after error:", stopErr)
				}
				return err
			}
			if l.period != period {
				period = l.period
				tick.Reset(period)
			}
		}
	}
}

func (l *Loop) Cycles() uint64 { return l.cycles }

func (l *Loop) Gimbal() *gimbal.Gimbal { return l.gimbal }
