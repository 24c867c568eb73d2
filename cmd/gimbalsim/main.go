// Command gimbalsim runs the gimbal control stack against a simulated body,
// fed either by a loopback radio or by a real SBUS receiver on a serial port.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"pico-gimbal/control"
	"pico-gimbal/gimbal"
	"pico-gimbal/imu"
	"pico-gimbal/logger"
	"pico-gimbal/motor"
	"pico-gimbal/sbus"
	"pico-gimbal/settings"
	"pico-gimbal/sim"
	"pico-gimbal/transport"
)

func main() {
	log.SetFlags(log.Lmicroseconds)

	app := cli.NewApp()
	app.Name = "gimbalsim"
	app.Usage = "run the gimbal controller against a simulated plant"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "settings file (yaml)",
		},
		cli.StringFlag{
			Name:  "receiver",
			Usage: "pin the receiver model (AT9S-PRO, HT8A, ET08A, ESP32-tracker)",
		},
		cli.StringFlag{
			Name:  "reference",
			Usage: "reference source, live or sine",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "run the control loop",
			Action: run,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "serial",
					Usage: "read SBUS from this serial port instead of the loopback radio",
				},
				cli.DurationFlag{
					Name:  "duration",
					Usage: "stop after this long, 0 runs until interrupted",
				},
				cli.Float64Flag{
					Name:  "pitch",
					Value: 0.2,
					Usage: "loopback pitch stick in radians",
				},
				cli.Float64Flag{
					Name:  "yaw",
					Value: 0.5,
					Usage: "loopback yaw stick in radians",
				},
				cli.DurationFlag{
					Name:  "dropout-at",
					Usage: "start a loopback dropout after this long",
				},
				cli.DurationFlag{
					Name:  "dropout",
					Usage: "length of the loopback dropout",
				},
				cli.IntFlag{
					Name:  "print-every",
					Value: 100,
					Usage: "print the gimbal state every n cycles",
				},
			},
		},
		{
			Name:   "config",
			Usage:  "print the effective settings",
			Action: printConfig,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadSettings(c *cli.Context) (settings.Settings, error) {
	if path := c.GlobalString("config"); path != "" {
		settings.SetStore(settings.FileStore{Path: path})
	}
	if err := settings.Restore(); err != nil {
		return settings.Get(), err
	}
	s := settings.Get()
	if v := c.GlobalString("receiver"); v != "" {
		s.Receiver = v
	}
	if v := c.GlobalString("reference"); v != "" {
		s.Reference = v
	}
	if err := settings.Update(s); err != nil {
		return s, errors.Wrap(err, "apply flags")
	}
	return s, nil
}

func printConfig(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	return settings.Encode(os.Stdout, s)
}

func run(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	opts := []sbus.Option{
		sbus.WithOfflineThreshold(s.OfflineThreshold),
		sbus.WithRestartInterval(s.RestartInterval),
	}
	if s.Receiver != "" {
		opts = append(opts, sbus.WithReceiverType(s.ReceiverType()))
	}

	var rx *sbus.Receiver
	if name := c.String("serial"); name != "" {
		port, err := transport.Open(name, transport.DefaultIdle)
		if err != nil {
			return err
		}
		defer port.Close()
		rx = sbus.NewReceiver(port, opts...)
		port.Attach(rx)
		go func() {
			if err := port.Run(ctx); err != nil {
				logger.Print("serial:", err)
			}
		}()
	} else {
		lb := transport.NewLoopback(transport.DefaultFramePeriod)
		rx = sbus.NewReceiver(lb, opts...)
		lb.Attach(rx)
		lb.SetFrame(loopbackFrame(s, c.Float64("pitch"), c.Float64("yaw")))
		if d := c.Duration("dropout"); d > 0 {
			t := time.AfterFunc(c.Duration("dropout-at"), func() {
				logger.Printf("loopback dropout for %s", d)
				lb.Drop(d)
			})
			defer t.Stop()
		}
		go lb.Run(ctx)
	}

	pitchMotor := motor.Motor{ID: s.PitchMotorID, Direction: s.PitchDirection}
	yawMotor := motor.Motor{ID: s.YawMotorID, Direction: s.YawDirection}
	plant := sim.New(sim.Config{
		Step:        s.Period,
		PitchMotor:  pitchMotor,
		YawMotor:    yawMotor,
		PitchMiddle: s.PitchMiddle,
		PitchStops:  gimbal.NewLimits(s.PitchUpper, s.PitchMiddle, s.PitchLower),
	})
	bus := motor.NewBus(plant, pitchMotor, yawMotor)
	att := imu.New(plant, imu.Vec3{})

	g := gimbal.New(s.GimbalConfig(), rx, bus, att, s.ReferenceSource(rx, time.Now()))
	loop := control.New(g, rx, bus, plant, bus, att)
	loop.Subscribe()
	if n := uint64(c.Int("print-every")); n > 0 {
		loop.SetObserver(func(_ time.Time, st gimbal.State, cmd gimbal.Command) {
			if loop.Cycles()%n != 0 {
				return
			}
			pitch, yaw := plant.Attitude()
			logger.Printf("%-5s pitch %+.3f/%+.3f yaw %+.3f/%+.3f cmd %+6.0f %+6.0f true %+.3f %+.3f",
				st.Mode, st.Pitch.Pos, st.Pitch.RefPos, st.Yaw.Pos, st.Yaw.RefPos, cmd.Pitch, cmd.Yaw, pitch, yaw)
		})
	}
	logger.Printf("gimbalsim start, reference %s", s.Reference)
	if err := loop.Loop(ctx); err != nil {
		return err
	}
	logger.Printf("stopped after %d cycles, %d frames, %d dropped, %d restarts",
		loop.Cycles(), rx.State().Frames, rx.Drops(), rx.Restarts())
	logger.Flush(100 * time.Millisecond)
	return nil
}

// loopbackFrame holds the sticks at pitch and yaw with the mode switch on.
func loopbackFrame(s settings.Settings, pitch, yaw float64) sbus.Frame {
	rt := s.ReceiverType()
	if rt == sbus.ReceiverUnknown {
		rt = sbus.ReceiverET08A
	}
	p := sbus.ProfileFor(rt)
	f := sbus.Frame{Flag: p.Flag}
	for i := range f.Channels {
		f.Channels[i] = p.Center
	}
	f.Channels[s.Switch.Channel] = s.Switch.AngleValue
	f.Channels[p.PitchChannel] = p.Raw(pitch)
	f.Channels[p.YawChannel] = p.Raw(yaw)
	return f
}
