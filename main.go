//go:build tinygo

package main

import (
	"context"
	"log"
	"machine"
	"time"

	"tinygo.org/x/drivers/mcp2515"

	"pico-gimbal/control"
	"pico-gimbal/gimbal"
	"pico-gimbal/imu"
	"pico-gimbal/logger"
	"pico-gimbal/motor"
	"pico-gimbal/sbus"
	"pico-gimbal/settings"
	"pico-gimbal/transport"
)

var (
	spi   = machine.SPI0
	csPin = machine.GP28
	i2c   = machine.I2C1
	uart  = machine.UART1
)

func main() {
	log.SetFlags(log.Lmicroseconds)

	if err := settings.Restore(); err != nil {
		log.Print(err)
	}
	s := settings.Get()

	// spi initialize
	if err := spi.Configure(
		machine.SPIConfig{
			Frequency: 500000,
			SCK:       machine.GP2,
			SDO:       machine.GP3,
			SDI:       machine.GP4,
			Mode:      0,
		},
	); err != nil {
		log.Print(err)
	}

	// can initialize
	can := mcp2515.New(spi, csPin)
	can.Configure()
	if err := can.Begin(mcp2515.CAN1000kBps, mcp2515.Clock8MHz); err != nil {
		log.Fatal(err)
	}
	pitchMotor := motor.Motor{ID: s.PitchMotorID, Direction: s.PitchDirection}
	yawMotor := motor.Motor{ID: s.YawMotorID, Direction: s.YawDirection}
	bus := motor.NewBus(motor.NewCANPort(can), pitchMotor, yawMotor)
	if err := motor.WaitFeedback(bus); err != nil {
		log.Fatal(err)
	}

	// imu initialize
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.GP6,
		SCL:       machine.GP7,
	}); err != nil {
		log.Fatal(err)
	}
	lsm, err := imu.NewLSM(i2c)
	if err != nil {
		log.Fatal(err)
	}
	att := imu.New(lsm, imu.Vec3{2: s.GyroBiasYaw})

	// sbus initialize
	rxUART, err := transport.NewUART(uart, machine.GP9, transport.DefaultIdle)
	if err != nil {
		log.Fatal(err)
	}
	opts := []sbus.Option{
		sbus.WithOfflineThreshold(s.OfflineThreshold),
		sbus.WithRestartInterval(s.RestartInterval),
	}
	if s.Receiver != "" {
		opts = append(opts, sbus.WithReceiverType(s.ReceiverType()))
	}
	rx := sbus.NewReceiver(rxUART, opts...)
	rxUART.Attach(rx)

	ctx := context.Background()
	go rxUART.Run(ctx)

	g := gimbal.New(s.GimbalConfig(), rx, bus, att, s.ReferenceSource(rx, time.Now()))
	loop := control.New(g, rx, bus, bus, att)
	loop.Subscribe()
	logger.Printf("gimbal start, reference %s", s.Reference)
	if err := loop.Loop(ctx); err != nil {
		log.Fatal(err)
	}
}
