//go:build tinygo

package transport

import (
	"context"
	"machine"
	"runtime"
	"time"

	"pico-gimbal/sbus"
)

// UART reads SBUS from an on-chip UART by polling its ring buffer and timing
// the gap after the last byte.
type UART struct {
	uart *machine.UART
	sink Sink
	idle time.Duration
	buf  [sbus.BufferSize]byte
}

func NewUART(uart *machine.UART, rx machine.Pin, idle time.Duration) (*UART, error) {
	if idle <= 0 {
		idle = DefaultIdle
	}
	if err := uart.Configure(machine.UARTConfig{BaudRate: BaudRate, RX: rx, TX: machine.NoPin}); err != nil {
		return nil, err
	}
	if err := uart.SetFormat(8, 2, machine.ParityEven); err != nil {
		return nil, err
	}
	return &UART{uart: uart, idle: idle}, nil
}

func (u *UART) Attach(sink Sink) {
	u.sink = sink
}

// Restart implements sbus.Transport.
func (u *UART) Restart(int) error {
	for u.uart.Buffered() > 0 {
		u.uart.ReadByte()
	}
	return nil
}

func (u *UART) Run(ctx context.Context) error {
	var last time.Time
	pending := false
	for ctx.Err() == nil {
		n := u.uart.Buffered()
		if n == 0 {
			if pending && time.Since(last) >= u.idle {
				u.sink.IdleLine()
				pending = false
			}
			runtime.Gosched()
			continue
		}
		n, _ = u.uart.Read(u.buf[:min(n, len(u.buf))])
		u.sink.Write(u.buf[:n])
		last = time.Now()
		pending = true
	}
	return nil
}
