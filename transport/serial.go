//go:build !tinygo

package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"pico-gimbal/sbus"
)

// Mode is the SBUS line format: 100000 baud, 8 data bits, even parity, two
// stop bits. The signal is inverted and needs an external inverter.
var Mode = serial.Mode{
	BaudRate: BaudRate,
	DataBits: 8,
	Parity:   serial.EvenParity,
	StopBits: serial.TwoStopBits,
}

// Serial reads SBUS from a host serial port. A read timeout stands in for the
// idle-line interrupt.
type Serial struct {
	port serial.Port
	sink Sink
	idle time.Duration

	mu     sync.Mutex
	buf    []byte
	closed atomic.Bool
}

func Open(name string, idle time.Duration) (*Serial, error) {
	mode := Mode
	port, err := serial.Open(name, &mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	s, err := NewSerial(port, idle)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

func NewSerial(port serial.Port, idle time.Duration) (*Serial, error) {
	if idle <= 0 {
		idle = DefaultIdle
	}
	if err := port.SetReadTimeout(idle); err != nil {
		return nil, errors.Wrap(err, "set read timeout")
	}
	return &Serial{
		port: port,
		idle: idle,
		buf:  make([]byte, sbus.BufferSize),
	}, nil
}

func (s *Serial) Attach(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Restart implements sbus.Transport.
func (s *Serial) Restart(capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if capacity > 0 && capacity != len(s.buf) {
		s.buf = make([]byte, capacity)
	}
	return errors.Wrap(s.port.ResetInputBuffer(), "reset input buffer")
}

// Run pumps the port into the sink until ctx is done. Read errors go to the
// sink, which restarts reception; Run keeps going.
func (s *Serial) Run(ctx context.Context) error {
	pending := false
	for ctx.Err() == nil {
		s.mu.Lock()
		buf, sink := s.buf, s.sink
		s.mu.Unlock()
		if sink == nil {
			return errors.New("serial: no sink attached")
		}
		n, err := s.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil || s.closed.Load() {
				return nil
			}
			var pe *serial.PortError
			if errors.As(err, &pe) && pe.Code() == serial.PortClosed {
				return nil
			}
			pending = false
			if err := sink.OnError(); err != nil {
				return errors.Wrap(err, "restart after read error")
			}
			continue
		}
		if n > 0 {
			sink.Write(buf[:n])
			pending = true
			continue
		}
		if pending {
			sink.IdleLine()
			pending = false
		}
	}
	return nil
}

func (s *Serial) Close() error {
	s.closed.Store(true)
	return s.port.Close()
}
