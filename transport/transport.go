// Package transport moves SBUS bytes from a serial line into sbus.Receiver.
package transport

import "time"

const (
	BaudRate = 100000

	// DefaultIdle is the line silence that ends a burst: a bit over two
	// byte times at 100000 baud 8E2.
	DefaultIdle = 2 * time.Millisecond

	// DefaultFramePeriod is the transmit interval of a radio in fast mode.
	DefaultFramePeriod = 7 * time.Millisecond
)

// Sink receives bytes and line events, normally an *sbus.Receiver.
type Sink interface {
	Write(p []byte) (int, error)
	IdleLine() bool
	OnError() error
}
