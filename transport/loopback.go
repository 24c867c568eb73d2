package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pico-gimbal/sbus"
)

// Loopback plays the radio: it encodes a frame every period and hands it to
// the sink as one burst. Transmission can be suppressed to simulate a lost
// link.
type Loopback struct {
	period time.Duration

	mu        sync.Mutex
	sink      Sink
	frame     sbus.Frame
	dropUntil time.Time
	now       func() time.Time

	sent     atomic.Uint32
	restarts atomic.Uint32
}

func NewLoopback(period time.Duration) *Loopback {
	if period <= 0 {
		period = DefaultFramePeriod
	}
	return &Loopback{period: period, now: time.Now}
}

// Attach connects the sink. The receiver is built around its transport, so
// this happens after both exist.
func (l *Loopback) Attach(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = s
}

func (l *Loopback) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Loopback) SetFrame(f sbus.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = f
}

func (l *Loopback) SetChannel(i int, v uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= 0 && i < sbus.NumChannels {
		l.frame.Channels[i] = v & 0x07FF
	}
}

// Drop suppresses transmission for d from now.
func (l *Loopback) Drop(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropUntil = l.now().Add(d)
}

// Restart implements sbus.Transport.
func (l *Loopback) Restart(int) error {
	l.restarts.Add(1)
	return nil
}

// Transmit sends the current frame once unless a dropout is active.
func (l *Loopback) Transmit() bool {
	l.mu.Lock()
	sink := l.sink
	f := l.frame
	dropped := l.now().Before(l.dropUntil)
	l.mu.Unlock()
	if sink == nil || dropped {
		return false
	}
	b := sbus.Encode(f)
	sink.Write(b[:])
	sink.IdleLine()
	l.sent.Add(1)
	return true
}

func (l *Loopback) Run(ctx context.Context) error {
	tick := time.NewTicker(l.period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			l.Transmit()
		}
	}
}

func (l *Loopback) Sent() uint32 { return l.sent.Load() }

func (l *Loopback) Restarts() uint32 { return l.restarts.Load() }
