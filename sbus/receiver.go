package sbus

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultOfflineThreshold = 100 * time.Millisecond

	// flagAssumeConnected is reported until the first frame arrives.
	flagAssumeConnected = 0xFF
)

// Transport is the serial driver underneath the receiver.
type Transport interface {
	// Restart re-arms reception from a clean state with the given buffer capacity.
	Restart(capacity int) error
}

// LinkState is an immutable snapshot of the radio link.
type LinkState struct {
	Channels  [NumChannels]uint16
	Flag      byte
	LastFrame time.Time
	Type      ReceiverType
	Frames    uint32

	// Classified is set once Type is final: pinned, or decided from the
	// first frame.
	Classified bool
}

type Option func(*Receiver)

func WithClock(now func() time.Time) Option {
	return func(r *Receiver) { r.now = now }
}

func WithOfflineThreshold(d time.Duration) Option {
	return func(r *Receiver) { r.threshold.Store(int64(d)) }
}

// WithRestartInterval bounds how often RestartIfOffline restarts the transport.
func WithRestartInterval(d time.Duration) Option {
	return func(r *Receiver) { r.restartInterval.Store(int64(d)) }
}

// WithReceiverType pins the receiver model instead of classifying it from the
// first frame.
func WithReceiverType(t ReceiverType) Option {
	return func(r *Receiver) { r.pinned = t }
}

// Receiver owns the double buffer and publishes decoded frames. Only the
// transport side calls Write, IdleLine, OnReceiveComplete and OnError; every
// other reader goes through State.
type Receiver struct {
	mu              sync.Mutex
	buf             DoubleBuffer
	transport       Transport
	now             func() time.Time
	threshold       atomic.Int64 // time.Duration
	restartInterval atomic.Int64 // time.Duration
	pinned          ReceiverType
	lastRestart     time.Time
	state           atomic.Pointer[LinkState]
	drops           atomic.Uint32
	restarts        atomic.Uint32
}

func NewReceiver(t Transport, opts ...Option) *Receiver {
	r := &Receiver{
		transport: t,
		now:       time.Now,
	}
	r.threshold.Store(int64(DefaultOfflineThreshold))
	for _, opt := range opts {
		opt(r)
	}
	if r.restartInterval.Load() == 0 {
		r.restartInterval.Store(r.threshold.Load())
	}
	r.state.Store(&LinkState{
		Flag:       flagAssumeConnected,
		LastFrame:  r.now(),
		Type:       r.pinned,
		Classified: r.pinned != ReceiverUnknown,
	})
	return r
}

// SetTimeouts changes the offline threshold and the restart interval of a
// running receiver. A zero restart interval follows the threshold.
func (r *Receiver) SetTimeouts(threshold, restartInterval time.Duration) {
	if restartInterval == 0 {
		restartInterval = threshold
	}
	r.threshold.Store(int64(threshold))
	r.restartInterval.Store(int64(restartInterval))
}

// SetReceiverType pins the receiver model at runtime. ReceiverUnknown only
// unpins: the current classification stays.
func (r *Receiver) SetReceiverType(t ReceiverType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned = t
	if t == ReceiverUnknown {
		return
	}
	next := *r.state.Load()
	next.Type = t
	next.Classified = true
	r.state.Store(&next)
}

// Write feeds received bytes into the half the transport is filling.
func (r *Receiver) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.Write(p)
	return len(p), nil
}

// IdleLine signals the end of a burst, completing it with the byte count
// written since the last swap.
func (r *Receiver) IdleLine() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete(r.buf.Transferred())
}

// OnReceiveComplete swaps the buffers and decodes the one just filled when n
// is exactly one frame. Any other length is dropped without touching the state.
func (r *Receiver) OnReceiveComplete(n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete(n)
}

func (r *Receiver) complete(n int) bool {
	ready, ok := r.buf.Swap(n)
	if !ok {
		r.drops.Add(1)
		return false
	}
	f := Decode(ready)
	prev := r.state.Load()
	next := &LinkState{
		Channels:   f.Channels,
		Flag:       f.Flag,
		LastFrame:  r.now(),
		Type:       prev.Type,
		Frames:     prev.Frames + 1,
		Classified: true,
	}
	if !prev.Classified {
		next.Type = Classify(f.Flag)
	}
	r.state.Store(next)
	return true
}

// OnError handles a line or bit error by restarting reception.
func (r *Receiver) OnError() error {
	return r.Restart()
}

// Restart drops whatever is buffered and restarts the transport.
func (r *Receiver) Restart() error {
	r.mu.Lock()
	r.buf.Reset()
	r.lastRestart = r.now()
	r.mu.Unlock()
	r.restarts.Add(1)
	if r.transport == nil {
		return nil
	}
	return r.transport.Restart(BufferSize)
}

// RestartIfOffline restarts the transport when the link is offline, at most
// once per restart interval.
func (r *Receiver) RestartIfOffline() (bool, error) {
	if !r.IsOffline() {
		return false, nil
	}
	r.mu.Lock()
	due := r.lastRestart.IsZero() || r.now().Sub(r.lastRestart) >= time.Duration(r.restartInterval.Load())
	r.mu.Unlock()
	if !due {
		return false, nil
	}
	return true, r.Restart()
}

// IsOffline reports whether no frame has been decoded for the offline
// threshold. Before the first frame the boot time stands in for the last
// frame, so a freshly started link is reported online.
func (r *Receiver) IsOffline() bool {
	return r.now().Sub(r.state.Load().LastFrame) >= time.Duration(r.threshold.Load())
}

func (r *Receiver) State() LinkState { return *r.state.Load() }

func (r *Receiver) Channel(i int) uint16 {
	if i < 0 || i >= NumChannels {
		return 0
	}
	return r.state.Load().Channels[i]
}

func (r *Receiver) ReceiverType() ReceiverType { return r.state.Load().Type }

func (r *Receiver) Profile() Profile { return ProfileFor(r.ReceiverType()) }

func (r *Receiver) Drops() uint32 { return r.drops.Load() }

func (r *Receiver) Restarts() uint32 { return r.restarts.Load() }

// Active reports which half the transport is filling.
func (r *Receiver) Active() Half {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Active()
}
