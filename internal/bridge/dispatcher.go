package bridge

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"icc.tech/pktbridge/internal/core"
	"icc.tech/pktbridge/internal/metrics"
	"icc.tech/pktbridge/pkg/wire"
)

// Config tunes a Dispatcher.
type Config struct {
	// QueueSize bounds the capture queue. 0 = DefaultQueueSize.
	QueueSize int `mapstructure:"queue_size"`
	// MaxDatagramSize bounds each relay datagram. 0 = wire.MaxDatagramSize.
	MaxDatagramSize int `mapstructure:"max_datagram_size"`
	// WaitTimeout bounds the sender's stop-flag re-check interval.
	// 0 = DefaultWaitTimeout.
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

// Dispatcher is the entry point for both the packet-processing fast
// path (Capture) and the administrative plane (Enable, Disable, Stats).
// All state is owned by the instance; tests construct independent
// dispatchers instead of sharing process-wide singletons.
type Dispatcher struct {
	cfg       Config
	registry  *Registry
	queue     *Queue
	transport *Transport

	// mu serialises administrative calls and sender start/stop. The
	// fast path never takes it.
	mu       sync.Mutex
	sender   *sender
	counters relayCounters

	// running is the fast-path gate: true only while the sender task is
	// up and the transport configured.
	running atomic.Bool
}

// NewDispatcher creates a dispatcher with its own registry, queue and
// transport. The sender task is not started until the first Enable.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.MaxDatagramSize <= 0 {
		cfg.MaxDatagramSize = wire.MaxDatagramSize
	}
	return &Dispatcher{
		cfg:       cfg,
		registry:  NewRegistry(),
		queue:     NewQueue(cfg.QueueSize),
		transport: NewTransport(),
	}
}

// Capture relays one observed packet. It is the fast path: one atomic
// load, one map lookup, and — only for enabled interfaces — one payload
// copy plus a short-lived queue lock. It never blocks on I/O and never
// returns an error; overflow and unknown-interface conditions are
// absorbed and counted.
func (d *Dispatcher) Capture(interfaceID uint32, data []byte, ts time.Time, dir core.Direction) {
	if !d.running.Load() {
		return
	}
	if !d.registry.Enabled(interfaceID) {
		return
	}

	// The caller's buffer is only valid for the duration of the call;
	// copy before the record crosses into the queue.
	payload := make([]byte, len(data))
	copy(payload, data)

	if d.queue.TryEnqueue(core.CaptureRecord{
		InterfaceID: interfaceID,
		Payload:     payload,
		Timestamp:   ts,
		Direction:   dir,
	}) {
		metrics.CapturedPacketsTotal.WithLabelValues(
			strconv.FormatUint(uint64(interfaceID), 10), dir.String()).Inc()
	} else {
		metrics.QueueOverflowsTotal.Inc()
	}
}

// Enable registers and enables capture on interfaceID, relaying to
// endpointSpec. The first enabled interface configures the transport
// and starts the sender task; a later Enable with a different endpoint
// reconfigures the transport (pending records are discarded — the
// queue is not a replay log).
func (d *Dispatcher) Enable(interfaceID uint32, endpointSpec string) error {
	ep, err := ParseEndpoint(endpointSpec)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	needConfigure := !d.transport.Connected() || d.transport.Endpoint() != ep
	if needConfigure {
		if err := d.transport.Configure(endpointSpec); err != nil {
			return err
		}
		d.queue.Clear()
	}

	if d.sender == nil {
		d.sender = newSender(d.queue, d.registry, d.transport, &d.counters, d.cfg.MaxDatagramSize, d.cfg.WaitTimeout)
		d.sender.start()
	}

	d.registry.GetOrCreate(interfaceID)
	d.registry.SetEnabled(interfaceID, true)
	d.running.Store(true)

	slog.Info("bridge enabled", "interface", interfaceID, "endpoint", endpointSpec)
	return nil
}

// Disable marks interfaceID disabled. Idempotent: disabling an unknown
// or already-disabled interface succeeds without side effects. When no
// interfaces remain enabled the sender task is joined and the transport
// torn down.
func (d *Dispatcher) Disable(interfaceID uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.registry.SetEnabled(interfaceID, false)
	if d.registry.AnyEnabled() {
		return
	}
	d.stopLocked()
	slog.Info("bridge disabled", "interface", interfaceID)
}

// Shutdown stops the sender task and tears down the transport without
// touching per-interface enabled flags. Idempotent.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// stopLocked joins the sender before releasing the transport so no
// send is in flight on a closed socket. Caller holds d.mu.
func (d *Dispatcher) stopLocked() {
	d.running.Store(false)
	if d.sender != nil {
		d.sender.stop()
		d.sender = nil
	}
	d.transport.Teardown()
	d.queue.Clear()
}

// Stats returns copy-out snapshots for one interface (filter non-nil)
// or all known interfaces.
func (d *Dispatcher) Stats(filter *uint32) []core.InterfaceStats {
	return d.registry.Snapshot(filter)
}

// BridgeStats returns dispatcher-wide counters.
func (d *Dispatcher) BridgeStats() core.BridgeStats {
	st := core.BridgeStats{
		QueueLength:    d.queue.Len(),
		QueueCapacity:  d.queue.Bound(),
		QueueOverflows: d.queue.Overflows(),
		DatagramsSent:  d.counters.datagramsSent.Load(),
		LostBatches:    d.counters.lostBatches.Load(),
		OversizeDrops:  d.counters.oversizeDrops.Load(),
		Connected:      d.transport.Connected(),
	}
	if ep := d.transport.Endpoint(); ep.Network != "" {
		st.Endpoint = ep.Address
	}
	return st
}

// Running reports whether the sender task is up.
func (d *Dispatcher) Running() bool { return d.running.Load() }

// String identifies the dispatcher in logs.
func (d *Dispatcher) String() string {
	return fmt.Sprintf("dispatcher(queue=%d)", d.queue.Bound())
}
