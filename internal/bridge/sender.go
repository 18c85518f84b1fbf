package bridge

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"icc.tech/pktbridge/internal/core"
	"icc.tech/pktbridge/internal/metrics"
	"icc.tech/pktbridge/pkg/wire"
)

// DefaultWaitTimeout bounds how long the sender sleeps between stop-flag
// re-checks when no work arrives.
const DefaultWaitTimeout = time.Second

// relayCounters survive sender restarts; they are owned by the
// dispatcher and shared with the sender task.
type relayCounters struct {
	datagramsSent atomic.Uint64
	lostBatches   atomic.Uint64
	oversizeDrops atomic.Uint64
}

// sender is the single background task that drains the capture queue,
// batches records into datagrams and hands them to the transport. One
// per dispatcher; started on first enable, stopped when the last
// interface is disabled.
type sender struct {
	queue       *Queue
	registry    *Registry
	transport   *Transport
	counters    *relayCounters
	maxDatagram int
	waitTimeout time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func newSender(q *Queue, r *Registry, t *Transport, c *relayCounters, maxDatagram int, waitTimeout time.Duration) *sender {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &sender{
		queue:       q,
		registry:    r,
		transport:   t,
		counters:    c,
		maxDatagram: maxDatagram,
		waitTimeout: waitTimeout,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// start launches the sender goroutine.
func (s *sender) start() {
	go s.run()
}

// stop requests a cooperative shutdown and joins the sender. The task
// observes the request within one wait timeout and finishes any
// in-flight drain before exiting.
func (s *sender) stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *sender) run() {
	defer close(s.doneCh)
	slog.Info("bridge sender started", "wait_timeout", s.waitTimeout)

	timer := time.NewTimer(s.waitTimeout)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			slog.Info("bridge sender stopping",
				"datagrams_sent", s.counters.datagramsSent.Load(),
				"lost_batches", s.counters.lostBatches.Load(),
			)
			return
		case <-s.queue.Notify():
		case <-timer.C:
			// Liveness guard: re-check the stop flag and any records
			// enqueued between a drain and the notify read.
		}
		if recs := s.queue.Drain(); len(recs) > 0 {
			s.flush(recs)
		}
		metrics.QueueLength.Set(float64(s.queue.Len()))

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.waitTimeout)
	}
}

// flush encodes recs into size-bounded datagrams and sends each one.
// Counters are credited per record only after its datagram leaves the
// transport without error; a failed send drops the whole batch.
func (s *sender) flush(recs []core.CaptureRecord) {
	batcher := wire.NewBatcher(s.maxDatagram)
	var pending []core.CaptureRecord

	for i := range recs {
		rec := &recs[i]

		// Records for interfaces disabled since enqueue are skipped so
		// nothing leaks to the endpoint after a disable.
		if !s.registry.Enabled(rec.InterfaceID) {
			continue
		}

		f := wire.Frame{
			InterfaceID: rec.InterfaceID,
			Timestamp:   rec.Timestamp,
			Direction:   uint8(rec.Direction),
			Payload:     rec.Payload,
		}
		if !batcher.Fits(f) {
			pending = s.send(batcher.Flush(), pending)
		}
		if err := batcher.Add(f); err != nil {
			if errors.Is(err, wire.ErrFrameTooLarge) {
				s.counters.oversizeDrops.Add(1)
				metrics.OversizeDropsTotal.Inc()
				slog.Warn("dropping oversize record",
					"interface", rec.InterfaceID, "len", len(rec.Payload))
				continue
			}
			slog.Error("frame encoding failed", "error", err)
			continue
		}
		pending = append(pending, *rec)
	}
	s.send(batcher.Flush(), pending)
}

// send transmits one datagram and credits the records it carried.
// Returns the emptied pending slice for reuse.
func (s *sender) send(datagram []byte, pending []core.CaptureRecord) []core.CaptureRecord {
	if len(datagram) == 0 {
		return pending[:0]
	}
	if err := s.transport.Send(datagram); err != nil {
		s.counters.lostBatches.Add(1)
		metrics.LostBatchesTotal.Inc()
		slog.Warn("batch lost", "frames", len(pending), "error", err)
		return pending[:0]
	}
	s.counters.datagramsSent.Add(1)
	metrics.DatagramsSentTotal.Inc()
	for i := range pending {
		s.registry.AddSent(pending[i].InterfaceID, pending[i].Direction, uint64(len(pending[i].Payload)))
	}
	return pending[:0]
}
