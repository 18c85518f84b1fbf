// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapturedPacketsTotal counts packets accepted onto the capture queue.
	CapturedPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktbridge_captured_packets_total",
			Help: "Total number of packets enqueued for relay",
		},
		[]string{"interface", "direction"},
	)

	// QueueOverflowsTotal counts capture attempts rejected by a full queue.
	QueueOverflowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pktbridge_queue_overflows_total",
			Help: "Total number of packets dropped because the capture queue was full",
		},
	)

	// QueueLength tracks the current capture queue backlog.
	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pktbridge_queue_length",
			Help: "Current number of records waiting in the capture queue",
		},
	)

	// DatagramsSentTotal counts datagrams delivered to the capture endpoint.
	DatagramsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pktbridge_datagrams_sent_total",
			Help: "Total number of relay datagrams sent",
		},
	)

	// LostBatchesTotal counts batches dropped on transport send errors.
	LostBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pktbridge_lost_batches_total",
			Help: "Total number of batches dropped because the transport send failed",
		},
	)

	// OversizeDropsTotal counts records whose frame alone exceeds the
	// datagram bound.
	OversizeDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pktbridge_oversize_drops_total",
			Help: "Total number of records dropped for exceeding the datagram size bound",
		},
	)
)
