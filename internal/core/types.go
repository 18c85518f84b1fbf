// Package core defines core data structures with zero external dependencies.
package core

import "time"

// Direction marks which side of the forwarding pipeline a packet was
// observed on.
type Direction uint8

const (
	// DirectionRX is a packet entering the forwarding pipeline.
	DirectionRX Direction = 0
	// DirectionTX is a packet leaving the forwarding pipeline.
	DirectionTX Direction = 1
)

// String returns "rx" or "tx".
func (d Direction) String() string {
	if d == DirectionTX {
		return "tx"
	}
	return "rx"
}

// CaptureRecord is one observed packet queued for relay to the capture
// endpoint. Payload is an owned copy — the fast-path caller's buffer is
// not retained. Ownership moves from the producer to the capture queue
// on enqueue and to the sender task on drain.
type CaptureRecord struct {
	InterfaceID uint32
	Payload     []byte
	Timestamp   time.Time
	Direction   Direction
}

// InterfaceStats is a copy-out snapshot of one registry entry.
type InterfaceStats struct {
	InterfaceID   uint32 `json:"interface_id"`
	Enabled       bool   `json:"enabled"`
	PacketsSentRX uint64 `json:"packets_sent_rx"`
	BytesSentRX   uint64 `json:"bytes_sent_rx"`
	PacketsSentTX uint64 `json:"packets_sent_tx"`
	BytesSentTX   uint64 `json:"bytes_sent_tx"`
}

// BridgeStats aggregates dispatcher-wide counters.
type BridgeStats struct {
	QueueLength    int    `json:"queue_length"`
	QueueCapacity  int    `json:"queue_capacity"`
	QueueOverflows uint64 `json:"queue_overflows"`
	DatagramsSent  uint64 `json:"datagrams_sent"`
	LostBatches    uint64 `json:"lost_batches"`
	OversizeDrops  uint64 `json:"oversize_drops"`
	Connected      bool   `json:"connected"`
	Endpoint       string `json:"endpoint,omitempty"`
}

// InterfaceInfo pairs an interface identifier with its host-reported name.
type InterfaceInfo struct {
	InterfaceID uint32 `json:"interface_id"`
	Name        string `json:"name"`
}
