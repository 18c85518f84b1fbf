// Package receiver implements a standalone listener for relayed capture
// traffic. It binds the far end of the bridge, decodes the framed
// datagrams, and writes the packets out as hexdump text or a pcap file
// for offline analysis.
package receiver

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"icc.tech/pktbridge/internal/bridge"
	"icc.tech/pktbridge/pkg/wire"
)

// Config configures a receiver run.
type Config struct {
	// Endpoint uses the same syntax the bridge accepts: host:port for
	// UDP or an absolute path for a unix datagram socket.
	Endpoint string `mapstructure:"endpoint"`

	// PcapPath, when set, appends decoded packets to a pcap file.
	PcapPath string `mapstructure:"pcap_path"`

	// Hexdump prints each decoded frame to the output writer.
	Hexdump bool `mapstructure:"hexdump"`
}

// Stats counts what the receiver has seen.
type Stats struct {
	Datagrams    uint64 `json:"datagrams"`
	Frames       uint64 `json:"frames"`
	DecodeErrors uint64 `json:"decode_errors"`
}

// Receiver listens for framed capture datagrams.
type Receiver struct {
	cfg  Config
	out  io.Writer
	conn net.PacketConn

	pcapFile   *os.File
	pcapWriter *pcapgo.Writer

	datagrams    atomic.Uint64
	frames       atomic.Uint64
	decodeErrors atomic.Uint64
}

// New creates a receiver bound to the configured endpoint. The output
// writer receives hexdump text when enabled.
func New(cfg Config, out io.Writer) (*Receiver, error) {
	endpoint, err := bridge.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	if endpoint.Network == "unixgram" {
		// A previous run may have left the socket file behind.
		if err := os.RemoveAll(endpoint.Address); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket %s: %w", endpoint.Address, err)
		}
	}

	conn, err := net.ListenPacket(endpoint.Network, endpoint.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Endpoint, err)
	}

	r := &Receiver{cfg: cfg, out: out, conn: conn}

	if cfg.PcapPath != "" {
		f, err := os.Create(cfg.PcapPath)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create pcap file %s: %w", cfg.PcapPath, err)
		}
		w := pcapgo.NewWriter(f)
		if err := w.WriteFileHeader(uint32(wire.MaxDatagramSize), layers.LinkTypeEthernet); err != nil {
			f.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to write pcap header: %w", err)
		}
		r.pcapFile = f
		r.pcapWriter = w
	}

	return r, nil
}

// Addr returns the bound local address.
func (r *Receiver) Addr() net.Addr { return r.conn.LocalAddr() }

// Run reads datagrams until the context is cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.close()

	// Unblock the read loop on cancellation.
	go func() {
		<-ctx.Done()
		r.conn.Close()
	}()

	slog.Info("receiver listening", "addr", r.conn.LocalAddr().String())

	buf := make([]byte, wire.MaxDatagramSize)
	for {
		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("read failed: %w", err)
		}

		r.datagrams.Add(1)
		r.handleDatagram(buf[:n])
	}
}

// handleDatagram decodes every frame in a datagram.
func (r *Receiver) handleDatagram(data []byte) {
	frames, err := wire.DecodeAll(data)
	if err != nil {
		r.decodeErrors.Add(1)
		slog.Warn("discarding malformed datagram",
			"size", len(data), "decoded", len(frames), "error", err)
	}

	for _, frame := range frames {
		r.frames.Add(1)

		if r.cfg.Hexdump {
			fmt.Fprintf(r.out, "interface=%d dir=%d ts=%s len=%d\n",
				frame.InterfaceID, frame.Direction,
				frame.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
				len(frame.Payload))
			fmt.Fprint(r.out, hex.Dump(frame.Payload))
		}

		if r.pcapWriter != nil {
			ci := gopacket.CaptureInfo{
				Timestamp:     frame.Timestamp,
				CaptureLength: len(frame.Payload),
				Length:        len(frame.Payload),
			}
			if err := r.pcapWriter.WritePacket(ci, frame.Payload); err != nil {
				slog.Error("failed to write pcap record", "error", err)
			}
		}
	}
}

// Stats returns a snapshot of the receive counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Datagrams:    r.datagrams.Load(),
		Frames:       r.frames.Load(),
		DecodeErrors: r.decodeErrors.Load(),
	}
}

func (r *Receiver) close() {
	r.conn.Close()
	if r.pcapFile != nil {
		if err := r.pcapFile.Close(); err != nil {
			slog.Error("failed to close pcap file", "error", err)
		}
		r.pcapFile = nil
	}
}
