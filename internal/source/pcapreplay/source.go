// Package pcapreplay feeds packets from a pcap capture file into the
// bridge dispatcher, standing in for a live forwarding path.
package pcapreplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/gopacket/pcapgo"

	"icc.tech/pktbridge/internal/core"
)

// CaptureSink receives replayed packets. *bridge.Dispatcher satisfies it.
type CaptureSink interface {
	Capture(interfaceID uint32, data []byte, ts time.Time, dir core.Direction)
}

// Config configures a replay run.
type Config struct {
	FilePath    string         `mapstructure:"file_path"`
	InterfaceID uint32         `mapstructure:"interface_id"`
	Direction   core.Direction `mapstructure:"direction"`

	// Interval is the fixed delay between packets. Zero replays
	// as fast as the sink accepts.
	Interval time.Duration `mapstructure:"interval"`
}

// Source replays a pcap file into a capture sink.
type Source struct {
	cfg  Config
	sink CaptureSink
}

// New creates a replay source.
func New(cfg Config, sink CaptureSink) (*Source, error) {
	if cfg.FilePath == "" {
		return nil, errors.New("file_path is required")
	}
	if sink == nil {
		return nil, errors.New("capture sink is required")
	}
	return &Source{cfg: cfg, sink: sink}, nil
}

// Run replays the whole file, preserving the original record timestamps
// in the capture headers. Returns the number of packets replayed.
func (s *Source) Run(ctx context.Context) (int, error) {
	f, err := os.Open(s.cfg.FilePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open pcap file %s: %w", s.cfg.FilePath, err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("failed to parse pcap file %s: %w", s.cfg.FilePath, err)
	}

	slog.Info("replaying pcap file",
		"file", s.cfg.FilePath,
		"interface", s.cfg.InterfaceID,
		"direction", s.cfg.Direction.String(),
	)

	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		data, ci, err := reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return count, fmt.Errorf("failed to read packet %d: %w", count+1, err)
		}

		s.sink.Capture(s.cfg.InterfaceID, data, ci.Timestamp, s.cfg.Direction)
		count++

		if s.cfg.Interval > 0 {
			select {
			case <-time.After(s.cfg.Interval):
			case <-ctx.Done():
				return count, ctx.Err()
			}
		}
	}

	slog.Info("replay finished", "file", s.cfg.FilePath, "packets", count)
	return count, nil
}
