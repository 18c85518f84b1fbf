// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"icc.tech/pktbridge/internal/bridge"
	"icc.tech/pktbridge/internal/core"
	"icc.tech/pktbridge/internal/source/pcapreplay"
)

var (
	replayFile      string
	replayInterface uint32
	replayDirection string
	replayInterval  time.Duration
)

// replayCmd runs without a daemon: it hosts its own dispatcher, replays
// a pcap file through it and reports the relay counters.
var replayCmd = &cobra.Command{
	Use:   "replay <endpoint>",
	Short: "Replay a pcap file through a local bridge",
	Long: `Replay a pcap capture file to an analyzer endpoint through an
in-process bridge, without a running daemon.

Useful for exercising an analyzer setup with recorded traffic:

  pktbridge replay --file trace.pcap --interface 1 127.0.0.1:9000`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runReplay(args[0]); err != nil {
			exitWithError("replay failed", err)
		}
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "pcap file to replay (required)")
	replayCmd.Flags().Uint32VarP(&replayInterface, "interface", "i", 0, "interface id stamped on relayed packets")
	replayCmd.Flags().StringVarP(&replayDirection, "direction", "d", "rx", "capture direction: rx or tx")
	replayCmd.Flags().DurationVar(&replayInterval, "interval", 0, "fixed delay between packets")
	replayCmd.MarkFlagRequired("file")
}

func runReplay(endpoint string) error {
	dir, err := parseDirection(replayDirection)
	if err != nil {
		return err
	}

	dispatcher := bridge.NewDispatcher(bridge.Config{})
	defer dispatcher.Shutdown()

	if err := dispatcher.Enable(replayInterface, endpoint); err != nil {
		return err
	}

	src, err := pcapreplay.New(pcapreplay.Config{
		FilePath:    replayFile,
		InterfaceID: replayInterface,
		Direction:   dir,
		Interval:    replayInterval,
	}, dispatcher)
	if err != nil {
		return err
	}

	count, err := src.Run(context.Background())
	if err != nil {
		return err
	}

	// Let the sender drain the tail of the queue before teardown.
	deadline := time.Now().Add(5 * time.Second)
	for dispatcher.BridgeStats().QueueLength > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	fmt.Printf("replayed %d packets from %s\n", count, replayFile)
	printJSON(dispatcher.BridgeStats())
	return nil
}

func parseDirection(s string) (core.Direction, error) {
	switch s {
	case "rx":
		return core.DirectionRX, nil
	case "tx":
		return core.DirectionTX, nil
	default:
		return 0, fmt.Errorf("invalid direction %q: want rx or tx", s)
	}
}
