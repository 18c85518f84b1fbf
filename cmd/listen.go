// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"icc.tech/pktbridge/internal/receiver"
)

var (
	listenPcapPath string
	listenQuiet    bool
)

// listenCmd is the analyzer side of the bridge: a debugging listener
// that decodes relayed datagrams.
var listenCmd = &cobra.Command{
	Use:   "listen <endpoint>",
	Short: "Listen for relayed packets and decode them",
	Long: `Bind the analyzer end of the bridge and decode incoming datagrams.

Prints each relayed packet as a hexdump and optionally writes the
payloads to a pcap file:

  pktbridge listen 127.0.0.1:9000 --pcap out.pcap`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runListen(args[0]); err != nil {
			exitWithError("listen failed", err)
		}
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenPcapPath, "pcap", "", "write decoded packets to a pcap file")
	listenCmd.Flags().BoolVarP(&listenQuiet, "quiet", "q", false, "suppress per-packet hexdump output")
}

func runListen(endpoint string) error {
	r, err := receiver.New(receiver.Config{
		Endpoint: endpoint,
		PcapPath: listenPcapPath,
		Hexdump:  !listenQuiet,
	}, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("listening on %s (ctrl-c to stop)\n", r.Addr())

	runErr := r.Run(ctx)
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	stats := r.Stats()
	fmt.Printf("\nreceived %d datagrams, %d packets, %d decode errors\n",
		stats.Datagrams, stats.Frames, stats.DecodeErrors)
	return nil
}
