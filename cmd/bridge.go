// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"icc.tech/pktbridge/internal/command"
)

const clientTimeout = 10 * time.Second

var enableCmd = &cobra.Command{
	Use:   "enable <interface-id> <endpoint>",
	Short: "Enable packet relay on an interface",
	Long: `Enable packet relay on a forwarding interface.

The endpoint is either host:port for UDP (e.g. 192.0.2.1:9000) or an
absolute path for a unix datagram socket (e.g. /tmp/bridge.sock).
Enabling the first interface connects the bridge and starts the
background sender.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseInterfaceID(args[0])
		client := command.NewUDSClient(socketPath, clientTimeout)

		if err := client.BridgeEnable(context.Background(), id, args[1]); err != nil {
			exitWithError("enable failed", err)
		}
		fmt.Printf("interface %d enabled -> %s\n", id, args[1])
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <interface-id>",
	Short: "Disable packet relay on an interface",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseInterfaceID(args[0])
		client := command.NewUDSClient(socketPath, clientTimeout)

		if err := client.BridgeDisable(context.Background(), id); err != nil {
			exitWithError("disable failed", err)
		}
		fmt.Printf("interface %d disabled\n", id)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [interface-id]",
	Short: "Show bridge statistics",
	Long: `Query the pktbridge daemon for relay statistics.

Shows per-interface packet/byte counters and bridge-level queue,
datagram and loss counters. An optional interface id restricts the
output to one interface.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var filter *uint32
		if len(args) == 1 {
			id := parseInterfaceID(args[0])
			filter = &id
		}

		client := command.NewUDSClient(socketPath, clientTimeout)
		stats, err := client.BridgeStats(context.Background(), filter)
		if err != nil {
			exitWithError("failed to query stats", err)
		}
		printJSON(stats)
	},
}

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List interfaces known to the daemon host",
	Run: func(cmd *cobra.Command, args []string) {
		client := command.NewUDSClient(socketPath, clientTimeout)
		result, err := client.BridgeInterfaces(context.Background())
		if err != nil {
			exitWithError("failed to list interfaces", err)
		}
		printJSON(result)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Run: func(cmd *cobra.Command, args []string) {
		client := command.NewUDSClient(socketPath, clientTimeout)
		status, err := client.DaemonStatus(context.Background())
		if err != nil {
			exitWithError("failed to query status", err)
		}
		printJSON(status)
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Shut down the daemon gracefully",
	Run: func(cmd *cobra.Command, args []string) {
		client := command.NewUDSClient(socketPath, clientTimeout)
		if err := client.DaemonShutdown(context.Background()); err != nil {
			exitWithError("shutdown failed", err)
		}
		fmt.Println("shutdown requested")
	},
}

func parseInterfaceID(arg string) uint32 {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		exitWithError(fmt.Sprintf("invalid interface id %q", arg), err)
	}
	return uint32(id)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}
	fmt.Println(string(data))
}
