// Package main is the entry point for the pktbridge packet relay daemon.
package main

import (
	"fmt"
	"os"

	"icc.tech/pktbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
