// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Administrative callers discriminate on these with
// errors.Is; fast-path conditions (overflow, unknown interface) are
// counted, not returned.
var (
	// Endpoint configuration errors — no state is mutated when these
	// are returned.
	ErrBadEndpoint = errors.New("pktbridge: malformed endpoint address")
	ErrPortRange   = errors.New("pktbridge: port out of range (1-65535)")
	ErrPathTooLong = errors.New("pktbridge: unix socket path too long")

	// Resource errors — partially created resources are rolled back
	// before these are returned.
	ErrSocket      = errors.New("pktbridge: socket creation failed")
	ErrSenderStart = errors.New("pktbridge: sender task start failed")

	// ErrNotRunning is returned by administrative calls that require a
	// started dispatcher.
	ErrNotRunning = errors.New("pktbridge: dispatcher not running")

	// ErrConfigInvalid marks an invalid daemon configuration file.
	ErrConfigInvalid = errors.New("pktbridge: invalid configuration")
)
