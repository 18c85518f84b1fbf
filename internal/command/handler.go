// Package command implements the local control plane: a JSON-RPC
// server over a Unix domain socket, the client the CLI uses to reach
// it, and the handler that maps methods onto the bridge dispatcher.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"icc.tech/pktbridge/internal/bridge"
	"icc.tech/pktbridge/internal/core"
)

// Handler handles control plane commands.
type Handler struct {
	dispatcher   *bridge.Dispatcher
	shutdownFunc func() // Called by daemon_shutdown to trigger graceful stop
	startTime    time.Time
}

// NewHandler creates a command handler bound to a dispatcher.
func NewHandler(d *bridge.Dispatcher) *Handler {
	return &Handler{
		dispatcher: d,
		startTime:  time.Now(),
	}
}

// SetShutdownFunc sets the callback invoked by the daemon_shutdown command.
func (h *Handler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"` // e.g. "bridge_enable"
	Params json.RawMessage `json:"params"` // command-specific parameters
	ID     string          `json:"id"`     // request ID for tracking
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes (JSON-RPC reserved range).
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Handle processes a command and returns a response.
func (h *Handler) Handle(ctx context.Context, cmd Command) Response {
	slog.Info("handling command", "method", cmd.Method, "id", cmd.ID)

	switch cmd.Method {
	case "bridge_enable":
		return h.handleEnable(cmd)
	case "bridge_disable":
		return h.handleDisable(cmd)
	case "bridge_stats":
		return h.handleStats(cmd)
	case "bridge_interfaces":
		return h.handleInterfaces(cmd)
	case "daemon_status":
		return h.handleDaemonStatus(cmd)
	case "daemon_shutdown":
		return h.handleDaemonShutdown(cmd)
	default:
		return errResponse(cmd.ID, ErrCodeMethodNotFound,
			fmt.Sprintf("method %q not found", cmd.Method))
	}
}

func errResponse(id string, code int, msg string) Response {
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: msg}}
}

// EnableParams represents parameters for bridge_enable.
type EnableParams struct {
	InterfaceID uint32 `json:"interface_id"`
	Endpoint    string `json:"endpoint"`
}

func (h *Handler) handleEnable(cmd Command) Response {
	var params EnableParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	if err := h.dispatcher.Enable(params.InterfaceID, params.Endpoint); err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, err.Error())
	}
	return Response{ID: cmd.ID, Result: map[string]any{
		"interface_id": params.InterfaceID,
		"endpoint":     params.Endpoint,
	}}
}

// DisableParams represents parameters for bridge_disable.
type DisableParams struct {
	InterfaceID uint32 `json:"interface_id"`
}

func (h *Handler) handleDisable(cmd Command) Response {
	var params DisableParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	h.dispatcher.Disable(params.InterfaceID)
	return Response{ID: cmd.ID, Result: map[string]any{
		"interface_id": params.InterfaceID,
	}}
}

// StatsParams represents parameters for bridge_stats. InterfaceID nil
// means all interfaces.
type StatsParams struct {
	InterfaceID *uint32 `json:"interface_id,omitempty"`
}

// StatsResult is the bridge_stats payload.
type StatsResult struct {
	Interfaces []core.InterfaceStats `json:"interfaces"`
	Bridge     core.BridgeStats      `json:"bridge"`
}

func (h *Handler) handleStats(cmd Command) Response {
	var params StatsParams
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &params); err != nil {
			return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	return Response{ID: cmd.ID, Result: StatsResult{
		Interfaces: h.dispatcher.Stats(params.InterfaceID),
		Bridge:     h.dispatcher.BridgeStats(),
	}}
}

// InterfacesResult is the bridge_interfaces payload.
type InterfacesResult struct {
	Interfaces []core.InterfaceInfo `json:"interfaces"`
}

func (h *Handler) handleInterfaces(cmd Command) Response {
	ifaces, err := net.Interfaces()
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("list interfaces: %v", err))
	}
	out := make([]core.InterfaceInfo, 0, len(ifaces))
	for _, ifc := range ifaces {
		out = append(out, core.InterfaceInfo{
			InterfaceID: uint32(ifc.Index),
			Name:        ifc.Name,
		})
	}
	return Response{ID: cmd.ID, Result: InterfacesResult{Interfaces: out}}
}

func (h *Handler) handleDaemonStatus(cmd Command) Response {
	return Response{ID: cmd.ID, Result: map[string]any{
		"running":        true,
		"bridge_active":  h.dispatcher.Running(),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	}}
}

func (h *Handler) handleDaemonShutdown(cmd Command) Response {
	if h.shutdownFunc == nil {
		return errResponse(cmd.ID, ErrCodeInternalError, "shutdown not wired")
	}
	// Respond first, then shut down: the caller's connection would be
	// torn down with the listener otherwise.
	go h.shutdownFunc()
	return Response{ID: cmd.ID, Result: map[string]any{"stopping": true}}
}
