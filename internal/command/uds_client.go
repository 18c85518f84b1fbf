package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// UDSClient is a JSON-RPC client over Unix Domain Socket.
type UDSClient struct {
	socketPath string
	timeout    time.Duration
}

// NewUDSClient creates a new UDS client.
func NewUDSClient(socketPath string, timeout time.Duration) *UDSClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UDSClient{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

// Call sends a command and waits for the response.
// Each call opens a fresh connection; the daemon handles
// short-lived CLI clients, not long sessions.
func (c *UDSClient) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	var rawParams json.RawMessage
	if params != nil {
		rawParams, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	reqID := fmt.Sprintf("%d", time.Now().UnixNano())
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  rawParams,
		ID:      reqID,
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed before response")
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(scanner.Bytes(), &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if id, ok := rpcResp.ID.(string); !ok || id != reqID {
		return nil, fmt.Errorf("response ID mismatch: got %v, want %s", rpcResp.ID, reqID)
	}

	return &Response{
		ID:     reqID,
		Result: rpcResp.Result,
		Error:  rpcResp.Error,
	}, nil
}

// callInto performs a Call and decodes the result into out.
func (c *UDSClient) callInto(ctx context.Context, method string, params, out interface{}) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("%s failed: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to re-encode result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// BridgeEnable enables capture on an interface towards the given endpoint.
func (c *UDSClient) BridgeEnable(ctx context.Context, interfaceID uint32, endpoint string) error {
	return c.callInto(ctx, "bridge_enable", EnableParams{InterfaceID: interfaceID, Endpoint: endpoint}, nil)
}

// BridgeDisable disables capture on an interface.
func (c *UDSClient) BridgeDisable(ctx context.Context, interfaceID uint32) error {
	return c.callInto(ctx, "bridge_disable", DisableParams{InterfaceID: interfaceID}, nil)
}

// BridgeStats queries per-interface and bridge-level statistics.
// interfaceID is optional; nil requests all interfaces.
func (c *UDSClient) BridgeStats(ctx context.Context, interfaceID *uint32) (*StatsResult, error) {
	var result StatsResult
	if err := c.callInto(ctx, "bridge_stats", StatsParams{InterfaceID: interfaceID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BridgeInterfaces lists the interfaces known to the daemon host.
func (c *UDSClient) BridgeInterfaces(ctx context.Context) (*InterfacesResult, error) {
	var result InterfacesResult
	if err := c.callInto(ctx, "bridge_interfaces", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DaemonStatus queries daemon liveness and uptime.
func (c *UDSClient) DaemonStatus(ctx context.Context) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := c.callInto(ctx, "daemon_status", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DaemonShutdown asks the daemon to shut down gracefully.
func (c *UDSClient) DaemonShutdown(ctx context.Context) error {
	return c.callInto(ctx, "daemon_shutdown", nil, nil)
}
