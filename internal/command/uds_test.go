package command

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icc.tech/pktbridge/internal/bridge"
)

func startTestServer(t *testing.T) (*UDSClient, *bridge.Dispatcher) {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "pktbridge.sock")
	dispatcher := bridge.NewDispatcher(bridge.Config{
		QueueSize:   100,
		WaitTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(dispatcher.Shutdown)

	server := NewUDSServer(socketPath, NewHandler(dispatcher))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "socket never appeared")

	return NewUDSClient(socketPath, 2*time.Second), dispatcher
}

func testEndpoint(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn.LocalAddr().String()
}

func TestUDS_EnableStatsDisable(t *testing.T) {
	client, dispatcher := startTestServer(t)
	ctx := context.Background()
	endpoint := testEndpoint(t)

	require.NoError(t, client.BridgeEnable(ctx, 3, endpoint))
	assert.True(t, dispatcher.Running())

	stats, err := client.BridgeStats(ctx, nil)
	require.NoError(t, err)
	require.Len(t, stats.Interfaces, 1)
	assert.Equal(t, uint32(3), stats.Interfaces[0].InterfaceID)
	assert.True(t, stats.Interfaces[0].Enabled)
	assert.True(t, stats.Bridge.Connected)
	assert.Equal(t, endpoint, stats.Bridge.Endpoint)

	require.NoError(t, client.BridgeDisable(ctx, 3))
	assert.False(t, dispatcher.Running())
}

func TestUDS_EnableBadEndpoint(t *testing.T) {
	client, dispatcher := startTestServer(t)

	err := client.BridgeEnable(context.Background(), 1, "999.999.999.999:70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bridge_enable failed")
	assert.False(t, dispatcher.Running())
}

func TestUDS_StatsFilter(t *testing.T) {
	client, _ := startTestServer(t)
	ctx := context.Background()
	endpoint := testEndpoint(t)

	require.NoError(t, client.BridgeEnable(ctx, 1, endpoint))
	require.NoError(t, client.BridgeEnable(ctx, 2, endpoint))

	id := uint32(2)
	stats, err := client.BridgeStats(ctx, &id)
	require.NoError(t, err)
	require.Len(t, stats.Interfaces, 1)
	assert.Equal(t, uint32(2), stats.Interfaces[0].InterfaceID)
}

func TestUDS_Interfaces(t *testing.T) {
	client, _ := startTestServer(t)

	result, err := client.BridgeInterfaces(context.Background())
	require.NoError(t, err)
	// Every host has at least a loopback interface.
	assert.NotEmpty(t, result.Interfaces)
}

func TestUDS_DaemonStatus(t *testing.T) {
	client, _ := startTestServer(t)

	status, err := client.DaemonStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, status["running"])
	assert.Equal(t, false, status["bridge_active"])
}

func TestUDS_UnknownMethod(t *testing.T) {
	client, _ := startTestServer(t)

	resp, err := client.Call(context.Background(), "no_such_method", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestUDS_MalformedRequest(t *testing.T) {
	client, _ := startTestServer(t)

	conn, err := net.Dial("unix", client.socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "parse error")
}
