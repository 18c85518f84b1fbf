package bridge

import (
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icc.tech/pktbridge/internal/core"
)

func TestParseEndpoint_UDP(t *testing.T) {
	ep, err := ParseEndpoint("127.0.0.1:9999")
	require.NoError(t, err)
	assert.Equal(t, "udp", ep.Network)
	assert.Equal(t, "127.0.0.1:9999", ep.Address)
}

func TestParseEndpoint_UnixPath(t *testing.T) {
	ep, err := ParseEndpoint("/tmp/bridge.sock")
	require.NoError(t, err)
	assert.Equal(t, "unixgram", ep.Network)
	assert.Equal(t, "/tmp/bridge.sock", ep.Address)
}

func TestParseEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want error
	}{
		{"empty", "", core.ErrBadEndpoint},
		{"no port", "127.0.0.1", core.ErrBadEndpoint},
		{"bad host", "999.999.999.999:9999", core.ErrBadEndpoint},
		{"hostname rejected", "capture.example.com:9999", core.ErrBadEndpoint},
		{"port zero", "127.0.0.1:0", core.ErrPortRange},
		{"port too high", "127.0.0.1:70000", core.ErrPortRange},
		{"non-numeric port", "127.0.0.1:abc", core.ErrBadEndpoint},
		{"path too long", "/" + strings.Repeat("x", 120), core.ErrPathTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEndpoint(tt.spec)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTransport_SendUDP(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	tr := NewTransport()
	require.NoError(t, tr.Configure(pc.LocalAddr().String()))
	assert.True(t, tr.Connected())

	require.NoError(t, tr.Send([]byte("hello")))

	buf := make([]byte, 64)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	tr.Teardown()
	assert.False(t, tr.Connected())
}

func TestTransport_SendUnixgram(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ep.sock")
	pc, err := net.ListenPacket("unixgram", sock)
	require.NoError(t, err)
	defer pc.Close()

	tr := NewTransport()
	require.NoError(t, tr.Configure(sock))

	require.NoError(t, tr.Send([]byte("dgram")))
	buf := make([]byte, 64)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "dgram", string(buf[:n]))
	tr.Teardown()
}

func TestTransport_DialFailure(t *testing.T) {
	tr := NewTransport()
	err := tr.Configure(filepath.Join(t.TempDir(), "missing.sock"))
	assert.ErrorIs(t, err, core.ErrSocket)
	assert.False(t, tr.Connected())
}

func TestTransport_SendErrorMarksDisconnected(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ep.sock")
	pc, err := net.ListenPacket("unixgram", sock)
	require.NoError(t, err)

	tr := NewTransport()
	require.NoError(t, tr.Configure(sock))

	// Close the peer; the next connected-datagram write fails.
	pc.Close()

	sendErr := tr.Send([]byte("lost"))
	if sendErr == nil {
		// Some kernels only surface the error on the second write.
		sendErr = tr.Send([]byte("lost"))
	}
	require.Error(t, sendErr)
	assert.False(t, tr.Connected(), "send failure must mark the transport disconnected")

	// No automatic reconnect: sends keep failing until Configure.
	assert.Error(t, tr.Send([]byte("still lost")))
}

func TestTransport_SendWhenNeverConfigured(t *testing.T) {
	tr := NewTransport()
	assert.Error(t, tr.Send([]byte("x")))
}

func TestTransport_TeardownIdempotent(t *testing.T) {
	tr := NewTransport()
	tr.Teardown()
	tr.Teardown()
	assert.False(t, tr.Connected())
}

func TestTransport_ReconfigureReplacesSocket(t *testing.T) {
	pc1, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc1.Close()
	pc2, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc2.Close()

	tr := NewTransport()
	require.NoError(t, tr.Configure(pc1.LocalAddr().String()))
	require.NoError(t, tr.Configure(pc2.LocalAddr().String()))
	require.NoError(t, tr.Send([]byte("second")))

	buf := make([]byte, 64)
	n, _, err := pc2.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "second", string(buf[:n]))
}
