package bridge

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icc.tech/pktbridge/internal/core"
	"icc.tech/pktbridge/pkg/wire"
)

// testListener is a local UDP capture endpoint.
type testListener struct {
	pc   net.PacketConn
	addr string
}

func newTestListener(t *testing.T) *testListener {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return &testListener{pc: pc, addr: pc.LocalAddr().String()}
}

// read returns the next datagram or fails the test after timeout.
func (l *testListener) read(t *testing.T, timeout time.Duration) []byte {
	t.Helper()
	buf := make([]byte, wire.MaxDatagramSize)
	require.NoError(t, l.pc.SetReadDeadline(time.Now().Add(timeout)))
	n, _, err := l.pc.ReadFrom(buf)
	require.NoError(t, err, "expected a relay datagram")
	return buf[:n]
}

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(Config{
		QueueSize:   100,
		WaitTimeout: 50 * time.Millisecond,
	})
}

func TestDispatcher_SingleRXPacket(t *testing.T) {
	l := newTestListener(t)
	d := newTestDispatcher()
	defer d.Shutdown()

	require.NoError(t, d.Enable(5, l.addr))

	payload := bytes.Repeat([]byte{0x42}, 64)
	ts := time.Unix(1735689600, 500_000*1_000)
	d.Capture(5, payload, ts, core.DirectionRX)

	datagram := l.read(t, 2*time.Second)
	require.Len(t, datagram, wire.HeaderLen+64)

	frames, err := wire.DecodeAll(datagram)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint32(5), frames[0].InterfaceID)
	assert.Equal(t, uint8(0), frames[0].Direction)
	assert.Equal(t, payload, frames[0].Payload)

	id := uint32(5)
	require.Eventually(t, func() bool {
		snap := d.Stats(&id)
		return len(snap) == 1 && snap[0].PacketsSentRX == 1 && snap[0].BytesSentRX == 64
	}, 2*time.Second, 10*time.Millisecond, "stats must reflect the sent record")
}

func TestDispatcher_InvalidEndpoint(t *testing.T) {
	d := newTestDispatcher()
	defer d.Shutdown()

	err := d.Enable(1, "999.999.999.999:70000")
	require.Error(t, err)
	assert.False(t, d.Running(), "no sender task may start on a config error")
	assert.Empty(t, d.Stats(nil), "no state may be mutated on a config error")
}

func TestDispatcher_CaptureBeforeEnableIsNoop(t *testing.T) {
	d := newTestDispatcher()
	d.Capture(1, []byte("x"), time.Now(), core.DirectionRX)
	assert.Zero(t, d.BridgeStats().QueueLength)
}

func TestDispatcher_DisabledInterfaceSkipped(t *testing.T) {
	l := newTestListener(t)
	d := newTestDispatcher()
	defer d.Shutdown()

	require.NoError(t, d.Enable(1, l.addr))

	// Interface 2 was never enabled; its packets must not reach the
	// endpoint or the queue.
	d.Capture(2, []byte("not for you"), time.Now(), core.DirectionRX)
	d.Capture(1, []byte("for you"), time.Now(), core.DirectionTX)

	frames, err := wire.DecodeAll(l.read(t, 2*time.Second))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint32(1), frames[0].InterfaceID)
	assert.Equal(t, uint8(1), frames[0].Direction)
}

func TestDispatcher_DisableIdempotent(t *testing.T) {
	l := newTestListener(t)
	d := newTestDispatcher()
	defer d.Shutdown()

	require.NoError(t, d.Enable(3, l.addr))
	d.Capture(3, []byte("abc"), time.Now(), core.DirectionRX)

	id := uint32(3)
	require.Eventually(t, func() bool {
		snap := d.Stats(&id)
		return len(snap) == 1 && snap[0].PacketsSentRX == 1
	}, 2*time.Second, 10*time.Millisecond)

	d.Disable(3)
	before := d.Stats(&id)

	d.Disable(3) // already disabled
	after := d.Stats(&id)

	assert.Equal(t, before, after, "second disable must not change anything")
	assert.False(t, after[0].Enabled)
	assert.False(t, d.Running())
}

func TestDispatcher_LastDisableStopsSender(t *testing.T) {
	l := newTestListener(t)
	d := newTestDispatcher()

	require.NoError(t, d.Enable(1, l.addr))
	require.NoError(t, d.Enable(2, l.addr))
	require.True(t, d.Running())

	d.Disable(1)
	assert.True(t, d.Running(), "one interface still enabled")

	d.Disable(2)
	assert.False(t, d.Running())
	assert.False(t, d.BridgeStats().Connected)
}

func TestDispatcher_ReenableAfterDisable(t *testing.T) {
	l := newTestListener(t)
	d := newTestDispatcher()
	defer d.Shutdown()

	require.NoError(t, d.Enable(1, l.addr))
	d.Disable(1)

	// Records captured while down are dropped, not replayed later.
	d.Capture(1, []byte("while down"), time.Now(), core.DirectionRX)

	require.NoError(t, d.Enable(1, l.addr))
	d.Capture(1, []byte("after up"), time.Now(), core.DirectionRX)

	frames, err := wire.DecodeAll(l.read(t, 2*time.Second))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("after up"), frames[0].Payload)
}

func TestDispatcher_ReconfigureEndpointDropsBacklog(t *testing.T) {
	l1 := newTestListener(t)
	l2 := newTestListener(t)
	d := NewDispatcher(Config{QueueSize: 100, WaitTimeout: time.Hour})
	defer d.Shutdown()

	require.NoError(t, d.Enable(1, l1.addr))

	// Re-enable against a different endpoint clears pending records:
	// the queue is not a replay log across a reconfigure.
	require.NoError(t, d.Enable(1, l2.addr))
	assert.Equal(t, l2.addr, d.BridgeStats().Endpoint)
}

func TestDispatcher_QueueOverflowCounted(t *testing.T) {
	l := newTestListener(t)
	d := NewDispatcher(Config{QueueSize: 10, WaitTimeout: time.Hour})
	require.NoError(t, d.Enable(1, l.addr))

	// Stop the sender from draining by shutting it down while keeping
	// the running gate open is not possible through the public API, so
	// exercise the queue bound directly through Capture bursts: the
	// sender may drain in between, making the exact count racy. Use
	// the queue directly for the deterministic bound property.
	d.Shutdown()

	q := NewQueue(10)
	for i := 0; i < 15; i++ {
		q.TryEnqueue(core.CaptureRecord{InterfaceID: 1, Payload: []byte{byte(i)}})
	}
	assert.Equal(t, uint64(5), q.Overflows())
}

func TestDispatcher_OversizeRecordDropped(t *testing.T) {
	l := newTestListener(t)
	d := NewDispatcher(Config{
		QueueSize:       100,
		MaxDatagramSize: 64,
		WaitTimeout:     50 * time.Millisecond,
	})
	defer d.Shutdown()

	require.NoError(t, d.Enable(1, l.addr))

	// Frame would be 17+100 bytes against a 64-byte bound: dropped.
	d.Capture(1, bytes.Repeat([]byte{1}, 100), time.Now(), core.DirectionRX)
	// A small record still goes through.
	d.Capture(1, []byte("ok"), time.Now(), core.DirectionRX)

	frames, err := wire.DecodeAll(l.read(t, 2*time.Second))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("ok"), frames[0].Payload)

	require.Eventually(t, func() bool {
		return d.BridgeStats().OversizeDrops == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcher_ManyPacketsBatched(t *testing.T) {
	l := newTestListener(t)
	d := newTestDispatcher()
	defer d.Shutdown()

	require.NoError(t, d.Enable(9, l.addr))

	const n = 50
	for i := 0; i < n; i++ {
		d.Capture(9, []byte{byte(i)}, time.Now(), core.DirectionRX)
	}

	got := 0
	deadline := time.Now().Add(3 * time.Second)
	for got < n && time.Now().Before(deadline) {
		frames, err := wire.DecodeAll(l.read(t, time.Second))
		require.NoError(t, err)
		prev := -1
		for _, f := range frames {
			assert.Greater(t, int(f.Payload[0]), prev, "order preserved within a drain")
			prev = int(f.Payload[0])
		}
		got += len(frames)
	}
	assert.Equal(t, n, got)

	st := d.BridgeStats()
	assert.GreaterOrEqual(t, st.DatagramsSent, uint64(1))
	assert.Zero(t, st.LostBatches)
}
