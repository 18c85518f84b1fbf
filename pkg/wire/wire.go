// Package wire implements the bridge relay frame protocol.
//
// Each captured packet is serialised as one frame, big-endian, with a
// fixed 17-byte header immediately followed by the raw payload:
//
//	Offset  Size  Description
//	------  ----  -----------
//	0       4     Interface identifier (uint32)
//	4       4     Timestamp, integer seconds (uint32)
//	8       4     Timestamp, fractional microseconds (uint32)
//	12      4     Payload length (uint32)
//	16      1     Direction (0 = RX, 1 = TX)
//	17      …     Payload (payload-length bytes)
//
// Frames are packed back to back into datagrams with no datagram-level
// header. A receiver parses frames sequentially until the datagram is
// exhausted, treating the payload-length field as authoritative.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// HeaderLen is the fixed frame header size in bytes.
	HeaderLen = 17

	// MaxDatagramSize is the default datagram bound — the practical
	// payload ceiling of a UDP datagram over IPv4.
	MaxDatagramSize = 65507
)

var (
	// ErrFrameTooLarge means a single frame exceeds the datagram bound
	// on its own. The protocol has no fragmentation; the record is
	// dropped and counted by the caller.
	ErrFrameTooLarge = errors.New("wire: frame exceeds datagram bound")

	// ErrTruncatedFrame means a datagram ended mid-header or before
	// payload-length bytes of payload.
	ErrTruncatedFrame = errors.New("wire: truncated frame")
)

// Frame is one capture record in wire form.
type Frame struct {
	InterfaceID uint32
	Timestamp   time.Time
	Direction   uint8
	Payload     []byte
}

// Len returns the encoded size of the frame, header included.
func (f Frame) Len() int { return HeaderLen + len(f.Payload) }

// AppendFrame serialises f onto dst and returns the extended slice.
func AppendFrame(dst []byte, f Frame) []byte {
	var h [HeaderLen]byte
	binary.BigEndian.PutUint32(h[0:4], f.InterfaceID)
	binary.BigEndian.PutUint32(h[4:8], uint32(f.Timestamp.Unix()))
	binary.BigEndian.PutUint32(h[8:12], uint32(f.Timestamp.Nanosecond()/1_000))
	binary.BigEndian.PutUint32(h[12:16], uint32(len(f.Payload)))
	h[16] = f.Direction
	dst = append(dst, h[:]...)
	return append(dst, f.Payload...)
}

// EncodeFrame serialises f into a freshly allocated buffer.
func EncodeFrame(f Frame) []byte {
	return AppendFrame(make([]byte, 0, f.Len()), f)
}

// DecodeFrame parses one frame from the front of buf and returns it
// together with the remaining bytes. The returned payload aliases buf.
func DecodeFrame(buf []byte) (Frame, []byte, error) {
	if len(buf) < HeaderLen {
		return Frame{}, nil, fmt.Errorf("%w: %d header bytes", ErrTruncatedFrame, len(buf))
	}
	payloadLen := binary.BigEndian.Uint32(buf[12:16])
	if uint32(len(buf)-HeaderLen) < payloadLen {
		return Frame{}, nil, fmt.Errorf("%w: want %d payload bytes, have %d",
			ErrTruncatedFrame, payloadLen, len(buf)-HeaderLen)
	}
	sec := binary.BigEndian.Uint32(buf[4:8])
	usec := binary.BigEndian.Uint32(buf[8:12])
	f := Frame{
		InterfaceID: binary.BigEndian.Uint32(buf[0:4]),
		Timestamp:   time.Unix(int64(sec), int64(usec)*1_000),
		Direction:   buf[16],
		Payload:     buf[HeaderLen : HeaderLen+int(payloadLen)],
	}
	return f, buf[HeaderLen+int(payloadLen):], nil
}

// DecodeAll parses every frame in one datagram.
func DecodeAll(datagram []byte) ([]Frame, error) {
	var frames []Frame
	rest := datagram
	for len(rest) > 0 {
		f, r, err := DecodeFrame(rest)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		rest = r
	}
	return frames, nil
}

// Batcher packs frames into datagrams no larger than a fixed bound.
// It is not safe for concurrent use; the sender task is its only user.
type Batcher struct {
	max    int
	buf    []byte
	frames int
}

// NewBatcher returns a batcher with the given datagram bound.
// A non-positive bound falls back to MaxDatagramSize.
func NewBatcher(max int) *Batcher {
	if max <= 0 {
		max = MaxDatagramSize
	}
	return &Batcher{max: max, buf: make([]byte, 0, max)}
}

// Fits reports whether f can be added without exceeding the bound.
func (b *Batcher) Fits(f Frame) bool { return len(b.buf)+f.Len() <= b.max }

// Add appends f to the current datagram. It returns ErrFrameTooLarge
// if the frame alone exceeds the bound; callers must Flush first when
// Fits is false.
func (b *Batcher) Add(f Frame) error {
	if f.Len() > b.max {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, f.Len(), b.max)
	}
	b.buf = AppendFrame(b.buf, f)
	b.frames++
	return nil
}

// Flush returns the accumulated datagram and resets the batcher. The
// returned slice is owned by the caller; nil when nothing accumulated.
func (b *Batcher) Flush() []byte {
	if len(b.buf) == 0 {
		return nil
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	b.buf = b.buf[:0]
	b.frames = 0
	return out
}

// Len returns the accumulated datagram size in bytes.
func (b *Batcher) Len() int { return len(b.buf) }

// Frames returns the number of frames accumulated since the last flush.
func (b *Batcher) Frames() int { return b.frames }
