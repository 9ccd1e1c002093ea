package proximity

import (
	"context"
	"fmt"
	"io"

	"github.com/mklimuk/protractor"
)

// transport is the capability set the driver needs from a bus.
type transport interface {
	available() int
	readByte() (byte, error)
	write(ctx context.Context, frame []byte) error
	request(ctx context.Context, n int) error
}

type noTransport struct{}

func (noTransport) available() int { return 0 }
func (noTransport) readByte() (byte, error) { return 0, ErrNotInitialized }
func (noTransport) write(context.Context, []byte) error { return ErrNotInitialized }
func (noTransport) request(context.Context, int) error { return ErrNotInitialized }

// streamTransport talks to the sensor over a serial line. Data is requested
// with a command frame and streamed back byte by byte.
type streamTransport struct {
	stream protractor.ByteStream
}

func (t *streamTransport) available() int {
	return t.stream.Buffered()
}

func (t *streamTransport) readByte() (byte, error) {
	return t.stream.ReadByte()
}

func (t *streamTransport) write(ctx context.Context, frame []byte) error {
	n, err := t.stream.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("short write: %d of %d bytes: %w", n, len(frame), io.ErrShortWrite)
	}
	return nil
}

// drainer is implemented by streams that can discard unread input.
type drainer interface {
	Drain()
}

// request drops anything left over from an earlier late response so that
// the first byte read is the count byte of this one.
func (t *streamTransport) request(ctx context.Context, n int) error {
	if d, ok := t.stream.(drainer); ok {
		d.Drain()
	}
	return t.write(ctx, requestFrame(n))
}

// busTransport talks to the sensor over I2C. A data request is a single block
// read; the bytes are then served one at a time like a stream.
type busTransport struct {
	bus     protractor.I2CBus
	address byte
	pending []byte
	pos     int
}

func (t *busTransport) available() int {
	return len(t.pending) - t.pos
}

func (t *busTransport) readByte() (byte, error) {
	if t.pos >= len(t.pending) {
		return 0, io.EOF
	}
	b := t.pending[t.pos]
	t.pos++
	return b, nil
}

func (t *busTransport) write(ctx context.Context, frame []byte) error {
	return t.bus.WriteToAddr(ctx, t.address, frame)
}

func (t *busTransport) request(ctx context.Context, n int) error {
	t.pending = t.pending[:0]
	t.pos = 0
	buf := make([]byte, n)
	err := t.bus.ReadFromAddr(ctx, t.address, buf)
	if err != nil {
		return err
	}
	t.pending = buf
	return nil
}
