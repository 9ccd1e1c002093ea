package serial

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/mklimuk/protractor"
	"github.com/mklimuk/protractor/snsctx"
)

// DefaultBaudRate matches the sensor's factory setting.
const DefaultBaudRate = 9600

// pollTimeout bounds how long Buffered may block waiting for the line.
const pollTimeout = time.Millisecond

var _ protractor.ByteStream = &Port{}

// serialPort is the part of go.bug.st/serial.Port the stream needs.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Port turns a serial line into a protractor.ByteStream. The OS driver does
// not report how many bytes are waiting, so Buffered performs a short read and
// keeps what arrived until it is consumed with ReadByte.
type Port struct {
	port    serialPort
	ctx     context.Context
	scratch [64]byte
	pending []byte
	err     error
}

// Open opens the serial device at path.
func Open(ctx context.Context, path string, opts PortOptions) (*Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", path, err)
	}
	p, err := NewPort(ctx, port)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return p, nil
}

// NewPort wraps an already open port. ctx only carries logging preferences.
func NewPort(ctx context.Context, port serialPort) (*Port, error) {
	err := port.SetReadTimeout(pollTimeout)
	if err != nil {
		return nil, fmt.Errorf("could not set read timeout: %w", err)
	}
	return &Port{port: port, ctx: ctx}, nil
}

// List returns the names of the serial ports present on the system.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("could not list serial ports: %w", err)
	}
	return ports, nil
}

func (p *Port) Write(b []byte) (int, error) {
	if snsctx.IsVerbose(p.ctx) {
		snsctx.Logger(p.ctx).Debug("serial write", "data", hex.EncodeToString(b))
	}
	return p.port.Write(b)
}

// Buffered reports how many bytes can be read without blocking.
// A read error counts as one readable item so that it surfaces on the next ReadByte.
func (p *Port) Buffered() int {
	if p.err != nil {
		return len(p.pending) + 1
	}
	if len(p.pending) > 0 {
		return len(p.pending)
	}
	n, err := p.port.Read(p.scratch[:])
	if n > 0 {
		p.pending = p.scratch[:n]
		if snsctx.IsVerbose(p.ctx) {
			snsctx.Logger(p.ctx).Debug("serial read", "data", hex.EncodeToString(p.pending))
		}
	}
	if err != nil && err != io.EOF {
		p.err = err
		return len(p.pending) + 1
	}
	return len(p.pending)
}

func (p *Port) ReadByte() (byte, error) {
	if len(p.pending) == 0 && p.err == nil {
		p.Buffered()
	}
	if len(p.pending) == 0 {
		if p.err != nil {
			err := p.err
			p.err = nil
			return 0, err
		}
		return 0, io.EOF
	}
	b := p.pending[0]
	p.pending = p.pending[1:]
	return b, nil
}

// maxDrainReads bounds Drain on a line that never goes quiet.
const maxDrainReads = 64

// Drain drops any bytes already received but not yet consumed, including
// what is still waiting in the OS buffer.
func (p *Port) Drain() {
	p.pending = nil
	p.err = nil
	for range maxDrainReads {
		n, err := p.port.Read(p.scratch[:])
		if n == 0 || err != nil {
			return
		}
		if snsctx.IsVerbose(p.ctx) {
			snsctx.Logger(p.ctx).Debug("serial drain", "data", hex.EncodeToString(p.scratch[:n]))
		}
	}
}

func (p *Port) Close() error {
	return p.port.Close()
}
