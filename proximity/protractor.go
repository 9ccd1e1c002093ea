package proximity

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/protractor"
)

// DefaultAddress is the factory I2C address of the sensor (69d).
const DefaultAddress = 0x45

// DefaultBaudRate is the factory serial speed of the sensor.
const DefaultBaudRate = 9600

// DefaultMaxObjects is the largest number of objects or paths a single response can describe.
// Counts travel as nibbles so the sensor never reports more than 15 of each.
const DefaultMaxObjects = 15

const (
	defaultReadTimeout  = 20 * time.Millisecond
	defaultPollInterval = 100 * time.Microsecond
)

var (
	ErrNotInitialized = fmt.Errorf("protractor: transport not initialized")
	ErrNoResponse     = fmt.Errorf("protractor: no response from sensor")
	ErrInvalidValue   = fmt.Errorf("protractor: invalid value")
)

type Mode int

const (
	ModeNone Mode = iota
	ModeSerial
	ModeI2C
)

func (m Mode) String() string {
	switch m {
	case ModeSerial:
		return "serial"
	case ModeI2C:
		return "i2c"
	default:
		return "none"
	}
}

type Config struct {
	MaxObjects   int
	ReadTimeout  time.Duration
	PollInterval time.Duration
	// Strict makes configuration commands return ErrInvalidValue for out of range
	// arguments instead of silently dropping them.
	Strict bool
	Logger *slog.Logger
}

type Option func(*Config)

func WithMaxObjects(n int) Option {
	return func(c *Config) {
		c.MaxObjects = min(max(n, 1), DefaultMaxObjects)
	}
}

// WithReadTimeout sets the maximum idle time between two response bytes.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = timeout
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = interval
	}
}

func WithStrictValidation() Option {
	return func(c *Config) {
		c.Strict = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Protractor represents the Protractor angle and proximity sensor.
// With a 180 degree field of view it reports the angle to objects and open
// pathways up to 30cm away, ordered left to right.
//
// Typical usage:
//
//	p := NewProtractor()
//	p.BeginSerial(port)
//	if _, err := p.ReadAll(ctx); err != nil {
//		return err
//	}
//	angle := p.ObjectAngle(0)
//
// A Protractor is not safe for concurrent use.
type Protractor struct {
	config    Config
	mode      Mode
	transport transport
	buf       []byte
	valid     int
}

func NewProtractor(opts ...Option) *Protractor {
	config := Config{
		MaxObjects:   DefaultMaxObjects,
		ReadTimeout:  defaultReadTimeout,
		PollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Protractor{
		config:    config,
		transport: noTransport{},
		buf:       make([]byte, frameLength(config.MaxObjects)),
	}
}

// BeginSerial selects serial communication over the given stream.
// The stream is borrowed; closing it remains the caller's job.
func (p *Protractor) BeginSerial(stream protractor.ByteStream) {
	p.transport = &streamTransport{stream: stream}
	p.mode = ModeSerial
}

// BeginI2C selects I2C communication with the sensor at address (0 selects DefaultAddress).
// If the bus implements protractor.Starter it is started first.
func (p *Protractor) BeginI2C(ctx context.Context, bus protractor.I2CBus, address byte) error {
	if address == 0 {
		address = DefaultAddress
	}
	if starter, ok := bus.(protractor.Starter); ok {
		if err := starter.Start(ctx); err != nil {
			return fmt.Errorf("protractor: could not start i2c bus: %w", err)
		}
	}
	p.transport = &busTransport{bus: bus, address: address}
	p.mode = ModeI2C
	return nil
}

func (p *Protractor) Mode() Mode {
	return p.mode
}

func (p *Protractor) MaxObjects() int {
	return p.config.MaxObjects
}

// ReadResult describes the outcome of a single data request.
type ReadResult struct {
	Requested int // number of 4-byte groups asked for
	Expected  int // response length in bytes
	Received  int
}

// Complete reports whether the whole response arrived.
func (r ReadResult) Complete() bool {
	return r.Received == r.Expected
}

// OK reports whether any data arrived.
func (r ReadResult) OK() bool {
	return r.Received > 0
}

// ReadAll fetches every object and path the sensor can report.
func (p *Protractor) ReadAll(ctx context.Context) (ReadResult, error) {
	return p.Read(ctx, p.config.MaxObjects)
}

// Read asks the sensor for the count most visible objects and most open paths.
// Smaller counts minimize transfer time for time-sensitive loops.
//
// Bytes are collected until the full response is in or no byte arrived for
// the read timeout. A partial response is not an error: check
// ReadResult.Complete when that matters. ErrNoResponse is returned when
// nothing arrived, in which case the previous reading stays in place.
// A transport error or cancellation after the first byte is returned
// together with the bytes received so far, which become the current reading.
func (p *Protractor) Read(ctx context.Context, count int) (ReadResult, error) {
	count = min(max(count, 0), p.config.MaxObjects)
	res := ReadResult{Requested: count, Expected: frameLength(count)}
	if p.mode == ModeNone {
		return res, ErrNotInitialized
	}
	err := p.transport.request(ctx, res.Expected)
	if err != nil {
		return res, fmt.Errorf("protractor: data request failed: %w", err)
	}

	scratch := make([]byte, res.Expected)
	var readErr error
	last := time.Now()
	for res.Received < res.Expected && time.Since(last) < p.config.ReadTimeout {
		if readErr = ctx.Err(); readErr != nil {
			break
		}
		if p.transport.available() == 0 {
			if p.config.PollInterval > 0 {
				time.Sleep(p.config.PollInterval)
			}
			continue
		}
		b, err := p.transport.readByte()
		if err != nil {
			readErr = fmt.Errorf("protractor: could not read response byte %d: %w", res.Received, err)
			break
		}
		scratch[res.Received] = b
		res.Received++
		last = time.Now()
	}
	if res.Received == 0 {
		if readErr != nil {
			return res, readErr
		}
		p.config.Logger.Debug("no response from sensor", "mode", p.mode, "expected", res.Expected)
		return res, ErrNoResponse
	}

	// whatever arrived replaces the previous reading, even when the read was cut short
	clear(p.buf)
	copy(p.buf, scratch[:res.Received])
	p.valid = res.Received
	if !res.Complete() {
		p.config.Logger.Debug("partial response from sensor", "expected", res.Expected, "received", res.Received, "error", readErr)
	}
	p.config.Logger.Debug("sensor response", "data", hex.EncodeToString(scratch[:res.Received]))
	return res, readErr
}

// Fetch reads count groups and reports whether at least one byte arrived.
// It matches the boolean contract of the sensor's reference library,
// so partial responses count as success.
func (p *Protractor) Fetch(ctx context.Context, count int) bool {
	res, err := p.Read(ctx, count)
	if err != nil {
		p.config.Logger.Debug("read failed", "error", err)
	}
	return res.OK()
}

func (p *Protractor) FetchAll(ctx context.Context) bool {
	return p.Fetch(ctx, p.config.MaxObjects)
}

func frameLength(groups int) int {
	return 1 + groupSize*groups
}
