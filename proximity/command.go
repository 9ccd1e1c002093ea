package proximity

import (
	"context"
	"encoding/hex"
	"fmt"
)

// Command opcodes. Every frame ends with frameEnd.
const (
	opRequestData byte = 'R'
	opScanTime    byte = 'S'
	opI2CAddr     byte = 'A'
	opBaudRate    byte = 'B'
	opLEDUsage    byte = 'L'

	frameEnd byte = '\n'
)

const (
	// MinScanInterval is the time the sensor needs to complete one sweep.
	MinScanInterval = 15
	MaxScanInterval = 32767

	MinAddress = 2
	MaxAddress = 127

	MinBaudRate = 1200
	MaxBaudRate = 250000
)

// IndicatorMode selects what the feedback LEDs on the sensor follow.
type IndicatorMode byte

const (
	IndicatorShowObject IndicatorMode = 0
	IndicatorShowPath   IndicatorMode = 1
	IndicatorOff        IndicatorMode = 2
)

func (m IndicatorMode) String() string {
	switch m {
	case IndicatorShowObject:
		return "object"
	case IndicatorShowPath:
		return "path"
	case IndicatorOff:
		return "off"
	default:
		return fmt.Sprintf("unknown(%d)", byte(m))
	}
}

// ParseIndicatorMode accepts the names returned by IndicatorMode.String.
func ParseIndicatorMode(s string) (IndicatorMode, error) {
	switch s {
	case "object":
		return IndicatorShowObject, nil
	case "path":
		return IndicatorShowPath, nil
	case "off":
		return IndicatorOff, nil
	}
	return 0, fmt.Errorf("%w: indicator mode %q", ErrInvalidValue, s)
}

func requestFrame(n int) []byte {
	return []byte{opRequestData, byte(n), frameEnd}
}

// scanTimeFrame encodes the scan interval command. 0 means scan only on request.
// Intervals shorter than a sweep are raised to MinScanInterval.
func scanTimeFrame(ms int) ([]byte, bool) {
	switch {
	case ms >= 1 && ms < MinScanInterval:
		return []byte{opScanTime, MinScanInterval, frameEnd}, true
	case ms >= 0 && ms <= MaxScanInterval:
		return []byte{opScanTime, byte(ms), byte(ms >> 8), frameEnd}, true
	}
	return nil, false
}

func addressFrame(addr int) ([]byte, bool) {
	if addr < MinAddress || addr > MaxAddress {
		return nil, false
	}
	return []byte{opI2CAddr, byte(addr), frameEnd}, true
}

func baudRateFrame(rate int) ([]byte, bool) {
	if rate < MinBaudRate || rate > MaxBaudRate {
		return nil, false
	}
	return []byte{opBaudRate, byte(rate), byte(rate >> 8), byte(rate >> 16), frameEnd}, true
}

func indicatorFrame(mode IndicatorMode) ([]byte, bool) {
	if mode > IndicatorOff {
		return nil, false
	}
	return []byte{opLEDUsage, byte(mode), frameEnd}, true
}

// SetScanInterval changes the time between autonomous scans.
// 0 scans only when data is requested, 1 to 14 is raised to 15ms.
// Values outside [0, 32767] are dropped (or rejected in strict mode).
func (p *Protractor) SetScanInterval(ctx context.Context, ms int) error {
	frame, ok := scanTimeFrame(ms)
	return p.send(ctx, "scan interval", ms, frame, ok)
}

// SetDeviceAddress changes the sensor's I2C address. The sensor keeps it across power cycles.
func (p *Protractor) SetDeviceAddress(ctx context.Context, addr int) error {
	frame, ok := addressFrame(addr)
	return p.send(ctx, "i2c address", addr, frame, ok)
}

// SetBaudRate changes the sensor's serial speed. The sensor keeps it across power cycles.
func (p *Protractor) SetBaudRate(ctx context.Context, rate int) error {
	frame, ok := baudRateFrame(rate)
	return p.send(ctx, "baud rate", rate, frame, ok)
}

func (p *Protractor) SetIndicatorMode(ctx context.Context, mode IndicatorMode) error {
	frame, ok := indicatorFrame(mode)
	return p.send(ctx, "indicator mode", int(mode), frame, ok)
}

// LEDShowObject makes the feedback LEDs follow the most visible object.
func (p *Protractor) LEDShowObject(ctx context.Context) error {
	return p.SetIndicatorMode(ctx, IndicatorShowObject)
}

// LEDShowPath makes the feedback LEDs follow the most open pathway.
func (p *Protractor) LEDShowPath(ctx context.Context) error {
	return p.SetIndicatorMode(ctx, IndicatorShowPath)
}

func (p *Protractor) LEDOff(ctx context.Context) error {
	return p.SetIndicatorMode(ctx, IndicatorOff)
}

func (p *Protractor) send(ctx context.Context, setting string, value int, frame []byte, valid bool) error {
	if p.mode == ModeNone {
		return ErrNotInitialized
	}
	if !valid {
		if p.config.Strict {
			return fmt.Errorf("%w: %s %d out of range", ErrInvalidValue, setting, value)
		}
		p.config.Logger.Debug("dropping out of range setting", "setting", setting, "value", value)
		return nil
	}
	p.config.Logger.Debug("sending command", "setting", setting, "value", value, "frame", hex.EncodeToString(frame))
	err := p.transport.write(ctx, frame)
	if err != nil {
		return fmt.Errorf("protractor: could not set %s: %w", setting, err)
	}
	return nil
}
