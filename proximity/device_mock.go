package proximity

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/protractor"
)

var (
	_ protractor.ByteStream = &MockDevice{}
	_ protractor.I2CBus     = &MockDevice{}
)

// Target is a detection as the sensor encodes it on the wire.
type Target struct {
	Angle      byte // 0..255 maps onto 0..180 degrees
	Visibility byte
}

// EncodeFrame builds a full response for the given detections, ordered as the
// sensor orders them. Counts above 15 are clamped; when one list is shorter
// the remaining fields of a group are zero.
func EncodeFrame(objects, paths []Target) []byte {
	objects = objects[:min(len(objects), DefaultMaxObjects)]
	paths = paths[:min(len(paths), DefaultMaxObjects)]
	groups := max(len(objects), len(paths))
	frame := make([]byte, frameLength(groups))
	frame[0] = byte(len(objects))<<4 | byte(len(paths))
	for i, o := range objects {
		frame[offsetObjectAngle+groupSize*i] = o.Angle
		frame[offsetObjectVisibility+groupSize*i] = o.Visibility
	}
	for i, p := range paths {
		frame[offsetPathAngle+groupSize*i] = p.Angle
		frame[offsetPathVisibility+groupSize*i] = p.Visibility
	}
	return frame
}

// MockDevice emulates the sensor firmware without any hardware. It can stand
// in for both a serial line and an I2C bus. Every Write (or WriteToAddr) is
// treated as one command frame.
//
// Example usage:
//
//	dev := NewMockDevice()
//	dev.SetScene([]Target{{Angle: 128, Visibility: 200}}, nil)
//	p := NewProtractor()
//	p.BeginSerial(dev)
type MockDevice struct {
	mx sync.Mutex

	objects []Target
	paths   []Target

	Address      byte
	BaudRate     int
	ScanInterval int
	Indicator    IndicatorMode
	// Silent makes the device ignore data requests.
	Silent bool
	// Limit caps the number of response bytes sent, 0 means no cap.
	Limit int
	// Frames records every command frame received.
	Frames [][]byte

	out []byte
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		Address:      DefaultAddress,
		BaudRate:     DefaultBaudRate,
		ScanInterval: MinScanInterval,
		Indicator:    IndicatorShowObject,
	}
}

// SetScene replaces what the device currently detects.
func (d *MockDevice) SetScene(objects, paths []Target) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.objects = append([]Target(nil), objects...)
	d.paths = append([]Target(nil), paths...)
}

func (d *MockDevice) Write(p []byte) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.handle(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *MockDevice) Buffered() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return len(d.out)
}

func (d *MockDevice) ReadByte() (byte, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(d.out) == 0 {
		return 0, fmt.Errorf("mock: no data")
	}
	b := d.out[0]
	d.out = d.out[1:]
	return b, nil
}

// Drain discards response bytes not read yet.
func (d *MockDevice) Drain() {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.out = nil
}

func (d *MockDevice) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if address != d.Address {
		return fmt.Errorf("mock: no device at %#x", address)
	}
	return d.handle(buffer)
}

func (d *MockDevice) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if address != d.Address {
		return fmt.Errorf("mock: no device at %#x", address)
	}
	if d.Silent {
		return fmt.Errorf("mock: device at %#x did not answer", address)
	}
	copy(buffer, d.response(len(buffer)))
	return nil
}

func (d *MockDevice) Release(ctx context.Context) error {
	return nil
}

func (d *MockDevice) response(n int) []byte {
	frame := make([]byte, n)
	copy(frame, EncodeFrame(d.objects, d.paths))
	if d.Limit > 0 && d.Limit < n {
		frame = frame[:d.Limit]
	}
	return frame
}

func (d *MockDevice) handle(frame []byte) error {
	d.Frames = append(d.Frames, append([]byte(nil), frame...))
	if len(frame) < 3 || frame[len(frame)-1] != frameEnd {
		return fmt.Errorf("mock: malformed frame %x", frame)
	}
	payload := frame[1 : len(frame)-1]
	switch frame[0] {
	case opRequestData:
		if !d.Silent {
			d.out = append(d.out, d.response(int(payload[0]))...)
		}
	case opScanTime:
		if len(payload) == 1 {
			d.ScanInterval = int(payload[0])
		} else {
			d.ScanInterval = int(payload[0]) | int(payload[1])<<8
		}
	case opI2CAddr:
		d.Address = payload[0]
	case opBaudRate:
		if len(payload) != 3 {
			return fmt.Errorf("mock: malformed baud rate frame %x", frame)
		}
		d.BaudRate = int(payload[0]) | int(payload[1])<<8 | int(payload[2])<<16
	case opLEDUsage:
		d.Indicator = IndicatorMode(payload[0])
	default:
		return fmt.Errorf("mock: unknown opcode %#x", frame[0])
	}
	return nil
}
