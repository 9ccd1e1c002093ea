package proximity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockI2CBus is a mock implementation of protractor.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type startableBus struct {
	MockI2CBus
	started bool
	err     error
}

func (b *startableBus) Start(ctx context.Context) error {
	b.started = true
	return b.err
}

// brokenStream serves data and then fails with err.
type brokenStream struct {
	data []byte
	err  error
}

func (s *brokenStream) Write(p []byte) (int, error) { return len(p), nil }

func (s *brokenStream) Buffered() int { return len(s.data) + 1 }

func (s *brokenStream) ReadByte() (byte, error) {
	if len(s.data) == 0 {
		return 0, s.err
	}
	b := s.data[0]
	s.data = s.data[1:]
	return b, nil
}

func TestProtractor_NotInitialized(t *testing.T) {
	p := NewProtractor()
	ctx := context.Background()

	assert.Equal(t, ModeNone, p.Mode())
	_, err := p.ReadAll(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.False(t, p.FetchAll(ctx))
	assert.ErrorIs(t, p.SetScanInterval(ctx, 100), ErrNotInitialized)
	assert.ErrorIs(t, p.SetDeviceAddress(ctx, 10), ErrNotInitialized)
	assert.ErrorIs(t, p.SetBaudRate(ctx, 9600), ErrNotInitialized)
	assert.ErrorIs(t, p.LEDOff(ctx), ErrNotInitialized)
}

func TestProtractor_SerialRead(t *testing.T) {
	dev := NewMockDevice()
	objects := []Target{{Angle: 10, Visibility: 20}, {Angle: 200, Visibility: 90}}
	paths := []Target{{Angle: 30, Visibility: 40}}
	dev.SetScene(objects, paths)

	p := NewProtractor()
	p.BeginSerial(dev)
	assert.Equal(t, ModeSerial, p.Mode())

	res, err := p.ReadAll(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, 15, res.Requested)
	assert.Equal(t, 61, res.Expected)
	assert.Equal(t, 61, res.Received)
	assert.Equal(t, [][]byte{{'R', 61, '\n'}}, dev.Frames)

	assert.Equal(t, 2, p.ObjectCount())
	assert.Equal(t, 1, p.PathCount())
	assert.Equal(t, 7, p.ObjectAngle(0))
	assert.Equal(t, 141, p.ObjectAngle(1))
	assert.Equal(t, 90, p.ObjectVisibility(1))
	assert.Equal(t, 21, p.PathAngle(0))
	assert.Equal(t, 40, p.PathVisibility(0))
	assert.Equal(t, Reading{
		Objects: []Detection{{Angle: 7, Visibility: 20}, {Angle: 141, Visibility: 90}},
		Paths:   []Detection{{Angle: 21, Visibility: 40}},
	}, p.Reading())
}

func TestProtractor_ReadCountIsClamped(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		expected byte
	}{
		{"single", 1, 5},
		{"none", 0, 1},
		{"negative", -3, 1},
		{"too many", 40, 1 + 4*4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewMockDevice()
			dev.SetScene(fullScene(5), fullScene(5))
			p := NewProtractor(WithMaxObjects(4))
			p.BeginSerial(dev)

			res, err := p.Read(context.Background(), tt.count)
			require.NoError(t, err)
			assert.Equal(t, int(tt.expected), res.Expected)
			assert.True(t, res.Complete())
			assert.Equal(t, []byte{'R', tt.expected, '\n'}, dev.Frames[0])
		})
	}
}

func TestProtractor_SerialTimeout(t *testing.T) {
	dev := NewMockDevice()
	dev.SetScene([]Target{{Angle: 10, Visibility: 20}}, nil)
	p := NewProtractor()
	p.BeginSerial(dev)
	ctx := context.Background()

	_, err := p.ReadAll(ctx)
	require.NoError(t, err)
	before := append([]byte(nil), p.buf...)

	dev.Silent = true
	start := time.Now()
	res, err := p.ReadAll(ctx)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrNoResponse)
	assert.False(t, res.OK())
	assert.GreaterOrEqual(t, elapsed, defaultReadTimeout)
	assert.Equal(t, before, p.buf, "buffer must stay untouched when nothing arrived")
	assert.Equal(t, 7, p.ObjectAngle(0))
	assert.False(t, p.FetchAll(ctx))
}

func TestProtractor_PartialRead(t *testing.T) {
	dev := NewMockDevice()
	dev.SetScene(fullScene(3), fullScene(3))
	dev.Limit = 6
	p := NewProtractor(WithReadTimeout(5 * time.Millisecond))
	p.BeginSerial(dev)

	res, err := p.Read(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.False(t, res.Complete())
	assert.Equal(t, 6, res.Received)
	assert.Equal(t, 13, res.Expected)

	assert.Equal(t, 3, p.ObjectCount())
	assert.Equal(t, 0, p.ObjectAngle(0))
	assert.Equal(t, -1, p.ObjectAngle(1), "second group did not arrive")

	assert.True(t, p.Fetch(context.Background(), 3), "partial reads count as success")
}

func TestProtractor_ReadCancelled(t *testing.T) {
	dev := NewMockDevice()
	dev.Silent = true
	p := NewProtractor(WithReadTimeout(time.Second))
	p.BeginSerial(dev)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := p.ReadAll(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestProtractor_I2CRead(t *testing.T) {
	bus := new(MockI2CBus)
	frame := EncodeFrame([]Target{{Angle: 10, Visibility: 20}}, []Target{{Angle: 30, Visibility: 40}, {Angle: 70, Visibility: 80}})
	bus.On("ReadFromAddr", mock.Anything, byte(DefaultAddress), mock.MatchedBy(func(buf []byte) bool {
		return len(buf) == 9
	})).Return(frame, nil).Once()

	p := NewProtractor()
	require.NoError(t, p.BeginI2C(context.Background(), bus, 0))
	assert.Equal(t, ModeI2C, p.Mode())

	assert.True(t, p.Fetch(context.Background(), 2))
	assert.Equal(t, 1, p.ObjectCount())
	assert.Equal(t, 2, p.PathCount())
	assert.Equal(t, 49, p.PathAngle(1))
	assert.Equal(t, 80, p.PathVisibility(1))
	bus.AssertExpectations(t)
}

func TestProtractor_I2CReadError(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, byte(0x22), mock.Anything).
		Return(nil, errors.New("nack")).Once()

	p := NewProtractor()
	require.NoError(t, p.BeginI2C(context.Background(), bus, 0x22))

	res, err := p.ReadAll(context.Background())
	assert.EqualError(t, err, "protractor: data request failed: nack")
	assert.False(t, res.OK())
	bus.AssertExpectations(t)
}

func TestProtractor_I2CWithMockDevice(t *testing.T) {
	dev := NewMockDevice()
	dev.SetScene(fullScene(4), fullScene(2))
	p := NewProtractor()
	ctx := context.Background()
	require.NoError(t, p.BeginI2C(ctx, dev, DefaultAddress))

	res, err := p.Read(ctx, 4)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, 4, p.ObjectCount())
	assert.Equal(t, 2, p.PathCount())
	assert.Equal(t, 254, p.ObjectVisibility(1))
	assert.Empty(t, dev.Frames, "i2c data requests do not use command frames")
}

func TestProtractor_BeginI2CStartsBus(t *testing.T) {
	bus := &startableBus{}
	p := NewProtractor()
	require.NoError(t, p.BeginI2C(context.Background(), bus, 0))
	assert.True(t, bus.started)

	failing := &startableBus{err: errors.New("no adapter")}
	p = NewProtractor()
	err := p.BeginI2C(context.Background(), failing, 0)
	assert.EqualError(t, err, "protractor: could not start i2c bus: no adapter")
	assert.Equal(t, ModeNone, p.Mode())
}

func TestProtractor_LineErrorKeepsReceivedBytes(t *testing.T) {
	noise := errors.New("line noise")
	frame := []byte{0x10, 90, 200, 0, 0}
	p := NewProtractor()
	p.BeginSerial(&brokenStream{data: append([]byte(nil), frame...), err: noise})

	res, err := p.Read(context.Background(), 2)
	assert.ErrorIs(t, err, noise)
	assert.Equal(t, 5, res.Received)
	assert.True(t, res.OK())
	assert.False(t, res.Complete())
	assert.Equal(t, 1, p.ObjectCount())
	assert.Equal(t, 63, p.ObjectAngle(0))
	assert.Equal(t, 200, p.ObjectVisibility(0))

	p.BeginSerial(&brokenStream{data: append([]byte(nil), frame...), err: noise})
	assert.True(t, p.Fetch(context.Background(), 2), "bytes arrived before the error")

	p.BeginSerial(&brokenStream{err: noise})
	res, err = p.Read(context.Background(), 2)
	assert.ErrorIs(t, err, noise)
	assert.False(t, res.OK())
	assert.Equal(t, 63, p.ObjectAngle(0), "nothing arrived so the last reading stays")
}

func TestProtractor_StaleBytesAreDropped(t *testing.T) {
	dev := NewMockDevice()
	dev.SetScene([]Target{{Angle: 255, Visibility: 9}}, nil)
	// a response nobody read, e.g. one that arrived after the read timeout
	_, err := dev.Write([]byte{'R', 5, '\n'})
	require.NoError(t, err)
	dev.SetScene([]Target{{Angle: 0, Visibility: 1}}, []Target{{Angle: 255, Visibility: 2}})

	p := NewProtractor()
	p.BeginSerial(dev)
	res, err := p.Read(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, 1, p.ObjectCount())
	assert.Equal(t, 1, p.PathCount())
	assert.Equal(t, 0, p.ObjectAngle(0))
	assert.Equal(t, 180, p.PathAngle(0))
	assert.Equal(t, 0, dev.Buffered())
}
