package proximity

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

// load puts a raw response in place as if it had just been read.
func load(p *Protractor, frame []byte) {
	clear(p.buf)
	p.valid = copy(p.buf, frame)
}

func TestProtractor_DecodeScenario(t *testing.T) {
	p := NewProtractor()
	load(p, []byte{0x12, 10, 20, 30, 40, 50, 60, 70, 80})

	assert.Equal(t, 1, p.ObjectCount())
	assert.Equal(t, 2, p.PathCount())
	assert.Equal(t, 7, p.ObjectAngle(0))
	assert.Equal(t, 20, p.ObjectVisibility(0))
	assert.Equal(t, 21, p.PathAngle(0))
	assert.Equal(t, 40, p.PathVisibility(0))
	assert.Equal(t, 49, p.PathAngle(1))
	assert.Equal(t, 80, p.PathVisibility(1))

	assert.Equal(t, -1, p.ObjectAngle(1), "only one object detected")
	assert.Equal(t, -1, p.ObjectVisibility(1))
	assert.Equal(t, -1, p.PathAngle(2))
	assert.Equal(t, -1, p.PathVisibility(2))

	assert.Equal(t, p.ObjectAngle(0), p.MostVisibleObjectAngle())
	assert.Equal(t, p.ObjectVisibility(0), p.MostVisibleObjectVisibility())
	assert.Equal(t, p.PathAngle(0), p.MostOpenPathAngle())
	assert.Equal(t, p.PathVisibility(0), p.MostOpenPathVisibility())
}

func TestProtractor_CountsIgnoreOtherNibble(t *testing.T) {
	p := NewProtractor()
	for objects := 0; objects < 16; objects++ {
		for paths := 0; paths < 16; paths++ {
			load(p, []byte{byte(objects<<4 | paths)})
			assert.Equal(t, objects, p.ObjectCount())
			assert.Equal(t, paths, p.PathCount())
		}
	}
}

func TestProtractor_CountsAreNotDestructive(t *testing.T) {
	p := NewProtractor()
	load(p, []byte{0x35, 1, 2, 3, 4})

	assert.Equal(t, 5, p.PathCount())
	assert.Equal(t, 3, p.ObjectCount(), "decoding path count must not clobber the object count")
	assert.Equal(t, byte(0x35), p.buf[0])
}

func TestToDegrees(t *testing.T) {
	tests := []struct {
		given    byte
		expected int
	}{
		{0, 0},
		{10, 7},
		{30, 21},
		{70, 49},
		{128, 90},
		{254, 179},
		{255, 180},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString([]byte{test.given}), func(t *testing.T) {
			assert.Equal(t, test.expected, toDegrees(test.given))
		})
	}
}

func TestToDegrees_Monotonic(t *testing.T) {
	prev := toDegrees(0)
	for b := 1; b < 256; b++ {
		deg := toDegrees(byte(b))
		assert.GreaterOrEqual(t, deg, prev, "raw %d", b)
		assert.LessOrEqual(t, deg, 180)
		prev = deg
	}
}

func TestProtractor_IndexValidation(t *testing.T) {
	p := NewProtractor()
	load(p, EncodeFrame(
		[]Target{{Angle: 255, Visibility: 9}, {Angle: 0, Visibility: 8}},
		[]Target{{Angle: 51, Visibility: 7}},
	))

	tests := []struct {
		name     string
		accessor func(int) int
		index    int
		expected int
	}{
		{"object angle negative", p.ObjectAngle, -1, -1},
		{"object angle first", p.ObjectAngle, 0, 180},
		{"object angle second", p.ObjectAngle, 1, 0},
		{"object angle past count", p.ObjectAngle, 2, -1},
		{"object visibility negative", p.ObjectVisibility, -5, -1},
		{"object visibility second", p.ObjectVisibility, 1, 8},
		{"path angle first", p.PathAngle, 0, 36},
		{"path angle past count", p.PathAngle, 1, -1},
		{"path visibility first", p.PathVisibility, 0, 7},
		{"path visibility negative", p.PathVisibility, -1, -1},
		{"path visibility far out", p.PathVisibility, 1000, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.accessor(tt.index))
		})
	}
}

func TestProtractor_GroupsMissingFromResponse(t *testing.T) {
	p := NewProtractor()
	// sensor sees 3 objects but only the first group arrived
	load(p, []byte{0x30, 100, 50, 0, 0})

	assert.Equal(t, 3, p.ObjectCount())
	assert.Equal(t, 70, p.ObjectAngle(0))
	assert.Equal(t, -1, p.ObjectAngle(1))
	assert.Equal(t, -1, p.ObjectVisibility(2))
}

func TestProtractor_CountsBeyondCapacity(t *testing.T) {
	p := NewProtractor(WithMaxObjects(2))
	load(p, []byte{0xFF, 1, 2, 3, 4, 5, 6, 7, 8})

	assert.Equal(t, 15, p.ObjectCount())
	assert.Equal(t, 6, p.ObjectVisibility(1))
	assert.Equal(t, -1, p.ObjectAngle(2), "index beyond the buffer must not be read")
	assert.Equal(t, -1, p.PathVisibility(14))
}

func TestProtractor_EmptyBeforeFirstRead(t *testing.T) {
	p := NewProtractor()
	assert.Equal(t, 0, p.ObjectCount())
	assert.Equal(t, 0, p.PathCount())
	assert.Equal(t, -1, p.MostVisibleObjectAngle())
	assert.Equal(t, -1, p.MostOpenPathVisibility())
	assert.Empty(t, p.Reading().Objects)
}

func TestProtractor_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		objects []Target
		paths   []Target
	}{
		{"nothing", nil, nil},
		{"objects only", []Target{{10, 20}, {200, 30}, {255, 255}}, nil},
		{"paths only", nil, []Target{{0, 1}, {128, 2}}},
		{"more paths than objects", []Target{{64, 100}}, []Target{{1, 2}, {3, 4}, {5, 6}}},
		{"full", fullScene(15), fullScene(15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProtractor()
			load(p, EncodeFrame(tt.objects, tt.paths))

			assert.Equal(t, len(tt.objects), p.ObjectCount())
			assert.Equal(t, len(tt.paths), p.PathCount())
			for i, o := range tt.objects {
				assert.Equal(t, toDegrees(o.Angle), p.ObjectAngle(i))
				assert.Equal(t, int(o.Visibility), p.ObjectVisibility(i))
			}
			for i, pa := range tt.paths {
				assert.Equal(t, toDegrees(pa.Angle), p.PathAngle(i))
				assert.Equal(t, int(pa.Visibility), p.PathVisibility(i))
			}
			r := p.Reading()
			assert.Len(t, r.Objects, len(tt.objects))
			assert.Len(t, r.Paths, len(tt.paths))
		})
	}
}

func TestEncodeFrame_ClampsCounts(t *testing.T) {
	frame := EncodeFrame(fullScene(20), fullScene(3))
	assert.Equal(t, byte(0xF3), frame[0])
	assert.Len(t, frame, frameLength(15))
}

func fullScene(n int) []Target {
	targets := make([]Target, n)
	for i := range targets {
		targets[i] = Target{Angle: byte(i * 17), Visibility: byte(255 - i)}
	}
	return targets
}
