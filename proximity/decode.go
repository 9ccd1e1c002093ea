package proximity

// Response layout: byte 0 packs the object count (high nibble) and path count
// (low nibble), then one group per detection, left to right.
const (
	groupSize = 4

	offsetObjectAngle      = 1
	offsetObjectVisibility = 2
	offsetPathAngle        = 3
	offsetPathVisibility   = 4
)

// Detection is a decoded object or pathway.
type Detection struct {
	Angle      int `yaml:"angle"`      // degrees, 0 to 180
	Visibility int `yaml:"visibility"` // raw strength, 0 to 255
}

// Reading is a snapshot of the last response.
type Reading struct {
	Objects []Detection `yaml:"objects"`
	Paths   []Detection `yaml:"paths"`
}

// ObjectCount returns the number of objects the sensor detected in the last reading.
func (p *Protractor) ObjectCount() int {
	return int(p.buf[0] >> 4)
}

// PathCount returns the number of open pathways the sensor detected in the last reading.
func (p *Protractor) PathCount() int {
	return int(p.buf[0] & 0x0F)
}

// ObjectAngle returns the angle in degrees to object i (0 is the most visible one)
// or -1 if there is no such object.
func (p *Protractor) ObjectAngle(i int) int {
	return p.field(i, p.ObjectCount(), offsetObjectAngle, toDegrees)
}

func (p *Protractor) ObjectVisibility(i int) int {
	return p.field(i, p.ObjectCount(), offsetObjectVisibility, raw)
}

// PathAngle returns the angle in degrees to pathway i (0 is the most open one)
// or -1 if there is no such pathway.
func (p *Protractor) PathAngle(i int) int {
	return p.field(i, p.PathCount(), offsetPathAngle, toDegrees)
}

func (p *Protractor) PathVisibility(i int) int {
	return p.field(i, p.PathCount(), offsetPathVisibility, raw)
}

func (p *Protractor) MostVisibleObjectAngle() int { return p.ObjectAngle(0) }

func (p *Protractor) MostVisibleObjectVisibility() int { return p.ObjectVisibility(0) }

func (p *Protractor) MostOpenPathAngle() int { return p.PathAngle(0) }

func (p *Protractor) MostOpenPathVisibility() int { return p.PathVisibility(0) }

// Reading decodes every object and path available in the last response.
func (p *Protractor) Reading() Reading {
	r := Reading{
		Objects: make([]Detection, 0, p.ObjectCount()),
		Paths:   make([]Detection, 0, p.PathCount()),
	}
	for i := 0; i < p.ObjectCount(); i++ {
		if p.ObjectAngle(i) < 0 {
			break
		}
		r.Objects = append(r.Objects, Detection{Angle: p.ObjectAngle(i), Visibility: p.ObjectVisibility(i)})
	}
	for i := 0; i < p.PathCount(); i++ {
		if p.PathAngle(i) < 0 {
			break
		}
		r.Paths = append(r.Paths, Detection{Angle: p.PathAngle(i), Visibility: p.PathVisibility(i)})
	}
	return r
}

// field returns the decoded byte at offset within group i, or -1 when i is not
// below count or the whole group did not arrive with the last response.
func (p *Protractor) field(i, count, offset int, decode func(byte) int) int {
	if i < 0 || i >= count {
		return -1
	}
	if frameLength(i+1) > p.valid {
		return -1
	}
	return decode(p.buf[offset+groupSize*i])
}

// toDegrees maps the raw 0..255 angle onto 0..180 degrees, rounding down.
func toDegrees(b byte) int {
	return int(b) * 180 / 255
}

func raw(b byte) int {
	return int(b)
}
