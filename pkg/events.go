package tpx3

// MaxResolution is the number of columns and rows of a single Timepix3 chip.
const MaxResolution = 256

// RawEvent is one decoded pixel trigger. Times are in picoseconds.
type RawEvent struct {
	X       uint16
	Y       uint16
	Toa     int64
	Tot     uint32
	Trigger int64 // time of the most recent TDC, 0 before the first one
	// Size is the number of pixels already merged into this event by an
	// upstream centroiding step (.tpx3c streams). 0 and 1 mean a raw pixel.
	Size uint16
	// Sub-pixel centroid offsets of a centroided event, in 1/255 pixel.
	SubX uint8
	SubY uint8
}

// Centroided reports whether the event carries an upstream cluster.
func (e RawEvent) Centroided() bool {
	return e.Size > 1
}

// Hit is a centroided physical detection derived from one or more RawEvents.
type Hit struct {
	X       float64
	Y       float64
	Toa     int64 // first arrival among the members
	Trigger int64
	Tot     uint32
	Size    uint16
}

// PixelKey packs a pixel coordinate into a single index.
type PixelKey uint32

// Resolution is the pixel grid of the detector.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) Pixels() int {
	return r.Width * r.Height
}

func (r Resolution) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < r.Width && y < r.Height
}

func (r Resolution) Key(x, y uint16) PixelKey {
	return PixelKey(int(y)*r.Width + int(x))
}

func (r Resolution) XY(k PixelKey) (uint16, uint16) {
	return uint16(int(k) % r.Width), uint16(int(k) / r.Width)
}

// Cell returns the grid index of a centroid, or false when it falls outside.
func (r Resolution) Cell(x, y float64) (int, bool) {
	if x < 0 || y < 0 {
		return 0, false
	}
	ix, iy := int(x), int(y)
	if !r.Contains(ix, iy) {
		return 0, false
	}
	return iy*r.Width + ix, true
}
