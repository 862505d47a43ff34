package tpx3

import (
	"fmt"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// DefaultSpectrumResolution is the full-spectrum bucket in ps (1.5625 ns
// rounded up to whole picoseconds).
const DefaultSpectrumResolution int64 = 1563

// TimeBinning maps hit times of flight onto the nominal time axis.
type TimeBinning struct {
	Origin      int64 // ps
	Width       int64 // ps
	PulseLength int64 // ps, 0 disables folding
	Resolution  int64 // ps, full spectrum bucket
}

func (b TimeBinning) Validate() error {
	if b.Width <= 0 {
		return &ConfigError{Field: "bin_width", Reason: fmt.Sprintf("must be positive, got %d", b.Width)}
	}
	if b.Resolution <= 0 {
		return &ConfigError{Field: "spectrum_resolution", Reason: fmt.Sprintf("must be positive, got %d", b.Resolution)}
	}
	if b.PulseLength < 0 {
		return &ConfigError{Field: "tof_pulse_length", Reason: fmt.Sprintf("must not be negative, got %d", b.PulseLength)}
	}
	return nil
}

// Tof returns the time of flight of h and false when it is negative.
func (b TimeBinning) Tof(h Hit) (int64, bool) {
	tof := h.Toa
	if h.Trigger != 0 {
		tof = h.Toa - h.Trigger
	}
	if b.PulseLength > 0 {
		tof %= b.PulseLength
	}
	return tof, tof >= 0
}

func (b TimeBinning) Bin(tof int64) int64 {
	return floorDiv(tof-b.Origin, b.Width)
}

// Label is the bin centre in ns.
func (b TimeBinning) Label(bin int64) float64 {
	return (float64(b.Origin) + (float64(bin)+0.5)*float64(b.Width)) / 1000
}

// Bucket quantises tof to the full spectrum resolution.
func (b TimeBinning) Bucket(tof int64) int64 {
	return floorDiv(tof, b.Resolution) * b.Resolution
}

func floorDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func cmpOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type SpectrumPoint struct {
	Time  int64
	Count uint32
}

// Histogram accumulates the full-resolution spectrum and the per-bin counts.
type Histogram struct {
	Binning  TimeBinning
	full     map[int64]uint32
	bins     map[int64]uint32
	Accepted uint64
	Negative uint64
}

func NewHistogram(binning TimeBinning) *Histogram {
	return &Histogram{
		Binning: binning,
		full:    make(map[int64]uint32),
		bins:    make(map[int64]uint32),
	}
}

// Add records h and returns its bin, or false when its time of flight is
// invalid.
func (hg *Histogram) Add(h Hit) (int64, bool) {
	tof, ok := hg.Binning.Tof(h)
	if !ok {
		hg.Negative++
		return 0, false
	}
	bin := hg.Binning.Bin(tof)
	hg.full[hg.Binning.Bucket(tof)]++
	hg.bins[bin]++
	hg.Accepted++
	return bin, true
}

func (hg *Histogram) Merge(other *Histogram) {
	for k, v := range other.full {
		hg.full[k] += v
	}
	for k, v := range other.bins {
		hg.bins[k] += v
	}
	hg.Accepted += other.Accepted
	hg.Negative += other.Negative
}

// FullSpectrum returns the full-resolution spectrum sorted by time.
func (hg *Histogram) FullSpectrum() []SpectrumPoint {
	return sortedPoints(hg.full)
}

// BinSpectrum returns counts per bin keyed by the bin start time in ps.
func (hg *Histogram) BinSpectrum() []SpectrumPoint {
	points := sortedPoints(hg.bins)
	for i := range points {
		points[i].Time = hg.Binning.Origin + points[i].Time*hg.Binning.Width
	}
	return points
}

func (hg *Histogram) BinCount(bin int64) uint32 {
	return hg.bins[bin]
}

func sortedPoints(m map[int64]uint32) []SpectrumPoint {
	points := make([]SpectrumPoint, 0, len(m))
	for k, v := range m {
		points = append(points, SpectrumPoint{Time: k, Count: v})
	}
	slices.SortFunc(points, func(a, b SpectrumPoint) int {
		return cmpOrdered(a.Time, b.Time)
	})
	return points
}

// ZeroPad inserts zero-count points around every run of consecutive buckets so
// line plots drop to the baseline between peaks.
func ZeroPad(points []SpectrumPoint, step int64) []SpectrumPoint {
	if len(points) == 0 {
		return nil
	}
	padded := make([]SpectrumPoint, 0, len(points)+2)
	prev := points[0].Time
	padded = append(padded, SpectrumPoint{Time: prev - step})
	for _, p := range points {
		if p.Time-prev > step {
			padded = append(padded, SpectrumPoint{Time: prev + step})
			if p.Time-step > prev+step {
				padded = append(padded, SpectrumPoint{Time: p.Time - step})
			}
		}
		padded = append(padded, p)
		prev = p.Time
	}
	padded = append(padded, SpectrumPoint{Time: prev + step})
	return padded
}
