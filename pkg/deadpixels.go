package tpx3

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
)

// DeadPixelPolicy decides which pixel counts are outliers.
//
// A pixel is hot when its count exceeds MaxCountCeilingMultiplier times the
// reference statistic of all active pixels. A pixel is cold when its count is
// below MinCountFloor while its neighbours average at least
// max(MinCountFloor, ExposedFraction*reference).
type DeadPixelPolicy struct {
	MinCountFloor             uint32
	MaxCountCeilingMultiplier float64
	Statistic                 Statistic
	ExposedFraction           float64
}

func (p DeadPixelPolicy) Validate() error {
	if !(p.MaxCountCeilingMultiplier > 1) || math.IsInf(p.MaxCountCeilingMultiplier, 0) {
		return &ConfigError{Field: "max_count_multiplier", Reason: fmt.Sprintf("must be a finite value above 1, got %v", p.MaxCountCeilingMultiplier)}
	}
	if !p.Statistic.Valid() {
		return &ConfigError{Field: "dead_pixel_statistic", Reason: fmt.Sprintf("unknown statistic %d", int(p.Statistic))}
	}
	if p.ExposedFraction < 0 || math.IsNaN(p.ExposedFraction) {
		return &ConfigError{Field: "exposed_fraction", Reason: fmt.Sprintf("must not be negative, got %v", p.ExposedFraction)}
	}
	return nil
}

// PixelCounts is an index-addressed hit count per pixel.
type PixelCounts struct {
	Resolution Resolution
	Counts     []uint32
}

func NewPixelCounts(res Resolution) *PixelCounts {
	return &PixelCounts{Resolution: res, Counts: make([]uint32, res.Pixels())}
}

// Add counts a raw pixel event. Centroided events are not pixel statistics.
func (pc *PixelCounts) Add(ev RawEvent) {
	if ev.Centroided() {
		return
	}
	pc.Counts[pc.Resolution.Key(ev.X, ev.Y)]++
}

// Merge adds other into pc. The operation is commutative and associative.
func (pc *PixelCounts) Merge(other *PixelCounts) {
	for i, c := range other.Counts {
		pc.Counts[i] += c
	}
}

// CountPixels accumulates per-pixel counts over events using workers that each
// own a private count array.
func CountPixels(events []RawEvent, res Resolution, workers int) (*PixelCounts, error) {
	chunks := splitEvenly(len(events), workers)
	partials, err := runWorkers(workers, chunks, func(c chunk) (*PixelCounts, error) {
		counts := NewPixelCounts(res)
		for _, ev := range events[c.start:c.end] {
			counts.Add(ev)
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	total := NewPixelCounts(res)
	for _, p := range partials {
		total.Merge(p)
	}
	return total, nil
}

// DeadPixelMask marks pixels excluded from clustering. It is read-only once
// clustering starts.
type DeadPixelMask struct {
	Resolution Resolution
	Reference  float64
	Hot        int
	Cold       int
	dead       []bool
	count      int
}

func NewDeadPixelMask(res Resolution) *DeadPixelMask {
	return &DeadPixelMask{Resolution: res, dead: make([]bool, res.Pixels())}
}

func (m *DeadPixelMask) IsDead(k PixelKey) bool {
	return m.dead[k]
}

func (m *DeadPixelMask) Count() int {
	return m.count
}

// Add marks k dead and reports whether it was previously live.
func (m *DeadPixelMask) Add(k PixelKey) bool {
	if m.dead[k] {
		return false
	}
	m.dead[k] = true
	m.count++
	return true
}

// Union adds keys and returns how many were new.
func (m *DeadPixelMask) Union(keys []PixelKey) int {
	added := 0
	for _, k := range keys {
		if int(k) < len(m.dead) && m.Add(k) {
			added++
		}
	}
	return added
}

func (m *DeadPixelMask) Keys() []PixelKey {
	keys := make([]PixelKey, 0, m.count)
	for i, d := range m.dead {
		if d {
			keys = append(keys, PixelKey(i))
		}
	}
	return keys
}

// Filter drops raw events that land on dead pixels. Centroided events were
// clustered upstream and are kept.
func (m *DeadPixelMask) Filter(events []RawEvent) ([]RawEvent, int) {
	kept := make([]RawEvent, 0, len(events))
	for _, ev := range events {
		if !ev.Centroided() && m.dead[m.Resolution.Key(ev.X, ev.Y)] {
			continue
		}
		kept = append(kept, ev)
	}
	return kept, len(events) - len(kept)
}

// DetectDeadPixels applies policy to accumulated counts.
func DetectDeadPixels(counts *PixelCounts, policy DeadPixelPolicy) *DeadPixelMask {
	res := counts.Resolution
	mask := NewDeadPixelMask(res)

	active := make([]float64, 0, len(counts.Counts))
	for _, c := range counts.Counts {
		if c > 0 {
			active = append(active, float64(c))
		}
	}
	if len(active) == 0 {
		return mask
	}

	var reference float64
	switch policy.Statistic {
	case StatisticMean:
		reference = stat.Mean(active, nil)
	default:
		slices.Sort(active)
		reference = stat.Quantile(0.5, stat.Empirical, active, nil)
	}
	mask.Reference = reference

	ceiling := policy.MaxCountCeilingMultiplier * reference
	exposed := math.Max(float64(policy.MinCountFloor), policy.ExposedFraction*reference)

	for y := 0; y < res.Height; y++ {
		for x := 0; x < res.Width; x++ {
			k := y*res.Width + x
			c := counts.Counts[k]
			switch {
			case float64(c) > ceiling:
				mask.Add(PixelKey(k))
				mask.Hot++
			case c < policy.MinCountFloor && neighbourMean(counts, x, y) >= exposed:
				mask.Add(PixelKey(k))
				mask.Cold++
			}
		}
	}
	return mask
}

// neighbourMean averages the in-bounds 8-neighbourhood of (x, y).
func neighbourMean(counts *PixelCounts, x, y int) float64 {
	res := counts.Resolution
	var sum float64
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if !res.Contains(nx, ny) {
				continue
			}
			sum += float64(counts.Counts[ny*res.Width+nx])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
