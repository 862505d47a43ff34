package tpx3

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// IntensityGrid is a row-major count image of the detector.
type IntensityGrid struct {
	Bin    int64
	Label  float64 // ns, bin centre
	Width  int
	Height int
	Counts []uint32
}

func NewIntensityGrid(res Resolution) *IntensityGrid {
	return &IntensityGrid{Width: res.Width, Height: res.Height, Counts: make([]uint32, res.Pixels())}
}

func (g *IntensityGrid) At(x, y int) uint32 {
	return g.Counts[y*g.Width+x]
}

func (g *IntensityGrid) Total() uint64 {
	var total uint64
	for _, c := range g.Counts {
		total += uint64(c)
	}
	return total
}

func (g *IntensityGrid) Max() uint32 {
	if len(g.Counts) == 0 {
		return 0
	}
	return slices.Max(g.Counts)
}

func (g *IntensityGrid) Merge(other *IntensityGrid) {
	for i, c := range other.Counts {
		g.Counts[i] += c
	}
}

// binCells holds the populated cells of one time bin, keyed by grid index.
type binCells map[int]uint32

func (c binCells) total() uint64 {
	var total uint64
	for _, n := range c {
		total += uint64(n)
	}
	return total
}

// Accumulator builds the TIC image, one image per populated time bin and the
// spectra. Per-bin counts stay sparse until Finalize, so memory follows the
// number of hits rather than the number of bins.
type Accumulator struct {
	Resolution Resolution
	Histogram  *Histogram
	TIC        *IntensityGrid
	Hits       uint64
	Outside    uint64 // hits whose centroid falls off the grid
	bins       map[int64]binCells
}

func NewAccumulator(res Resolution, binning TimeBinning) *Accumulator {
	return &Accumulator{
		Resolution: res,
		Histogram:  NewHistogram(binning),
		TIC:        NewIntensityGrid(res),
		bins:       make(map[int64]binCells),
	}
}

func (a *Accumulator) Add(h Hit) {
	a.Hits++
	bin, valid := a.Histogram.Add(h)
	cell, inside := a.Resolution.Cell(h.X, h.Y)
	if !inside {
		a.Outside++
		return
	}
	a.TIC.Counts[cell]++
	if !valid {
		return
	}
	a.cells(bin)[cell]++
}

func (a *Accumulator) cells(bin int64) binCells {
	c, ok := a.bins[bin]
	if !ok {
		c = make(binCells)
		a.bins[bin] = c
	}
	return c
}

// Merge adds other into a. Both must share resolution and binning.
func (a *Accumulator) Merge(other *Accumulator) {
	a.Hits += other.Hits
	a.Outside += other.Outside
	a.TIC.Merge(other.TIC)
	a.Histogram.Merge(other.Histogram)
	for bin, src := range other.bins {
		dst := a.cells(bin)
		for cell, n := range src {
			dst[cell] += n
		}
	}
}

// Bins returns the populated bins in ascending order.
func (a *Accumulator) Bins() []int64 {
	bins := make([]int64, 0, len(a.bins))
	for bin := range a.bins {
		bins = append(bins, bin)
	}
	slices.Sort(bins)
	return bins
}

// Finalize builds the grids of the bins whose total reaches minBinHits,
// ordered by bin. Dropped bins are only counted.
func (a *Accumulator) Finalize(minBinHits uint64) []*IntensityGrid {
	retained := make([]*IntensityGrid, 0)
	dropped := 0
	for _, bin := range a.Bins() {
		cells := a.bins[bin]
		if cells.total() < minBinHits {
			dropped++
			continue
		}
		g := NewIntensityGrid(a.Resolution)
		g.Bin = bin
		g.Label = a.Histogram.Binning.Label(bin)
		for cell, n := range cells {
			g.Counts[cell] = n
		}
		retained = append(retained, g)
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Retained %d of %d time bins (%d below %d hits)", len(retained), len(a.bins), dropped, minBinHits)
		logger.Info(message, "accumulator")
	}
	return retained
}

// Accumulate fills an accumulator from hits using numWorkers private
// accumulators merged by sum.
func Accumulate(hits []Hit, res Resolution, binning TimeBinning, numWorkers int) (*Accumulator, error) {
	chunks := splitEvenly(len(hits), numWorkers)
	partials, err := runWorkers(numWorkers, chunks, func(c chunk) (*Accumulator, error) {
		acc := NewAccumulator(res, binning)
		for _, h := range hits[c.start:c.end] {
			acc.Add(h)
		}
		return acc, nil
	})
	if err != nil {
		return nil, fmt.Errorf("accumulating hits: %w", err)
	}
	total := NewAccumulator(res, binning)
	for _, p := range partials {
		total.Merge(p)
	}
	return total, nil
}
