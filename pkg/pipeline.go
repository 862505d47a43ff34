package tpx3

import (
	"fmt"
	"io"

	"golang.org/x/exp/slices"
)

// Result holds everything a run produces for one capture.
type Result struct {
	Dataset     string
	Stats       ReaderStats
	Events      int
	Masked      int
	Mask        *DeadPixelMask
	Hits        []Hit
	Accumulator *Accumulator
	Grids       []*IntensityGrid // retained per-bin grids
}

// Process runs dead-pixel detection, clustering and accumulation over decoded
// events. known pixels are added to the statistical mask.
func Process(events []RawEvent, known []PixelKey, config Configuration) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	res := config.Resolution()

	slices.SortStableFunc(events, func(a, b RawEvent) int {
		return cmpOrdered(a.Toa, b.Toa)
	})

	sample := events
	if config.DeadPixelSample > 0 && config.DeadPixelSample < len(events) {
		sample = events[:config.DeadPixelSample]
	}
	counts, err := CountPixels(sample, res, config.NumWorkers)
	if err != nil {
		return nil, fmt.Errorf("counting pixels: %w", err)
	}
	mask := DetectDeadPixels(counts, config.DeadPixelPolicy())
	added := mask.Union(known)
	if config.Verbosity > 0 {
		message := fmt.Sprintf("Dead pixels: %d (%d hot, %d cold, %d known), reference count %.1f", mask.Count(), mask.Hot, mask.Cold, added, mask.Reference)
		logger.Info(message, "deadpixels")
	}

	filtered, masked := mask.Filter(events)
	if config.Verbosity > 0 {
		message := fmt.Sprintf("Dropped %d of %d events on dead pixels", masked, len(events))
		logger.Info(message, "deadpixels")
	}

	hits, err := ClusterParallel(filtered, config.ClusterConfig(), res, config.NumWorkers)
	if err != nil {
		return nil, err
	}

	acc, err := Accumulate(hits, res, config.TimeBinning(), config.NumWorkers)
	if err != nil {
		return nil, err
	}
	if acc.Histogram.Negative > 0 && config.Verbosity > 0 {
		message := fmt.Sprintf("Ignored %d hits with negative time of flight", acc.Histogram.Negative)
		logger.Info(message, "binning")
	}

	return &Result{
		Events:      len(events),
		Masked:      masked,
		Mask:        mask,
		Hits:        hits,
		Accumulator: acc,
		Grids:       acc.Finalize(config.MinBinHits),
	}, nil
}

// Run decodes src and processes it.
func Run(src io.Reader, known []PixelKey, config Configuration) (*Result, error) {
	events, stats, err := ReadAll(src, config.Resolution())
	if err != nil {
		return nil, err
	}
	if config.Verbosity > 0 {
		message := fmt.Sprintf("Decoded %d records: %d hits, %d blobs, %d TDCs, %d control, %d chunk headers",
			stats.Records, stats.Hits, stats.Blobs, stats.Tdcs, stats.Control, stats.ChunkHeaders)
		logger.Info(message, "reader")
	}
	result, err := Process(events, known, config)
	if err != nil {
		return nil, err
	}
	result.Stats = stats
	return result, nil
}

// RunFile processes the capture at path.
func RunFile(path string, known []PixelKey, config Configuration) (*Result, error) {
	src, err := OpenCapture(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	result, err := Run(src, known, config)
	if err != nil {
		return nil, fmt.Errorf("processing %s: %w", path, err)
	}
	result.Dataset = DatasetName(path)
	return result, nil
}
