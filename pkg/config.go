package tpx3

import "fmt"

type Configuration struct {
	FileIn             string    `json:"file_in"`
	InputDir           string    `json:"input_dir"`
	OutputDir          string    `json:"output_dir"`
	Verbosity          int       `json:"verbosity"`
	NumWorkers         int       `json:"num_workers"`
	Width              int       `json:"width"`
	Height             int       `json:"height"`
	ClusterTolerance   int64     `json:"cluster_tolerance"`
	WeightByTot        bool      `json:"weight_by_tot"`
	BinWidth           int64     `json:"bin_width"`
	TimeOrigin         int64     `json:"time_origin"`
	TofPulseLength     int64     `json:"tof_pulse_length"`
	SpectrumResolution int64     `json:"spectrum_resolution"`
	MinBinHits         uint64    `json:"min_bin_hits"`
	DeadPixelSample    int       `json:"dead_pixel_sample"`
	MinCountFloor      uint32    `json:"min_count_floor"`
	MaxCountMultiplier float64   `json:"max_count_multiplier"`
	DeadPixelStatistic Statistic `json:"dead_pixel_statistic"`
	ExposedFraction    float64   `json:"exposed_fraction"`
	ImageScale         int       `json:"image_scale"`
	WriteImages        bool      `json:"write_images"`
	WriteReports       bool      `json:"write_reports"`
	SpectrumPlot       bool      `json:"spectrum_plot"`
	ExportHDF5         bool      `json:"export_hdf5"`
	WriteCentroided    bool      `json:"write_centroided"`
	CompressionLevel   int       `json:"compression_level"`
	NoDB               bool      `json:"no_db"`
	DBDriver           string    `json:"db_driver"`
	Host               string    `json:"host"`
	User               string    `json:"user"`
	Passwd             string    `json:"pass"`
	DBName             string    `json:"dbname"`
	DBPath             string    `json:"db_path"`
	DetectorID         string    `json:"detector_id"`
}

var configuration = DefaultConfiguration()

// DefaultConfiguration returns the values used when a key is missing from the
// configuration file. Times are in picoseconds.
func DefaultConfiguration() Configuration {
	return Configuration{
		InputDir:           ".",
		Verbosity:          0,
		NumWorkers:         1,
		Width:              256,
		Height:             256,
		ClusterTolerance:   500_000,
		WeightByTot:        true,
		BinWidth:           200_000,
		TimeOrigin:         0,
		TofPulseLength:     0,
		SpectrumResolution: 1563,
		MinBinHits:         1000,
		DeadPixelSample:    0,
		MinCountFloor:      1,
		MaxCountMultiplier: 10,
		DeadPixelStatistic: StatisticMedian,
		ExposedFraction:    0.5,
		ImageScale:         1,
		WriteImages:        true,
		WriteReports:       true,
		SpectrumPlot:       false,
		ExportHDF5:         false,
		WriteCentroided:    false,
		CompressionLevel:   4,
		NoDB:               true,
		DBDriver:           "mysql",
	}
}

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

// Validate rejects parameters that would make the run meaningless. Values are
// never clamped.
func (c Configuration) Validate() error {
	switch {
	case c.Width < 1 || c.Width > MaxResolution:
		return &ConfigError{Field: "width", Reason: fmt.Sprintf("must be in 1..%d, got %d", MaxResolution, c.Width)}
	case c.Height < 1 || c.Height > MaxResolution:
		return &ConfigError{Field: "height", Reason: fmt.Sprintf("must be in 1..%d, got %d", MaxResolution, c.Height)}
	case c.NumWorkers < 1:
		return &ConfigError{Field: "num_workers", Reason: fmt.Sprintf("must be at least 1, got %d", c.NumWorkers)}
	case c.ClusterTolerance < 0:
		return &ConfigError{Field: "cluster_tolerance", Reason: fmt.Sprintf("must not be negative, got %d", c.ClusterTolerance)}
	case c.BinWidth <= 0:
		return &ConfigError{Field: "bin_width", Reason: fmt.Sprintf("must be positive, got %d", c.BinWidth)}
	case c.SpectrumResolution <= 0:
		return &ConfigError{Field: "spectrum_resolution", Reason: fmt.Sprintf("must be positive, got %d", c.SpectrumResolution)}
	case c.TofPulseLength < 0:
		return &ConfigError{Field: "tof_pulse_length", Reason: fmt.Sprintf("must not be negative, got %d", c.TofPulseLength)}
	case c.DeadPixelSample < 0:
		return &ConfigError{Field: "dead_pixel_sample", Reason: fmt.Sprintf("must not be negative, got %d", c.DeadPixelSample)}
	case c.ImageScale < 1:
		return &ConfigError{Field: "image_scale", Reason: fmt.Sprintf("must be at least 1, got %d", c.ImageScale)}
	case c.CompressionLevel < 0 || c.CompressionLevel > 9:
		return &ConfigError{Field: "compression_level", Reason: fmt.Sprintf("must be in 0..9, got %d", c.CompressionLevel)}
	case !c.NoDB && c.DBDriver != "mysql" && c.DBDriver != "sqlite":
		return &ConfigError{Field: "db_driver", Reason: fmt.Sprintf("unknown driver %q", c.DBDriver)}
	}
	return c.DeadPixelPolicy().Validate()
}

func (c Configuration) Resolution() Resolution {
	return Resolution{Width: c.Width, Height: c.Height}
}

func (c Configuration) ClusterConfig() ClusterConfig {
	return ClusterConfig{Tolerance: c.ClusterTolerance, WeightByTot: c.WeightByTot}
}

func (c Configuration) TimeBinning() TimeBinning {
	return TimeBinning{
		Origin:      c.TimeOrigin,
		Width:       c.BinWidth,
		PulseLength: c.TofPulseLength,
		Resolution:  c.SpectrumResolution,
	}
}

func (c Configuration) DeadPixelPolicy() DeadPixelPolicy {
	return DeadPixelPolicy{
		MinCountFloor:             c.MinCountFloor,
		MaxCountCeilingMultiplier: c.MaxCountMultiplier,
		Statistic:                 c.DeadPixelStatistic,
		ExposedFraction:           c.ExposedFraction,
	}
}
