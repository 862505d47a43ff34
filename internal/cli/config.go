package cli

import (
	"encoding/json"
	"fmt"
	"os"

	tpx3 "github.com/next-exp/tpx3image_go/pkg"
)

// LoadConfiguration reads a JSON configuration over the defaults. An empty
// filename yields the defaults.
func LoadConfiguration(filename string) (tpx3.Configuration, error) {
	config := tpx3.DefaultConfiguration()
	if filename == "" {
		return config, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, &tpx3.IOError{Filename: filename, Err: err}
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, fmt.Errorf("parsing %s: %w", filename, err)
	}
	return config, nil
}

func PrintConfiguration(config tpx3.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("Input dir: %s", config.InputDir), "config")
	logger.Info(fmt.Sprintf("Output dir: %s", config.OutputDir), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Resolution: %dx%d", config.Width, config.Height), "config")
	logger.Info(fmt.Sprintf("Cluster tolerance: %d ps", config.ClusterTolerance), "config")
	logger.Info(fmt.Sprintf("Weight by ToT: %t", config.WeightByTot), "config")
	logger.Info(fmt.Sprintf("Bin width: %d ps", config.BinWidth), "config")
	logger.Info(fmt.Sprintf("Time origin: %d ps", config.TimeOrigin), "config")
	logger.Info(fmt.Sprintf("ToF pulse length: %d ps", config.TofPulseLength), "config")
	logger.Info(fmt.Sprintf("Spectrum resolution: %d ps", config.SpectrumResolution), "config")
	logger.Info(fmt.Sprintf("Min bin hits: %d", config.MinBinHits), "config")
	logger.Info(fmt.Sprintf("Dead pixel sample: %d", config.DeadPixelSample), "config")
	logger.Info(fmt.Sprintf("Min count floor: %d", config.MinCountFloor), "config")
	logger.Info(fmt.Sprintf("Max count multiplier: %g", config.MaxCountMultiplier), "config")
	logger.Info(fmt.Sprintf("Dead pixel statistic: %s", config.DeadPixelStatistic), "config")
	logger.Info(fmt.Sprintf("Exposed fraction: %g", config.ExposedFraction), "config")
	logger.Info(fmt.Sprintf("Image scale: %d", config.ImageScale), "config")
	logger.Info(fmt.Sprintf("Write images: %t", config.WriteImages), "config")
	logger.Info(fmt.Sprintf("Write reports: %t", config.WriteReports), "config")
	logger.Info(fmt.Sprintf("Spectrum plot: %t", config.SpectrumPlot), "config")
	logger.Info(fmt.Sprintf("Export HDF5: %t", config.ExportHDF5), "config")
	logger.Info(fmt.Sprintf("Write centroided: %t", config.WriteCentroided), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	if !config.NoDB {
		logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
		logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
		logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
		logger.Info(fmt.Sprintf("DB path: %s", config.DBPath), "config")
		logger.Info(fmt.Sprintf("Detector ID: %s", config.DetectorID), "config")
	}
}

// KnownDeadPixels loads the calibration list when a database is configured.
func KnownDeadPixels(config tpx3.Configuration) ([]tpx3.PixelKey, error) {
	if config.NoDB {
		return nil, nil
	}
	db, err := tpx3.ConnectFromConfiguration(config)
	if err != nil {
		return nil, fmt.Errorf("Error connection to database: %w", err)
	}
	defer db.Close()
	return tpx3.LoadKnownDeadPixels(db, config.DetectorID, config.Resolution())
}

// Captures returns file_in when set, otherwise every capture in input_dir.
func Captures(config tpx3.Configuration) ([]string, error) {
	if config.FileIn != "" {
		return []string{config.FileIn}, nil
	}
	return tpx3.FindCaptures(config.InputDir)
}
