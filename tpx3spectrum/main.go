package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/next-exp/tpx3image_go/internal/cli"
	tpx3 "github.com/next-exp/tpx3image_go/pkg"
)

var configuration tpx3.Configuration

var (
	logger         cli.Logger
	VerbosityLevel int
)

func init() {
	logger = cli.NewLogger(os.Stdout, os.Stderr)
}

// tpx3spectrum writes only the spectrum reports of a capture and times each
// stage of the pipeline.
func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	fileIn := flag.String("file", "", "Capture file, overrides file_in")
	plot := flag.Bool("plot", false, "Also write a PNG plot of the spectrum")
	flag.Parse()

	var err error
	configuration, err = cli.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	if *fileIn != "" {
		configuration.FileIn = *fileIn
	}
	if *plot {
		configuration.SpectrumPlot = true
	}
	if err := configuration.Validate(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	tpx3.SetConfiguration(configuration)
	tpx3.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		cli.PrintConfiguration(configuration, logger)
	}

	files, err := cli.Captures(configuration)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	known, err := cli.KnownDeadPixels(configuration)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	for _, file := range files {
		if err := spectrum(file, known); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	}
}

func spectrum(file string, known []tpx3.PixelKey) error {
	start := time.Now()
	src, err := tpx3.OpenCapture(file)
	if err != nil {
		return err
	}
	defer src.Close()

	events, stats, err := tpx3.ReadAll(src, configuration.Resolution())
	if err != nil {
		return fmt.Errorf("error reading %s: %w", file, err)
	}
	decoded := time.Since(start)

	result, err := tpx3.Process(events, known, configuration)
	if err != nil {
		return err
	}
	result.Dataset = tpx3.DatasetName(file)
	result.Stats = stats
	processed := time.Since(start)

	outputDir := configuration.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(file)
	}
	paths, err := tpx3.WriteReports(outputDir, result, configuration)
	if err != nil {
		return err
	}
	total := time.Since(start)

	message := fmt.Sprintf("(%s) decode %d ms, process %d ms, reports %d ms, %d hits, %d spectrum points",
		result.Dataset, decoded.Milliseconds(), (processed - decoded).Milliseconds(), (total - processed).Milliseconds(),
		len(result.Hits), len(result.Accumulator.Histogram.FullSpectrum()))
	logger.Info(message, "main")
	for _, p := range paths {
		logger.Info(fmt.Sprintf("Wrote %s", p), "main")
	}
	return nil
}
