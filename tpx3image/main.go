package main

import (
	"flag"
	"fmt"
	"os"
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

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	var err error
	configuration, err = cli.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	if err := configuration.Validate(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	tpx3.SetConfiguration(configuration)
	tpx3.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		cli.PrintConfiguration(configuration, logger)
	}

	known, err := cli.KnownDeadPixels(configuration)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	files, err := cli.Captures(configuration)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if len(files) == 0 {
		message := fmt.Sprintf("No %s or %s captures found in %s", tpx3.CaptureExtension, tpx3.CentroidedExtension, configuration.InputDir)
		logger.Error(message)
		os.Exit(1)
	}

	outputDir := configuration.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		logger.Error((&tpx3.IOError{Filename: outputDir, Err: err}).Error())
		os.Exit(1)
	}

	for _, file := range files {
		if err := processCapture(file, known, outputDir); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	}
}

func processCapture(file string, known []tpx3.PixelKey, outputDir string) error {
	start := time.Now()
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Processing %s", file), "main")
	}

	result, err := tpx3.RunFile(file, known, configuration)
	if err != nil {
		return err
	}

	if configuration.WriteImages {
		if _, err := tpx3.WriteImages(outputDir, result, configuration.ImageScale); err != nil {
			return err
		}
	}
	if configuration.WriteReports {
		if _, err := tpx3.WriteReports(outputDir, result, configuration); err != nil {
			return err
		}
	}
	if configuration.ExportHDF5 {
		path, err := tpx3.ExportHits(outputDir, result, configuration.CompressionLevel)
		if err != nil {
			return fmt.Errorf("error exporting hits: %w", err)
		}
		if VerbosityLevel > 0 {
			logger.Info(fmt.Sprintf("Hits written to %s", path), "main")
		}
	}
	if configuration.WriteCentroided {
		if _, err := tpx3.ExportCentroided(outputDir, result); err != nil {
			return err
		}
	}

	message := fmt.Sprintf("%s: %d events, %d dead pixels, %d hits, %d images in %d ms",
		result.Dataset, result.Events, result.Mask.Count(), len(result.Hits), len(result.Grids)+1, time.Since(start).Milliseconds())
	logger.Info(message, "main")
	return nil
}
