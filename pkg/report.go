package tpx3

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func FullSpectrumFileName(dataset string) string {
	return dataset + "_report_full_spectrum.csv"
}

func SpectrumHTMLFileName(dataset string) string {
	return dataset + "_report_spectrum.html"
}

func SpectrumPlotFileName(dataset string) string {
	return dataset + "_report_spectrum.png"
}

// WriteSpectrumCSV writes time (ps) and count columns.
func WriteSpectrumCSV(path string, points []SpectrumPoint) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return &IOError{Filename: path, Err: err}
	}
	defer closeOutput(file, path, &err)

	w := csv.NewWriter(file)
	if err := w.Write([]string{"time", "count"}); err != nil {
		return &IOError{Filename: path, Err: err}
	}
	for _, p := range points {
		record := []string{strconv.FormatInt(p.Time, 10), strconv.FormatUint(uint64(p.Count), 10)}
		if err := w.Write(record); err != nil {
			return &IOError{Filename: path, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &IOError{Filename: path, Err: err}
	}
	return nil
}

// SpectrumChart builds the line chart of a binned spectrum, time in ns.
func SpectrumChart(dataset string, points []SpectrumPoint) *charts.Line {
	x := make([]string, 0, len(points))
	y := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		x = append(x, strconv.FormatFloat(float64(p.Time)/1000, 'f', 1, 64))
		y = append(y, opts.LineData{Value: p.Count})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: dataset + " spectrum", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Time of flight spectrum", Subtitle: fmt.Sprintf("dataset=%s bins=%d", dataset, len(points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "ToF (ns)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Counts", NameLocation: "middle", NameGap: 50}),
	)
	line.SetXAxis(x).AddSeries("counts", y)
	return line
}

func WriteSpectrumHTML(path string, dataset string, points []SpectrumPoint) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return &IOError{Filename: path, Err: err}
	}
	defer closeOutput(file, path, &err)

	if err := SpectrumChart(dataset, points).Render(file); err != nil {
		return &IOError{Filename: path, Err: err}
	}
	return nil
}

// WriteSpectrumPlot saves a static plot of the zero-padded spectrum.
func WriteSpectrumPlot(path string, dataset string, points []SpectrumPoint) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Spectrum", dataset)
	p.X.Label.Text = "ToF (ns)"
	p.Y.Label.Text = "Counts"

	xys := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		xys = append(xys, plotter.XY{X: float64(pt.Time) / 1000, Y: float64(pt.Count)})
	}
	if len(xys) > 0 {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("spectrum line: %w", err)
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return &IOError{Filename: path, Err: err}
	}
	return nil
}

// WriteReports writes the spectrum reports of result into dir.
func WriteReports(dir string, result *Result, config Configuration) ([]string, error) {
	hist := result.Accumulator.Histogram
	full := ZeroPad(hist.FullSpectrum(), hist.Binning.Resolution)
	paths := make([]string, 0, 3)

	csvPath := filepath.Join(dir, FullSpectrumFileName(result.Dataset))
	if err := WriteSpectrumCSV(csvPath, full); err != nil {
		return paths, err
	}
	paths = append(paths, csvPath)

	htmlPath := filepath.Join(dir, SpectrumHTMLFileName(result.Dataset))
	if err := WriteSpectrumHTML(htmlPath, result.Dataset, hist.BinSpectrum()); err != nil {
		return paths, err
	}
	paths = append(paths, htmlPath)

	if config.SpectrumPlot {
		plotPath := filepath.Join(dir, SpectrumPlotFileName(result.Dataset))
		if err := WriteSpectrumPlot(plotPath, result.Dataset, full); err != nil {
			return paths, err
		}
		paths = append(paths, plotPath)
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Wrote %d reports to %s", len(paths), dir)
		logger.Info(message, "report")
	}
	return paths, nil
}
