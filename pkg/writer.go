package tpx3

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// Writer exports the hits, mask and spectrum of one capture to HDF5.
type Writer struct {
	File            *hdf5.File
	Filename        string
	RunID           uuid.UUID
	RunGroup        *hdf5.Group
	HitsGroup       *hdf5.Group
	DetectorGroup   *hdf5.Group
	RunInfoTable    *hdf5.Dataset
	HitsTable       *hdf5.Dataset
	DeadPixelsTable *hdf5.Dataset
	SpectrumTable   *hdf5.Dataset
	HitCounter      int
	DeadCounter     int
	SpectrumCounter int
}

func HitsFileName(dataset string) string {
	return dataset + "_hits.h5"
}

func NewWriter(filename string, compression int) (*Writer, error) {
	writer := &Writer{Filename: filename, RunID: uuid.New()}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Creating file %s (run %s)", filename, writer.RunID)
		logger.Info(message, "hdf5writer")
	}

	var err error
	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}
	fail := func(err error) (*Writer, error) {
		return nil, errors.Join(err, writer.Close())
	}

	if writer.RunGroup, err = createGroup(writer.File, "Run"); err != nil {
		return fail(err)
	}
	if writer.HitsGroup, err = createGroup(writer.File, "Hits"); err != nil {
		return fail(err)
	}
	if writer.DetectorGroup, err = createGroup(writer.File, "Detector"); err != nil {
		return fail(err)
	}
	if writer.RunInfoTable, err = createTable(writer.RunGroup, "runInfo", RunInfoHDF5{}, compression); err != nil {
		return fail(err)
	}
	if writer.SpectrumTable, err = createTable(writer.RunGroup, "spectrum", SpectrumHDF5{}, compression); err != nil {
		return fail(err)
	}
	if writer.HitsTable, err = createTable(writer.HitsGroup, "hits", HitHDF5{}, compression); err != nil {
		return fail(err)
	}
	if writer.DeadPixelsTable, err = createTable(writer.DetectorGroup, "deadPixels", DeadPixelHDF5{}, compression); err != nil {
		return fail(err)
	}
	return writer, nil
}

func (w *Writer) WriteRunInfo(result *Result) error {
	info := []RunInfoHDF5{{
		uuid:       convertToHdf5String(w.RunID.String()),
		dataset:    convertToHdf5String(result.Dataset),
		records:    int64(result.Stats.Records),
		events:     int64(result.Events),
		hits:       int64(len(result.Hits)),
		deadPixels: int32(result.Mask.Count()),
	}}
	if err := writeArrayToTable(w.RunInfoTable, &info, 0); err != nil {
		return fmt.Errorf("writing run info: %w", err)
	}
	return nil
}

// WriteHits appends hits with their time bin, -1 when the time of flight is
// invalid.
func (w *Writer) WriteHits(hits []Hit, binning TimeBinning) error {
	// The array MUST be allocated at creation, if not, HDF5 will panic
	rows := make([]HitHDF5, len(hits))
	for i, h := range hits {
		bin := int64(-1)
		if tof, ok := binning.Tof(h); ok {
			bin = binning.Bin(tof)
		}
		rows[i] = HitHDF5{
			x:       float32(h.X),
			y:       float32(h.Y),
			toa:     h.Toa,
			trigger: h.Trigger,
			tot:     h.Tot,
			size:    h.Size,
			bin:     bin,
		}
	}
	if err := writeArrayToTable(w.HitsTable, &rows, w.HitCounter); err != nil {
		return fmt.Errorf("writing hits: %w", err)
	}
	w.HitCounter += len(rows)
	return nil
}

func (w *Writer) WriteDeadPixels(mask *DeadPixelMask) error {
	keys := mask.Keys()
	rows := make([]DeadPixelHDF5, len(keys))
	for i, k := range keys {
		x, y := mask.Resolution.XY(k)
		rows[i] = DeadPixelHDF5{col: int32(x), row: int32(y)}
	}
	if err := writeArrayToTable(w.DeadPixelsTable, &rows, w.DeadCounter); err != nil {
		return fmt.Errorf("writing dead pixels: %w", err)
	}
	w.DeadCounter += len(rows)
	return nil
}

func (w *Writer) WriteSpectrum(points []SpectrumPoint) error {
	rows := make([]SpectrumHDF5, len(points))
	for i, p := range points {
		rows[i] = SpectrumHDF5{time: p.Time, count: p.Count}
	}
	if err := writeArrayToTable(w.SpectrumTable, &rows, w.SpectrumCounter); err != nil {
		return fmt.Errorf("writing spectrum: %w", err)
	}
	w.SpectrumCounter += len(rows)
	return nil
}

// WriteResult exports everything in result.
func (w *Writer) WriteResult(result *Result) error {
	if err := w.WriteRunInfo(result); err != nil {
		return err
	}
	if err := w.WriteHits(result.Hits, result.Accumulator.Histogram.Binning); err != nil {
		return err
	}
	if err := w.WriteDeadPixels(result.Mask); err != nil {
		return err
	}
	return w.WriteSpectrum(result.Accumulator.Histogram.FullSpectrum())
}

func (w *Writer) Close() error {
	var errs []error
	closers := []interface{ Close() error }{}
	for _, d := range []*hdf5.Dataset{w.RunInfoTable, w.SpectrumTable, w.HitsTable, w.DeadPixelsTable} {
		if d != nil {
			closers = append(closers, d)
		}
	}
	for _, g := range []*hdf5.Group{w.RunGroup, w.HitsGroup, w.DetectorGroup} {
		if g != nil {
			closers = append(closers, g)
		}
	}
	if w.File != nil {
		closers = append(closers, w.File)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ExportHits writes result into dir as an HDF5 file and returns its path.
func ExportHits(dir string, result *Result, compression int) (string, error) {
	path := filepath.Join(dir, HitsFileName(result.Dataset))
	writer, err := NewWriter(path, compression)
	if err != nil {
		return "", err
	}
	if err := writer.WriteResult(result); err != nil {
		return "", errors.Join(err, writer.Close())
	}
	return path, writer.Close()
}
