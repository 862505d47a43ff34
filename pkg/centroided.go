package tpx3

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/exp/slices"
)

const (
	tdcHeader  uint64 = 0x6A << 56
	blobHeader uint64 = 0xCA << 56
	spidrTicks uint64 = 409_600_000 // ps per spidr time step
)

func CentroidedFileName(dataset string) string {
	return dataset + CentroidedExtension
}

// WriteCentroided streams hits as a centroided capture that Reader decodes
// back into one event per hit. A trigger record precedes the first hit of
// every new trigger and a cluster extension record follows each hit merged
// from more than one pixel. Arrival times are truncated to the 1.5625 ns
// hit clock and triggers to the TDC clock.
func WriteCentroided(w io.Writer, hits []Hit) error {
	sorted := slices.Clone(hits)
	slices.SortStableFunc(sorted, compareHits)

	writer := bufio.NewWriter(w)
	var record [RecordSize]byte
	put := func(p uint64) error {
		binary.LittleEndian.PutUint64(record[:], p)
		_, err := writer.Write(record[:])
		return err
	}

	var trigger int64
	for _, h := range sorted {
		if h.Trigger != 0 && h.Trigger != trigger {
			if err := put(tdcRecord(h.Trigger)); err != nil {
				return err
			}
			trigger = h.Trigger
		}
		col, subX := pixelPosition(h.X)
		row, subY := pixelPosition(h.Y)
		if err := put(hitRecord(col, row, h.Toa, h.Tot)); err != nil {
			return err
		}
		if h.Size > 1 {
			if err := put(blobRecord(subX, subY, h.Tot, h.Size)); err != nil {
				return err
			}
		}
	}
	return writer.Flush()
}

// ExportCentroided writes result.Hits next to the other outputs as
// <dataset>.tpx3c.
func ExportCentroided(dir string, result *Result) (path string, err error) {
	path = filepath.Join(dir, CentroidedFileName(result.Dataset))
	file, err := os.Create(path)
	if err != nil {
		return path, &IOError{Filename: path, Err: err}
	}
	defer closeOutput(file, path, &err)

	if err := WriteCentroided(file, result.Hits); err != nil {
		return path, &IOError{Filename: path, Err: err}
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Wrote %d centroided hits to %s", len(result.Hits), path)
		logger.Info(message, "centroided")
	}
	return path, nil
}

// pixelPosition splits a centroid coordinate into its pixel and the offset
// inside it in 1/255 pixel.
func pixelPosition(v float64) (uint8, uint8) {
	if v <= 0 {
		return 0, 0
	}
	if v >= MaxResolution {
		return MaxResolution - 1, math.MaxUint8
	}
	pixel := math.Floor(v)
	return uint8(pixel), uint8(math.Round((v - pixel) * math.MaxUint8))
}

func hitRecord(col, row uint8, toa int64, tot uint32) uint64 {
	t := uint64(toa % HitLimit)
	c, r := uint64(col), uint64(row)
	pix := (c%2)<<2 | r%4
	units := (t % spidrTicks) * 16 / 25_000
	return uint64(tagHit)<<60 |
		(c&^1)<<52 |
		(r&^3)<<45 |
		pix<<44 |
		(units>>4)<<30 |
		uint64(tot/25%1024)<<20 |
		(^units&0xF)<<16 |
		t/spidrTicks
}

func tdcRecord(trigger int64) uint64 {
	t := uint64(trigger % TdcLimit)
	trigTime := (t % 25_000) * 4096 / 25_000
	steps := (trigTime&0x1FF)*12/512 + 1
	return tdcHeader | (t/25_000)<<12 | trigTime&0xE00 | steps<<5
}

func blobRecord(subX, subY uint8, tot uint32, size uint16) uint64 {
	coarse := uint64(tot/25/1024) & 0x00FF_FFFF
	return blobHeader | uint64(subX)<<48 | uint64(subY)<<40 | coarse<<16 | uint64(size)
}
