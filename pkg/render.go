package tpx3

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// grayCeiling is the brightest value written, kept just below 0xFFFF.
const grayCeiling = 65530

// GridImage renders g as 16-bit grayscale normalised to its maximum count.
// A scale above 1 upsamples with nearest neighbour so pixels stay square.
func GridImage(g *IntensityGrid, scale int) image.Image {
	img := image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
	peak := float64(g.Max())
	if peak > 0 {
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				v := float64(g.At(x, y)) / peak * grayCeiling
				img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
			}
		}
	}
	if scale <= 1 {
		return img
	}
	dst := image.NewGray16(image.Rect(0, 0, g.Width*scale, g.Height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}

func TICFileName(dataset string) string {
	return dataset + "_tic.png"
}

// BinFileName names a per-bin image after its label with one decimal digit.
func BinFileName(dataset string, label float64) string {
	return fmt.Sprintf("%s_%.1f.png", dataset, label)
}

func WritePNG(path string, img image.Image) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return &IOError{Filename: path, Err: err}
	}
	defer closeOutput(file, path, &err)

	writer := bufio.NewWriter(file)
	if err := png.Encode(writer, img); err != nil {
		return &IOError{Filename: path, Err: err}
	}
	if err := writer.Flush(); err != nil {
		return &IOError{Filename: path, Err: err}
	}
	return nil
}

// WriteImages writes the TIC and every retained bin image into dir and returns
// the written paths.
func WriteImages(dir string, result *Result, scale int) ([]string, error) {
	paths := make([]string, 0, len(result.Grids)+1)

	tic := filepath.Join(dir, TICFileName(result.Dataset))
	if err := WritePNG(tic, GridImage(result.Accumulator.TIC, scale)); err != nil {
		return paths, err
	}
	paths = append(paths, tic)

	for _, g := range result.Grids {
		path := filepath.Join(dir, BinFileName(result.Dataset, g.Label))
		if err := WritePNG(path, GridImage(g, scale)); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Wrote %d images to %s", len(paths), dir)
		logger.Info(message, "render")
	}
	return paths, nil
}
