// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"

	"github.com/rubenfonseca/fastimage"
	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrNotImage is returned for files that no registered decoder accepts.
var ErrNotImage = errors.New("not an image")

// Probe returns the width and height of an image file from its header.
//
// fastimage reads only the first bytes; formats it does not know (WebP)
// fall back to image.DecodeConfig.
func Probe(path string) (width, height int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	if _, size, err := fastimage.DetectImageTypeFromReader(file); err == nil && size != nil {
		return int(size.Width), int(size.Height), nil
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", path, ErrNotImage)
	}
	return cfg.Width, cfg.Height, nil
}

// LoadImage decodes the file at path with DecodeImage.
func LoadImage(path string, size, channels int) ([]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	pixels, err := DecodeImage(file, size, channels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pixels, nil
}

// DecodeImage decodes an image, resizes it to size x size and returns
// HWC pixels scaled to [0, 1].
//
// channels is 3 for RGB or 1 for luminance.
func DecodeImage(r io.Reader, size, channels int) ([]float32, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float32, size*size*channels)
	for i := 0; i < size*size; i++ {
		r := float32(dst.Pix[4*i]) / 255
		g := float32(dst.Pix[4*i+1]) / 255
		b := float32(dst.Pix[4*i+2]) / 255
		if channels == 1 {
			out[i] = 0.299*r + 0.587*g + 0.114*b
			continue
		}
		out[3*i], out[3*i+1], out[3*i+2] = r, g, b
	}
	return out, nil
}
