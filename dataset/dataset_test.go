// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/convnet/config"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func writePNG(t *testing.T, path string, c color.Color, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

// kaggleDir builds {dir}/train with cats (blue) and dogs (red) and
// {dir}/test with unlabelled images.
func kaggleDir(t *testing.T, perClass, unlabelled int) string {
	t.Helper()
	dir := t.TempDir()
	train := filepath.Join(dir, "train")
	test := filepath.Join(dir, "test")
	require.NoError(t, os.MkdirAll(train, 0o750))
	require.NoError(t, os.MkdirAll(test, 0o750))

	for i := 0; i < perClass; i++ {
		writePNG(t, filepath.Join(train, fmt.Sprintf("cat.%d.png", i)), blue, 6, 4)
		writePNG(t, filepath.Join(train, fmt.Sprintf("dog.%d.png", i)), red, 5, 7)
	}
	for i := 1; i <= unlabelled; i++ {
		writePNG(t, filepath.Join(test, fmt.Sprintf("%d.png", i)), red, 3, 3)
	}
	require.NoError(t, os.WriteFile(filepath.Join(train, "notes.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(train, "cat.99.png"), []byte("not a png"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(train, "bird.1.png"), []byte("x"), 0o600))
	return dir
}

func testFlags(dir string) config.Flags {
	flags := config.Default()
	flags.DataDir = dir
	flags.BatchSize = 4
	flags.ImageSize = 2
	flags.NumThreads = 3
	flags.QueueCapacity = 8
	flags.ValidationFraction = 0.25
	flags.TestFraction = 0.25
	return flags
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name  string
		id    int
		label int
		ok    bool
	}{
		{"cat.12.jpg", 12, Cat, true},
		{"dog.0.png", 0, Dog, true},
		{"1234.jpg", 1234, Unlabelled, true},
		{"bird.3.jpg", 0, 0, false},
		{"cat.x.jpg", 0, 0, false},
		{"a.b.c.jpg", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, label, ok := parseName(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.id, id)
				assert.Equal(t, tt.label, label)
			}
		})
	}
}

func TestScan(t *testing.T) {
	dir := kaggleDir(t, 3, 2)

	examples, err := Scan(filepath.Join(dir, "train"))
	require.NoError(t, err)
	require.Len(t, examples, 6, "non-images and unknown names are skipped")
	assert.Equal(t, Cat, examples[0].Label)
	assert.Equal(t, 0, examples[0].ID)
	assert.Equal(t, Dog, examples[5].Label)
	assert.Equal(t, 2, examples[5].ID)

	_, err = Scan(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.png")
	writePNG(t, path, red, 5, 7)
	w, h, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, 5, w)
	assert.Equal(t, 7, h)

	junk := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(junk, []byte("junk"), 0o600))
	_, _, err = Probe(junk)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestSplit(t *testing.T) {
	examples := make([]Example, 20)
	for i := range examples {
		examples[i] = Example{Path: fmt.Sprint(i), ID: i, Label: i % 2}
	}

	train, valid, test := Split(examples, 0.1, 0.2, 7)
	assert.Len(t, test, 4)
	assert.Len(t, valid, 2)
	assert.Len(t, train, 14)

	seen := make(map[int]bool)
	for _, part := range [][]Example{train, valid, test} {
		for _, ex := range part {
			assert.False(t, seen[ex.ID], "example %d in two splits", ex.ID)
			seen[ex.ID] = true
		}
	}
	assert.Len(t, seen, 20)

	train2, _, _ := Split(examples, 0.1, 0.2, 7)
	assert.Equal(t, train, train2, "same seed, same split")
	assert.Equal(t, 0, examples[0].ID, "input untouched")
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 255
		if i%4 == 1 || i%4 == 2 {
			img.Pix[i] = 0 // red
		}
	}
	require.NoError(t, png.Encode(&buf, img))

	pixels, err := DecodeImage(bytes.NewReader(buf.Bytes()), 4, 3)
	require.NoError(t, err)
	require.Len(t, pixels, 4*4*3)
	assert.InDelta(t, 1, pixels[0], 1e-2)
	assert.InDelta(t, 0, pixels[1], 1e-2)
	assert.InDelta(t, 0, pixels[2], 1e-2)

	gray, err := DecodeImage(bytes.NewReader(buf.Bytes()), 2, 1)
	require.NoError(t, err)
	require.Len(t, gray, 4)
	assert.InDelta(t, 0.299, gray[0], 1e-2)

	_, err = DecodeImage(bytes.NewReader([]byte("nope")), 4, 3)
	assert.ErrorIs(t, err, ErrNotImage)
	_, err = DecodeImage(bytes.NewReader(buf.Bytes()), 4, 2)
	assert.Error(t, err)
}

func TestInputs_Epochs(t *testing.T) {
	ctx := context.Background()
	ds, err := Open(testFlags(kaggleDir(t, 5, 0)))
	require.NoError(t, err)
	require.Len(t, ds.Examples(Train), 6)

	input, err := ds.Inputs(Train, 2, false)
	require.NoError(t, err)
	defer input.Close()

	// 12 examples in batches of 4.
	total := 0
	for {
		batch, err := input.Next(ctx)
		if errors.Is(err, ErrOutOfRange) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, []int{batch.Size(), 2, 2, 3}, []int(batch.Images.Shape()))
		require.NotNil(t, batch.Labels)
		for i, path := range batch.Paths {
			wantRed := filepath.Base(path)[:3] == "dog"
			assert.Equal(t, wantRed, batch.Labels.Data()[i] == Dog)
			assert.Equal(t, wantRed, batch.Images.Data()[i*12] > 0.5)
		}
		total += batch.Size()
	}
	assert.Equal(t, 12, total)

	_, err = input.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestInputs_PartialFinalBatch(t *testing.T) {
	ctx := context.Background()
	ds, err := Open(testFlags(kaggleDir(t, 1, 7)))
	require.NoError(t, err)

	input, err := ds.Inputs(Kaggle, 1, true)
	require.NoError(t, err)
	defer input.Close()

	first, err := input.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, first.IDs)
	assert.Nil(t, first.Labels)

	second, err := input.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 7}, second.IDs)

	_, err = input.Next(ctx)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestInputs_ForeverAndClose(t *testing.T) {
	ds, err := Open(testFlags(kaggleDir(t, 2, 0)))
	require.NoError(t, err)

	input, err := ds.Inputs(Train, 0, false)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := input.Next(context.Background())
		require.NoError(t, err)
	}
	require.NoError(t, input.Close())
	require.NoError(t, input.Close())

	for {
		if _, err := input.Next(context.Background()); err != nil {
			assert.ErrorIs(t, err, ErrOutOfRange)
			break
		}
	}
}

func TestInputs_Errors(t *testing.T) {
	ds, err := Open(testFlags(kaggleDir(t, 2, 0)))
	require.NoError(t, err)

	_, err = ds.Inputs("holdout", 1, false)
	assert.ErrorIs(t, err, ErrUnknownInput)

	_, err = ds.Inputs(Kaggle, 1, true)
	assert.ErrorIs(t, err, ErrEmptyInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	input, err := ds.Inputs(Train, 0, false)
	require.NoError(t, err)
	defer input.Close()
	_, err = input.Next(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestOpenKaggle_WithoutTrain(t *testing.T) {
	ctx := context.Background()
	dir := kaggleDir(t, 1, 3)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "train")))

	_, err := Open(testFlags(dir))
	assert.ErrorIs(t, err, os.ErrNotExist)

	ds, err := OpenKaggle(testFlags(dir))
	require.NoError(t, err)
	assert.Len(t, ds.Examples(Kaggle), 3)
	assert.Empty(t, ds.Examples(Train))

	_, err = ds.Inputs(Train, 1, false)
	assert.ErrorIs(t, err, ErrEmptyInput)

	input, err := ds.Inputs(Kaggle, 1, true)
	require.NoError(t, err)
	defer input.Close()
	batch, err := input.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, batch.IDs)

	_, err = OpenKaggle(testFlags(t.TempDir()))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
