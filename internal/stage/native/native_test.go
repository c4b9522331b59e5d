package native

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/verid-io/verid/internal/imaging"
)

// checkerRaster fills a w×h gray raster with background and draws a coarse
// checkerboard block at (fx, fy, fw, fh) to stand in for a textured face.
func checkerRaster(w, h, fx, fy, fw, fh int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	for y := fy; y < fy+fh && y < h; y++ {
		for x := fx; x < fx+fw && x < w; x++ {
			if ((x-fx)/10+(y-fy)/10)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func toImage(t *testing.T, raster image.Image) *imaging.Image {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	img, err := imaging.Decode(buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

func toBase64Frame(t *testing.T, raster image.Image) string {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
