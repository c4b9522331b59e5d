package imaging

import (
	"image"
	"math"
)

// Plane is a grayscale view of a raster with float64 luminance values in
// [0, 255]. All native stage pixel math runs on Planes.
type Plane struct {
	W, H int
	Pix  []float64
}

// NewPlane converts a raster to a luminance plane using the BT.601 formula.
func NewPlane(img image.Image) *Plane {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	p := &Plane{W: w, H: h, Pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			p.Pix[y*w+x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 256.0
		}
	}
	return p
}

// At returns the luminance at (x, y), clamped to the plane bounds.
func (p *Plane) At(x, y int) float64 {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= p.W {
		x = p.W - 1
	}
	if y >= p.H {
		y = p.H - 1
	}
	return p.Pix[y*p.W+x]
}

// Region copies a sub-rectangle, clamping it to the plane bounds.
func (p *Plane) Region(x, y, w, h int) *Plane {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > p.W {
		w = p.W - x
	}
	if y+h > p.H {
		h = p.H - y
	}
	if w < 1 || h < 1 {
		return &Plane{W: 0, H: 0}
	}

	out := &Plane{W: w, H: h, Pix: make([]float64, w*h)}
	for j := 0; j < h; j++ {
		copy(out.Pix[j*w:(j+1)*w], p.Pix[(y+j)*p.W+x:(y+j)*p.W+x+w])
	}
	return out
}

// Resize scales the plane to w×h with bilinear sampling.
func (p *Plane) Resize(w, h int) *Plane {
	if p.W == 0 || p.H == 0 || w < 1 || h < 1 {
		return &Plane{W: 0, H: 0}
	}

	out := &Plane{W: w, H: h, Pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		srcY := float64(y) * float64(p.H) / float64(h)
		y0 := int(math.Floor(srcY))
		fy := srcY - float64(y0)
		for x := 0; x < w; x++ {
			srcX := float64(x) * float64(p.W) / float64(w)
			x0 := int(math.Floor(srcX))
			fx := srcX - float64(x0)

			v00 := p.At(x0, y0)
			v10 := p.At(x0+1, y0)
			v01 := p.At(x0, y0+1)
			v11 := p.At(x0+1, y0+1)

			out.Pix[y*w+x] = (1-fx)*(1-fy)*v00 + fx*(1-fy)*v10 + (1-fx)*fy*v01 + fx*fy*v11
		}
	}
	return out
}

// Mean returns the average luminance, 0 for an empty plane.
func (p *Plane) Mean() float64 {
	if len(p.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.Pix {
		sum += v
	}
	return sum / float64(len(p.Pix))
}

// Variance returns the luminance variance, 0 for an empty plane.
func (p *Plane) Variance() float64 {
	if len(p.Pix) == 0 {
		return 0
	}
	mean := p.Mean()
	var sum float64
	for _, v := range p.Pix {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(p.Pix))
}

// EdgeDensity returns the fraction of pixels whose horizontal plus vertical
// gradient magnitude exceeds the threshold. Faces and printed text score
// higher than flat backgrounds.
func (p *Plane) EdgeDensity(threshold float64) float64 {
	if p.W < 3 || p.H < 3 {
		return 0
	}
	edges := 0
	total := 0
	for y := 1; y < p.H-1; y++ {
		for x := 1; x < p.W-1; x++ {
			gx := p.At(x+1, y) - p.At(x-1, y)
			gy := p.At(x, y+1) - p.At(x, y-1)
			if math.Abs(gx)+math.Abs(gy) > threshold {
				edges++
			}
			total++
		}
	}
	return float64(edges) / float64(total)
}

// Clamp bounds val to [min, max].
func Clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
