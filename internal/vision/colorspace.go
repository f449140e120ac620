package vision

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// BGRFrame is a packed 8-bit BGR raster, the layout OpenCV capture produces.
type BGRFrame struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

func NewBGRFrame(r image.Rectangle) *BGRFrame {
	return &BGRFrame{
		Pix:    make([]byte, 3*r.Dx()*r.Dy()),
		Stride: 3 * r.Dx(),
		Rect:   r,
	}
}

func (f *BGRFrame) ColorModel() color.Model { return color.RGBAModel }

func (f *BGRFrame) Bounds() image.Rectangle { return f.Rect }

func (f *BGRFrame) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(f.Rect)) {
		return color.RGBA{}
	}
	i := f.PixOffset(x, y)
	return color.RGBA{R: f.Pix[i+2], G: f.Pix[i+1], B: f.Pix[i], A: 0xff}
}

func (f *BGRFrame) PixOffset(x, y int) int {
	return (y-f.Rect.Min.Y)*f.Stride + (x-f.Rect.Min.X)*3
}

func (f *BGRFrame) SetBGR(x, y int, b, g, r uint8) {
	if !(image.Point{X: x, Y: y}.In(f.Rect)) {
		return
	}
	i := f.PixOffset(x, y)
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = b, g, r
}

// toRGB reorders a frame's channels into the RGB layout the landmark detectors
// read. Pixels are copied one to one, never resampled.
func toRGB(img image.Image) *image.RGBA {
	switch src := img.(type) {
	case *image.RGBA:
		return src
	case *BGRFrame:
		return bgrToRGBA(src)
	}

	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

func bgrToRGBA(src *BGRFrame) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		in := src.Pix[y*src.Stride : y*src.Stride+3*w]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+4*w]
		for x := 0; x < w; x++ {
			out[4*x] = in[3*x+2]
			out[4*x+1] = in[3*x+1]
			out[4*x+2] = in[3*x]
			out[4*x+3] = 0xff
		}
	}
	return dst
}

func validFrame(img image.Image) bool {
	if img == nil {
		return false
	}
	switch f := img.(type) {
	case *image.RGBA:
		if f == nil || len(f.Pix) < f.Stride*f.Rect.Dy() {
			return false
		}
	case *BGRFrame:
		if f == nil || len(f.Pix) < f.Stride*f.Rect.Dy() || f.Stride < 3*f.Rect.Dx() {
			return false
		}
	}
	return !img.Bounds().Empty()
}
