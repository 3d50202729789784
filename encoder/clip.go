package encoder

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

// CLIP ViT-B/32 normalization constants.
var (
	CLIPMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	CLIPStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// DefaultCLIPSize is the input resolution of CLIP ViT-B/32.
const DefaultCLIPSize = 224

// CLIPPreprocessor reproduces the CLIP image transform: RGB conversion,
// center square crop, bicubic resize to Size×Size, scaling to [0,1] and
// per-channel normalization, laid out as [1,3,Size,Size].
type CLIPPreprocessor struct {
	Size int
	Mean [3]float32
	Std  [3]float32
}

// NewCLIPPreprocessor returns a preprocessor with the CLIP constants.
func NewCLIPPreprocessor(size int) *CLIPPreprocessor {
	if size <= 0 {
		size = DefaultCLIPSize
	}
	return &CLIPPreprocessor{Size: size, Mean: CLIPMean, Std: CLIPStd}
}

// Preprocess implements Preprocessor.
func (p *CLIPPreprocessor) Preprocess(img image.Image) (Tensor, error) {
	if img == nil {
		return Tensor{}, errors.New("encoder: nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return Tensor{}, errors.New("encoder: empty image")
	}
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	size := p.Size
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := dst.PixOffset(x, y)
			px := dst.Pix[off : off+4 : off+4]
			a := float32(px[3])
			for c := 0; c < 3; c++ {
				v := float32(px[c])
				// straight alpha, matching a plain RGB conversion
				if a > 0 && a < 255 {
					v = min(v*255/a, 255)
				}
				data[c*plane+y*size+x] = (v/255 - p.Mean[c]) / p.Std[c]
			}
		}
	}
	return Tensor{Shape: []int64{1, 3, int64(size), int64(size)}, Data: data}, nil
}
