package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// prepareFrame converts a display photo into a high-contrast black-on-white
// frame Tesseract copes with: grayscale, contrast boost, slight sharpen,
// upscale of small captures, global threshold and a single dilation to close
// the gaps between the segments of seven-segment digits.
func prepareFrame(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 20)
	gray = imaging.Sharpen(gray, 0.6)
	if gray.Bounds().Dy() < 600 {
		gray = imaging.Resize(gray, 0, 900, imaging.Lanczos)
	}
	bin := thresholdFrame(gray, 160)
	return closeSegmentGaps(bin), nil
}

// thresholdFrame applies a global luminance threshold. Backlit LCD panels
// separate cleanly on a fixed cut; pixels at or below the threshold become
// black, the rest white.
func thresholdFrame(img image.Image, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := uint8((r + g + bl) / 3 >> 8)
			v := uint8(255)
			if lum <= threshold {
				v = 0
			}
			out.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// closeSegmentGaps grows black regions by one pixel in the four cardinal
// directions. Seven-segment digits have hairline breaks between segments that
// Tesseract reads as separate glyphs; one dilation step bridges them.
func closeSegmentGaps(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	offsets := [][2]int{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for _, d := range offsets {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				r, g, bl, _ := img.At(nx, ny).RGBA()
				if r+g+bl == 0 {
					out.Set(x, y, color.NRGBA{0, 0, 0, 255})
					break
				}
			}
		}
	}
	return out
}
