package render

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	watermarkText  = "PREVIEW • PrintWizard"
	watermarkPitch = 260
	watermarkBlur  = 1.1
)

// trimTransparent crops the image to the bounding box of its
// non-fully-transparent pixels. Images without a transparent margin come
// back unchanged.
func trimTransparent(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			if row[(x-b.Min.X)*4+3] == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if minX > maxX {
		// Fully transparent image, nothing to trim to.
		return img
	}

	bbox := image.Rect(minX, minY, maxX+1, maxY+1)
	if bbox == b {
		return img
	}
	return imaging.Crop(img, bbox)
}

// resizeToSlot resamples the artwork to the exact target box. The box is
// authoritative: a mismatched aspect ratio distorts rather than crops.
func resizeToSlot(img image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// applyWatermark overlays a tiled low-opacity text pattern plus one larger
// centered instance, then softens the result with a small gaussian blur.
func applyWatermark(canvas *image.NRGBA) *image.NRGBA {
	b := canvas.Bounds()
	w, h := b.Dx(), b.Dy()

	dc := gg.NewContext(w, h)
	dc.SetRGBA255(0, 0, 0, 30)
	_, textH := dc.MeasureString(watermarkText)
	for y := 0; y < h; y += watermarkPitch {
		for x := 0; x < w; x += watermarkPitch {
			dc.DrawString(watermarkText, float64(x), float64(y)+textH)
		}
	}
	out := imaging.Overlay(canvas, dc.Image(), image.Pt(0, 0), 1.0)

	center := centeredWatermark()
	cb := center.Bounds()
	out = imaging.Overlay(out, center, image.Pt((w-cb.Dx())/2, (h-cb.Dy())/2), 80.0/255.0)

	return imaging.Blur(out, watermarkBlur)
}

// centeredWatermark renders the watermark text at triple scale for the
// single centered instance.
func centeredWatermark() *image.NRGBA {
	dc := gg.NewContext(4, 4)
	textW, textH := dc.MeasureString(watermarkText)

	dc = gg.NewContext(int(textW)+4, int(textH)+6)
	dc.SetRGBA255(0, 0, 0, 255)
	dc.DrawString(watermarkText, 2, textH+2)

	img := dc.Image()
	ib := img.Bounds()
	return imaging.Resize(img, ib.Dx()*3, ib.Dy()*3, imaging.Linear)
}
