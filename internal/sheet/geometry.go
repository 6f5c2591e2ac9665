// Package sheet converts physical artwork sizes to pixels and packs pieces
// onto fixed-size output sheets.
package sheet

import "math"

const (
	DPI     = 300
	PxPerCm = DPI / 2.54

	SheetWidthCm  = 57.0
	SheetHeightCm = 100.0
	SpacingCm     = 0.2
)

// CmToPx converts a physical length to pixels at the fixed device resolution,
// rounding to the nearest pixel.
func CmToPx(cm float64) int {
	return int(math.Round(cm * PxPerCm))
}

var (
	SheetWidthPx  = CmToPx(SheetWidthCm)
	SheetHeightPx = CmToPx(SheetHeightCm)
	SpacingPx     = CmToPx(SpacingCm)
)
