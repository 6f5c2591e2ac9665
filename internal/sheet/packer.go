package sheet

import (
	"errors"
	"fmt"
	"sort"
)

// ErrPieceTooLarge means a piece exceeds sheet capacity in both orientations.
var ErrPieceTooLarge = errors.New("piece does not fit on an empty sheet")

// Item is one piece to place, already converted to pixels. Ref identifies
// the source artwork and travels with the placement untouched.
type Item struct {
	W, H int
	Ref  string
}

// Placed is an Item plus its position on a sheet. X and Y are the top-left
// corner; Rotated means the piece is painted turned 90 degrees, occupying
// H wide by W tall.
type Placed struct {
	Item
	X, Y    int
	Rotated bool
}

// Shelf is one horizontal band of a sheet. Pieces fill it left to right.
type Shelf struct {
	Y         int
	Height    int
	UsedWidth int
}

// Sheet is one output canvas with its placements in paint order.
type Sheet struct {
	Shelves    []*Shelf
	UsedHeight int
	Items      []Placed
}

type orientation struct {
	w, h    int
	rotated bool
}

func orientations(it Item) [2]orientation {
	return [2]orientation{
		{it.W, it.H, false},
		{it.H, it.W, true},
	}
}

// Pack assigns every item a placement across a minimal sequence of sheets
// using shelf packing with 90-degree rotation, largest-first. Placement is
// deterministic for a fixed input ordering: items are sorted descending by
// their larger dimension with ties kept in input order, and the first
// acceptable spot wins, searched as existing shelves (sheet order, then
// shelf order, unrotated before rotated), then a new shelf on an existing
// sheet, then a new sheet.
func Pack(items []Item, sheetW, sheetH, spacing int) ([]*Sheet, error) {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return maxDim(sorted[i]) > maxDim(sorted[j])
	})

	var sheets []*Sheet

	for _, it := range sorted {
		if placeOnShelf(sheets, it, sheetW, sheetH, spacing) {
			continue
		}
		if openShelf(sheets, it, sheetW, sheetH, spacing) {
			continue
		}
		sh := &Sheet{}
		if !openShelf([]*Sheet{sh}, it, sheetW, sheetH, spacing) {
			return nil, fmt.Errorf("%w: %s (%dx%d px)", ErrPieceTooLarge, it.Ref, it.W, it.H)
		}
		sheets = append(sheets, sh)
	}

	return sheets, nil
}

func maxDim(it Item) int {
	if it.W > it.H {
		return it.W
	}
	return it.H
}

// placeOnShelf tries every existing shelf on every existing sheet. Only the
// bottom shelf of a sheet may grow taller than it was opened at; a shelf
// with another shelf below it accepts only pieces that fit its current
// height, so placements never extend into a later shelf.
func placeOnShelf(sheets []*Sheet, it Item, sheetW, sheetH, spacing int) bool {
	for _, sh := range sheets {
		for si, shelf := range sh.Shelves {
			bottom := si == len(sh.Shelves)-1
			for _, o := range orientations(it) {
				if shelf.UsedWidth+o.w+spacing > sheetW || shelf.Y+o.h+spacing > sheetH {
					continue
				}
				if !bottom && o.h+spacing > shelf.Height {
					continue
				}
				sh.Items = append(sh.Items, Placed{
					Item:    it,
					X:       shelf.UsedWidth,
					Y:       shelf.Y,
					Rotated: o.rotated,
				})
				shelf.UsedWidth += o.w + spacing
				if h := o.h + spacing; h > shelf.Height {
					shelf.Height = h
					if shelf.Y+h > sh.UsedHeight {
						sh.UsedHeight = shelf.Y + h
					}
				}
				return true
			}
		}
	}
	return false
}

// openShelf tries to open a new shelf below the used area of each sheet.
func openShelf(sheets []*Sheet, it Item, sheetW, sheetH, spacing int) bool {
	for _, sh := range sheets {
		for _, o := range orientations(it) {
			if o.w+spacing > sheetW || sh.UsedHeight+o.h+spacing > sheetH {
				continue
			}
			shelf := &Shelf{
				Y:         sh.UsedHeight,
				Height:    o.h + spacing,
				UsedWidth: o.w + spacing,
			}
			sh.Items = append(sh.Items, Placed{
				Item:    it,
				X:       0,
				Y:       shelf.Y,
				Rotated: o.rotated,
			})
			sh.Shelves = append(sh.Shelves, shelf)
			sh.UsedHeight += shelf.Height
			return true
		}
	}
	return false
}
