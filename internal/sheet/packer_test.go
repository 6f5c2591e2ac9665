package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCmToPx(t *testing.T) {
	assert.Equal(t, 0, CmToPx(0))
	assert.Equal(t, 118, CmToPx(1))   // 300/2.54 rounded
	assert.Equal(t, 24, CmToPx(0.2))  // spacing
	assert.Equal(t, 6732, CmToPx(57)) // sheet width
}

func TestPackSingleSheetScenario(t *testing.T) {
	items := []Item{
		{W: 30, H: 30, Ref: "a"},
		{W: 60, H: 20, Ref: "b"},
		{W: 10, H: 90, Ref: "c"},
	}

	sheets, err := Pack(items, 100, 100, 0)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	require.Len(t, sheets[0].Items, 3)

	// Largest-first: c (max 90), then b (max 60), then a (max 30), all on
	// the first shelf.
	placed := sheets[0].Items
	assert.Equal(t, "c", placed[0].Ref)
	assert.Equal(t, 0, placed[0].X)
	assert.Equal(t, 0, placed[0].Y)
	assert.False(t, placed[0].Rotated)

	assert.Equal(t, "b", placed[1].Ref)
	assert.Equal(t, 10, placed[1].X)
	assert.Equal(t, 0, placed[1].Y)

	assert.Equal(t, "a", placed[2].Ref)
	assert.Equal(t, 70, placed[2].X)
	assert.Equal(t, 0, placed[2].Y)
}

func TestPackRotatesToFit(t *testing.T) {
	sheets, err := Pack([]Item{{W: 90, H: 10, Ref: "wide"}}, 50, 100, 0)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.True(t, sheets[0].Items[0].Rotated)
}

func TestPackOversizedPiece(t *testing.T) {
	// 150x10 rotates to 10x150 and still exceeds sheet height.
	_, err := Pack([]Item{{W: 150, H: 10, Ref: "banner"}}, 100, 100, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPieceTooLarge)
	assert.Contains(t, err.Error(), "banner")
}

func TestPackOpensNewSheet(t *testing.T) {
	items := []Item{
		{W: 100, H: 100, Ref: "a"},
		{W: 100, H: 100, Ref: "b"},
	}
	sheets, err := Pack(items, 100, 100, 0)
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Len(t, sheets[0].Items, 1)
	assert.Len(t, sheets[1].Items, 1)
}

func TestPackPlacesEveryPieceWithoutOverlap(t *testing.T) {
	items := []Item{
		{W: 40, H: 25, Ref: "p0"},
		{W: 25, H: 40, Ref: "p1"},
		{W: 60, H: 15, Ref: "p2"},
		{W: 15, H: 60, Ref: "p3"},
		{W: 30, H: 30, Ref: "p4"},
		{W: 30, H: 30, Ref: "p5"},
		{W: 80, H: 20, Ref: "p6"},
		{W: 10, H: 10, Ref: "p7"},
	}
	const spacing = 2

	sheets, err := Pack(items, 100, 100, spacing)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, sh := range sheets {
		for i, a := range sh.Items {
			seen[a.Ref]++

			aw, ah := a.W, a.H
			if a.Rotated {
				aw, ah = ah, aw
			}
			assert.GreaterOrEqual(t, a.X, 0)
			assert.GreaterOrEqual(t, a.Y, 0)
			assert.LessOrEqual(t, a.X+aw, 100)
			assert.LessOrEqual(t, a.Y+ah, 100)

			for _, b := range sh.Items[i+1:] {
				bw, bh := b.W, b.H
				if b.Rotated {
					bw, bh = bh, bw
				}
				overlap := a.X < b.X+bw+spacing && b.X < a.X+aw+spacing &&
					a.Y < b.Y+bh+spacing && b.Y < a.Y+ah+spacing
				assert.Falsef(t, overlap, "%s overlaps %s", a.Ref, b.Ref)
			}
		}
	}

	assert.Len(t, seen, len(items))
	for ref, n := range seen {
		assert.Equalf(t, 1, n, "%s placed %d times", ref, n)
	}
}

func TestPackDeterministic(t *testing.T) {
	items := []Item{
		{W: 33, H: 47, Ref: "a"},
		{W: 47, H: 33, Ref: "b"},
		{W: 12, H: 88, Ref: "c"},
		{W: 55, H: 21, Ref: "d"},
	}

	first, err := Pack(items, 100, 100, 3)
	require.NoError(t, err)
	second, err := Pack(items, 100, 100, 3)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Items, second[i].Items)
	}
}

func TestPackTieBreakKeepsInputOrder(t *testing.T) {
	// Same max dimension: input order decides placement order.
	items := []Item{
		{W: 50, H: 10, Ref: "first"},
		{W: 10, H: 50, Ref: "second"},
	}
	sheets, err := Pack(items, 100, 100, 0)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "first", sheets[0].Items[0].Ref)
	assert.Equal(t, "second", sheets[0].Items[1].Ref)
}
