package renderer

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/talvor/tmxmap"
)

// visibleCells returns the cells of a cols×rows grid of tw×th tiles that
// overlap region, clamped to the grid.
func visibleCells(region image.Rectangle, tw, th, cols, rows int) image.Rectangle {
	if tw <= 0 || th <= 0 {
		return image.Rectangle{}
	}
	r := image.Rect(
		floorDiv(region.Min.X, tw),
		floorDiv(region.Min.Y, th),
		floorDiv(region.Max.X+tw-1, tw),
		floorDiv(region.Max.Y+th-1, th),
	)
	return r.Intersect(image.Rect(0, 0, cols, rows))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// objectOnScreen reports whether an object whose bottom-left corner is at
// (x, y) relative to the region can show within a sw×sh region.
func objectOnScreen(x, y, w, h, sw, sh float64) bool {
	return !(x+w < 0 || x > sw || y < 0 || y-h > sh)
}

// flipGeoM returns the transform that mirrors a w×h image according to f
// while keeping it inside its cell. The diagonal flip is applied first.
func flipGeoM(f tmxmap.Flip, w, h float64) ebiten.GeoM {
	var g ebiten.GeoM
	if f.Diagonal {
		g.SetElement(0, 0, 0)
		g.SetElement(0, 1, 1)
		g.SetElement(1, 0, 1)
		g.SetElement(1, 1, 0)
		w, h = h, w
	}
	if f.Horizontal {
		g.Scale(-1, 1)
		g.Translate(w, 0)
	}
	if f.Vertical {
		g.Scale(1, -1)
		g.Translate(0, h)
	}
	return g
}
