package renderer

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/talvor/tmxmap"
)

type Renderer struct {
	MapManager *tmxmap.MapManager
}

func NewRenderer(mm *tmxmap.MapManager) *Renderer {
	return &Renderer{
		MapManager: mm,
	}
}

// DrawOptions controls where and how a map is drawn. Region is in map
// pixels; an empty Region draws the whole map. X and Y place the region's
// top-left corner on Screen.
type DrawOptions struct {
	Screen *ebiten.Image
	Tint   color.Color // nil draws untinted
	Region image.Rectangle
	X, Y   float64
}

func (r *Renderer) DrawMap(mapName string, opts *DrawOptions) error {
	m, err := r.MapManager.GetMapByName(mapName)
	if err != nil {
		return err
	}
	DrawMap(m, opts)
	return nil
}

func (r *Renderer) DrawMapLayer(mapName string, layerName string, opts *DrawOptions) error {
	m, err := r.MapManager.GetMapByName(mapName)
	if err != nil {
		return err
	}

	layer, err := m.GetLayer(layerName)
	if err != nil {
		return err
	}

	DrawLayer(m, layer, opts)
	return nil
}

// DrawMap draws every layer of m in document order.
func DrawMap(m *tmxmap.Map, opts *DrawOptions) {
	for i := range m.Layers {
		DrawLayer(m, &m.Layers[i], opts)
	}
}

// DrawLayer draws one layer. Hidden layers draw nothing; the layer's
// opacity is combined with the tint's alpha.
func DrawLayer(m *tmxmap.Map, l *tmxmap.Layer, opts *DrawOptions) {
	if !l.Visible || m.Orientation != tmxmap.OrientationOrthogonal {
		return
	}

	region := opts.Region
	if region.Empty() {
		region = image.Rect(0, 0, m.PixelWidth(), m.PixelHeight())
	}

	switch l.Kind {
	case tmxmap.TileLayer:
		drawTileLayer(m, l, region, opts)
	case tmxmap.ObjectLayer:
		drawObjectLayer(l, region, opts)
	}
}

func drawTileLayer(m *tmxmap.Map, l *tmxmap.Layer, region image.Rectangle, opts *DrawOptions) {
	cells := visibleCells(region.Sub(image.Pt(l.OffsetX, l.OffsetY)), m.TileWidth, m.TileHeight, l.Width, l.Height)

	for y := cells.Min.Y; y < cells.Max.Y; y++ {
		for x := cells.Min.X; x < cells.Max.X; x++ {
			tile, err := m.TileAt(l, x, y)
			if err != nil || tile == nil {
				continue
			}
			img, ok := tile.Image.(*ebiten.Image)
			if !ok {
				continue
			}
			flip, _ := l.FlipAt(x, y)

			op := &ebiten.DrawImageOptions{}
			op.GeoM = flipGeoM(flip, float64(tile.Rect.Dx()), float64(tile.Rect.Dy()))
			posX, posY := l.GetTilePositionFromIndex(y*l.Width+x, m)
			op.GeoM.Translate(
				float64(posX-region.Min.X)+opts.X,
				float64(posY-region.Min.Y)+opts.Y,
			)
			applyColor(op, opts.Tint, l.Opacity)

			opts.Screen.DrawImage(img, op)
		}
	}
}

func drawObjectLayer(l *tmxmap.Layer, region image.Rectangle, opts *DrawOptions) {
	for i := range l.Objects {
		o := &l.Objects[i]
		if !o.Visible || o.Image == nil {
			continue
		}
		img, ok := o.Image.(*ebiten.Image)
		if !ok {
			continue
		}

		x := o.X + float64(l.OffsetX-region.Min.X)
		y := o.Y + float64(l.OffsetY-region.Min.Y)
		if !objectOnScreen(x, y, o.Width, o.Height, float64(region.Dx()), float64(region.Dy())) {
			continue
		}

		op := &ebiten.DrawImageOptions{}
		b := img.Bounds()
		op.GeoM = flipGeoM(o.Flip, float64(b.Dx()), float64(b.Dy()))
		op.GeoM.Translate(x+opts.X, y-o.Height+opts.Y)
		applyColor(op, opts.Tint, l.Opacity)

		opts.Screen.DrawImage(img, op)
	}
}

func applyColor(op *ebiten.DrawImageOptions, tint color.Color, opacity float64) {
	if tint != nil {
		op.ColorScale.ScaleWithColor(tint)
	}
	op.ColorScale.ScaleAlpha(float32(opacity))
}
