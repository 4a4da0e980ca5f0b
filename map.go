package tmxmap

import (
	"errors"
	"image"
)

const (
	GIDHorizontalFlip = 0x80000000
	GIDVerticalFlip   = 0x40000000
	GIDDiagonalFlip   = 0x20000000
	GIDFlip           = GIDHorizontalFlip | GIDVerticalFlip | GIDDiagonalFlip
)

// OrientationOrthogonal is the only map shape the loader accepts.
const OrientationOrthogonal = "orthogonal"

var (
	ErrLayerNotFound   = errors.New("tmx: layer not found")
	ErrTileNotFound    = errors.New("tmx: tile not found")
	ErrTilesetNotFound = errors.New("tmx: no tileset owns gid")
	ErrOutOfBounds     = errors.New("tmx: cell out of layer bounds")
)

// GID is a global tile ID as stored in layer data, possibly carrying flip
// bits in its top three bits. Zero means no tile.
type GID uint32

// ID returns the gid with the flip bits cleared.
func (g GID) ID() GID {
	return g &^ GIDFlip
}

// Flip returns the flip flags carried by g.
func (g GID) Flip() Flip {
	return Flip{
		Horizontal: g&GIDHorizontalFlip != 0,
		Vertical:   g&GIDVerticalFlip != 0,
		Diagonal:   g&GIDDiagonalFlip != 0,
	}
}

// Flip describes the mirroring to apply when drawing a cell.
type Flip struct {
	Horizontal bool
	Vertical   bool
	Diagonal   bool
}

// Any reports whether any flip is set.
func (f Flip) Any() bool {
	return f.Horizontal || f.Vertical || f.Diagonal
}

// Image is a decoded tileset image. Tiles hold views into it.
type Image interface {
	image.Image
	SubImage(r image.Rectangle) image.Image
}

// All structs have their fields exported; treat them read-only once the
// loader has returned them.
type Map struct {
	Source      string
	Version     string
	Orientation string
	Width       int
	Height      int
	TileWidth   int
	TileHeight  int
	Properties  Properties
	Tilesets    []Tileset
	Layers      []Layer

	tiles map[GID]*Tile
}

// PixelWidth returns the map width in pixels.
func (m *Map) PixelWidth() int {
	return m.Width * m.TileWidth
}

// PixelHeight returns the map height in pixels.
func (m *Map) PixelHeight() int {
	return m.Height * m.TileHeight
}

func (m *Map) GetLayer(name string) (*Layer, error) {
	for i := range m.Layers {
		if m.Layers[i].Name == name {
			return &m.Layers[i], nil
		}
	}
	return nil, ErrLayerNotFound
}

// TileForID returns the tile indexed under gid. Flip bits are ignored.
func (m *Map) TileForID(gid GID) (*Tile, bool) {
	t, ok := m.tiles[gid.ID()]
	return t, ok
}

// TileCount returns how many tiles the map indexes, synthesized ones
// included.
func (m *Map) TileCount() int {
	return len(m.tiles)
}

// TileAt returns the tile drawn at cell (x, y) of l, or nil for an empty
// cell.
func (m *Map) TileAt(l *Layer, x, y int) (*Tile, error) {
	gid, err := l.TileID(x, y)
	if err != nil {
		return nil, err
	}
	if gid == 0 {
		return nil, nil
	}
	t, ok := m.TileForID(gid)
	if !ok {
		return nil, ErrTileNotFound
	}
	return t, nil
}

// DecodeTileGID returns the tileset owning gid and the gid's local index
// within it.
func (m *Map) DecodeTileGID(gid GID) (*Tileset, GID) {
	i := m.tilesetIndexFor(gid.ID())
	if i < 0 {
		return nil, 0
	}
	ts := &m.Tilesets[i]
	return ts, gid.ID() - ts.FirstGID
}

// TilesetForGID returns the tileset owning gid.
func (m *Map) TilesetForGID(gid GID) (*Tileset, error) {
	ts, _ := m.DecodeTileGID(gid)
	if ts == nil {
		return nil, ErrTilesetNotFound
	}
	return ts, nil
}

// LayerKind discriminates tile layers from object layers.
type LayerKind int

const (
	TileLayer LayerKind = iota
	ObjectLayer
)

func (k LayerKind) String() string {
	switch k {
	case TileLayer:
		return "layer"
	case ObjectLayer:
		return "objectgroup"
	}
	return "unknown"
}

// Layer is either a tile layer (Width, Height, Tiles, Flips) or an object
// layer (Objects), never both.
type Layer struct {
	Kind       LayerKind
	Name       string
	OffsetX    int
	OffsetY    int
	Opacity    float64
	Visible    bool
	Properties Properties

	Width  int
	Height int
	Tiles  []GID  // row-major, flip bits cleared, 0 for empty
	Flips  []Flip // parallel to Tiles
	Empty  bool   // Set when all entries of the layer are 0

	Objects []Object
}

func (l *Layer) index(x, y int) (int, error) {
	if l.Kind != TileLayer || x < 0 || y < 0 || x >= l.Width || y >= l.Height || len(l.Tiles) == 0 {
		return 0, ErrOutOfBounds
	}
	return y*l.Width + x, nil
}

// TileID returns the gid at cell (x, y), flip bits cleared.
func (l *Layer) TileID(x, y int) (GID, error) {
	i, err := l.index(x, y)
	if err != nil {
		return 0, err
	}
	return l.Tiles[i], nil
}

// FlipAt returns the flip flags of cell (x, y).
func (l *Layer) FlipAt(x, y int) (Flip, error) {
	i, err := l.index(x, y)
	if err != nil {
		return Flip{}, err
	}
	return l.Flips[i], nil
}

// GetTilePositionFromIndex returns the pixel position of cell tileIdx,
// offset included. A layer without cells yields its offset.
func (l *Layer) GetTilePositionFromIndex(tileIdx int, m *Map) (int, int) {
	if l.Width <= 0 {
		return l.OffsetX, l.OffsetY
	}
	x := tileIdx % l.Width
	y := tileIdx / l.Width
	return l.OffsetX + x*m.TileWidth, l.OffsetY + y*m.TileHeight
}

// Object is an entry of an object layer. Y is the bottom edge.
type Object struct {
	ID         int
	Name       string
	Type       string
	X          float64
	Y          float64
	Width      float64
	Height     float64
	GID        GID // flip bits cleared, 0 when the object is not a tile
	Flip       Flip
	Visible    bool
	Layer      int // index of the owning layer in Map.Layers
	Polygon    []Point
	PolyLine   []Point
	Properties Properties

	// Image is the referenced tile's image, shared with the Tile.
	Image image.Image
}

type Point struct {
	X float64
	Y float64
}
