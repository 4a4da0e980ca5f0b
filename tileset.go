package tmxmap

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/talvor/tmxmap/internal/xmltree"
)

var (
	ErrMissingFirstGID = errors.New("tmx: tileset has no valid firstgid")
	ErrMissingImage    = errors.New("tmx: tileset has no image")
	ErrNoColumns       = errors.New("tmx: tileset image is narrower than one tile")
	ErrInvalidTileID   = errors.New("tmx: invalid tile id")
	ErrNotTileset      = errors.New("tmx: external file is not a tileset")
)

type Tileset struct {
	FirstGID    GID
	Name        string
	Source      string // external tileset file; empty when embedded in the map
	TileWidth   int
	TileHeight  int
	ImageSource string
	ImageWidth  int
	ImageHeight int
	Image       Image // nil when the image could not be loaded
	Properties  Properties
	Tiles       []GID // declared tiles in document order, then synthesized ones
}

// Columns returns how many tiles fit across the tileset image.
func (ts *Tileset) Columns() int {
	if ts.TileWidth <= 0 {
		return 0
	}
	return ts.ImageWidth / ts.TileWidth
}

// TileRect returns the rectangle of the tile with the given local index
// inside the tileset image.
func (ts *Tileset) TileRect(local GID) image.Rectangle {
	cols := ts.Columns()
	if cols == 0 {
		return image.Rectangle{}
	}
	x := (int(local) % cols) * ts.TileWidth
	y := (int(local) / cols) * ts.TileHeight
	return image.Rect(x, y, x+ts.TileWidth, y+ts.TileHeight)
}

// Tile is a tile definition, either declared by a tileset or synthesized
// because layer data referenced an undeclared gid.
type Tile struct {
	ID          GID
	Tileset     int // index into Map.Tilesets
	Properties  Properties
	Synthesized bool
	Rect        image.Rectangle
	Image       image.Image // nil when the tileset has no image
}

func (t *Tile) Property(name string) (string, bool) {
	v, ok := t.Properties[name]
	return v, ok
}

// tilesetIndexFor picks the tileset with the largest firstgid not above
// gid. On equal firstgids the later tileset wins. Returns -1 if none does.
func (m *Map) tilesetIndexFor(gid GID) int {
	best := -1
	for i := range m.Tilesets {
		fg := m.Tilesets[i].FirstGID
		if fg > gid {
			continue
		}
		if best < 0 || fg >= m.Tilesets[best].FirstGID {
			best = i
		}
	}
	return best
}

// cacheTileList indexes every declared tile by gid. Later declarations of
// the same gid replace earlier ones.
func (m *Map) cacheTileList(declared [][]*Tile) {
	m.tiles = make(map[GID]*Tile)
	for _, tiles := range declared {
		for _, t := range tiles {
			m.tiles[t.ID] = t
		}
	}
}

// resolveTile returns the tile for gid, synthesizing and indexing one
// when no tileset declared it. Repeated calls return the same *Tile.
func (m *Map) resolveTile(gid GID) (*Tile, error) {
	id := gid.ID()
	if t, ok := m.tiles[id]; ok {
		return t, nil
	}

	i := m.tilesetIndexFor(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrTilesetNotFound, id)
	}

	t := &Tile{
		ID:          id,
		Tileset:     i,
		Properties:  Properties{},
		Synthesized: true,
	}
	m.bindTileImage(t)

	ts := &m.Tilesets[i]
	ts.Tiles = append(ts.Tiles, id)
	m.tiles[id] = t
	return t, nil
}

func (m *Map) bindTileImage(t *Tile) {
	ts := &m.Tilesets[t.Tileset]
	t.Rect = ts.TileRect(t.ID - ts.FirstGID)
	if ts.Image != nil && !t.Rect.Empty() {
		t.Image = ts.Image.SubImage(t.Rect)
	}
}

// parseTileset reads one tileset node. The returned slice holds the
// tileset's declared tiles; their Tileset field is set to index. ok is
// false when the node is unusable and must be skipped.
func (ld *loader) parseTileset(n *xmltree.Node, index int) (ts Tileset, declared []*Tile, ok bool) {
	firstGID, err := gidAttr(n, "firstgid")
	if err != nil {
		ld.report(Diagnostic{Kind: ResourceMalformed, Tileset: n.AttrOr("name", ""), Err: fmt.Errorf("%w: %v", ErrMissingFirstGID, err)})
		return ts, nil, false
	}
	ts.FirstGID = firstGID

	dir := ld.o.baseDir
	if src, isExternal := n.Attr("source"); isExternal && src != "" {
		ts.Source = resolvePath(dir, src)
		ext, err := ld.openTileset(ts.Source)
		if err != nil {
			ts.Properties = Properties{}
			ld.report(Diagnostic{Kind: ResourceMalformed, Tileset: src, Err: err})
			return ts, nil, true
		}
		n = ext
		dir = filepath.Dir(ts.Source)
	}

	ts.Name = n.AttrOr("name", "")
	ts.TileWidth = ld.tilesetInt(n, "tilewidth", ld.m.TileWidth, ts.Name)
	ts.TileHeight = ld.tilesetInt(n, "tileheight", ld.m.TileHeight, ts.Name)
	ts.Properties = ld.properties(n, Diagnostic{Kind: ResourceMalformed, Tileset: ts.Name})

	ld.loadTilesetImage(&ts, n.FirstChild("image"), dir)

	byID := make(map[GID]*Tile)
	for _, tn := range n.Children("tile") {
		s, _ := tn.Attr("id")
		local, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			ld.report(Diagnostic{Kind: ResourceMalformed, Tileset: ts.Name, Err: fmt.Errorf("%w: %q", ErrInvalidTileID, s)})
			continue
		}

		gid := firstGID + GID(local)
		if prev, dup := byID[gid]; dup {
			prev.Properties = ld.properties(tn, Diagnostic{Kind: ResourceMalformed, Tileset: ts.Name, GID: gid})
			continue
		}
		t := &Tile{
			ID:         gid,
			Tileset:    index,
			Properties: ld.properties(tn, Diagnostic{Kind: ResourceMalformed, Tileset: ts.Name, GID: gid}),
		}
		byID[gid] = t
		declared = append(declared, t)
		ts.Tiles = append(ts.Tiles, gid)
	}

	return ts, declared, true
}

func (ld *loader) loadTilesetImage(ts *Tileset, in *xmltree.Node, dir string) {
	if in == nil {
		ld.report(Diagnostic{Kind: ResourceMalformed, Tileset: ts.Name, Err: ErrMissingImage})
		return
	}

	ts.ImageWidth = ld.tilesetInt(in, "width", 0, ts.Name)
	ts.ImageHeight = ld.tilesetInt(in, "height", 0, ts.Name)

	src, _ := in.Attr("source")
	if src == "" {
		ld.report(Diagnostic{Kind: ResourceMalformed, Tileset: ts.Name, Err: ErrMissingImage})
		return
	}
	ts.ImageSource = resolvePath(dir, src)

	img, err := ld.o.images.LoadImage(ts.ImageSource)
	if err != nil {
		ld.report(Diagnostic{Kind: ResourceMalformed, Tileset: ts.Name, Err: fmt.Errorf("tmx: loading image %q: %w", ts.ImageSource, err)})
	} else {
		ts.Image = img
		b := img.Bounds()
		if ts.ImageWidth == 0 {
			ts.ImageWidth = b.Dx()
		}
		if ts.ImageHeight == 0 {
			ts.ImageHeight = b.Dy()
		}
	}

	if ts.ImageWidth > 0 && ts.Columns() == 0 {
		ld.report(Diagnostic{Kind: ResourceMalformed, Tileset: ts.Name, Err: ErrNoColumns})
	}
}

func (ld *loader) openTileset(path string) (*xmltree.Node, error) {
	rc, err := ld.o.open(path)
	if err != nil {
		return nil, fmt.Errorf("tmx: opening tileset %q: %w", path, err)
	}
	defer rc.Close()

	root, err := xmltree.Parse(rc, ld.o.limits.tree())
	if err != nil {
		return nil, fmt.Errorf("tmx: parsing tileset %q: %w", path, err)
	}
	if root.Name != "tileset" {
		return nil, fmt.Errorf("%w: %q has root <%s>", ErrNotTileset, path, root.Name)
	}
	return root, nil
}

func (ld *loader) tilesetInt(n *xmltree.Node, name string, def int, tileset string) int {
	v, err := intAttr(n, name, def)
	if err != nil {
		ld.report(Diagnostic{Kind: ResourceMalformed, Tileset: tileset, Err: err})
		return def
	}
	return v
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) || dir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
