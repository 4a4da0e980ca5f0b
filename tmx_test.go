package tmxmap

import (
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// testImages hands out blank images of the requested size keyed by source
// path; unknown paths fail like a missing file.
func testImages(sizes map[string]image.Point) ImageLoader {
	return ImageLoaderFunc(func(path string) (Image, error) {
		sz, ok := sizes[filepath.ToSlash(path)]
		if !ok {
			return nil, os.ErrNotExist
		}
		return image.NewRGBA(image.Rect(0, 0, sz.X, sz.Y)), nil
	})
}

func decodeString(t *testing.T, doc string, opts ...Option) *Result {
	t.Helper()
	opts = append([]Option{
		WithLogger(zerolog.Nop()),
		WithImageLoader(testImages(map[string]image.Point{
			"tiles.png": {160, 160},
			"items.png": {64, 32},
		})),
	}, opts...)

	res, err := Decode(strings.NewReader(doc), opts...)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return res
}

const orderedMap = `<?xml version="1.0" encoding="UTF-8"?>
<map version="1.0" orientation="orthogonal" width="3" height="2" tilewidth="16" tileheight="16">
 <properties>
  <property name="music" value="forest.ogg"/>
 </properties>
 <tileset firstgid="1" name="terrain" tilewidth="16" tileheight="16">
  <image source="tiles.png" width="160" height="160"/>
  <tile id="4">
   <properties>
    <property name="solid" value="true"/>
   </properties>
  </tile>
 </tileset>
 <tileset firstgid="101" name="items" tilewidth="16" tileheight="16">
  <image source="items.png"/>
 </tileset>
 <layer name="A" width="3" height="2">
  <data encoding="csv">
1,2,3,
2147483653,0,102
</data>
 </layer>
 <objectgroup name="B" opacity="0.5">
  <object id="1" name="chest" type="loot" x="32" y="48" gid="103"/>
  <object id="2" name="spawn" x="8" y="8" width="4" height="4" visible="0"/>
  <object id="3" name="door" x="0" y="16" gid="5" width="32" height="16">
   <properties>
    <property name="target" value="cave"/>
   </properties>
  </object>
  <object id="4" name="zone" x="0" y="0">
   <polygon points="0,0 16,0 16,16"/>
  </object>
 </objectgroup>
 <layer name="C" width="3" height="2" visible="0">
  <data>
   <tile gid="0"/><tile gid="0"/><tile gid="0"/>
   <tile gid="0"/><tile gid="0"/><tile gid="0"/>
  </data>
 </layer>
</map>`

func TestDecodeKeepsDocumentOrder(t *testing.T) {
	res := decodeString(t, orderedMap)
	if err := res.Err(); err != nil {
		t.Fatalf("unexpected diagnostics: %v", err)
	}
	m := res.Map

	var names []string
	for _, l := range m.Layers {
		names = append(names, l.Name)
	}
	if strings.Join(names, ",") != "A,B,C" {
		t.Fatalf("expected layers A,B,C, got %v", names)
	}
	if m.Layers[0].Kind != TileLayer || m.Layers[1].Kind != ObjectLayer || m.Layers[2].Kind != TileLayer {
		t.Error("unexpected layer kinds")
	}

	var objects []string
	for _, o := range m.Layers[1].Objects {
		objects = append(objects, o.Name)
		if o.Layer != 1 {
			t.Errorf("object %s: expected layer 1, got %d", o.Name, o.Layer)
		}
	}
	if strings.Join(objects, ",") != "chest,spawn,door,zone" {
		t.Errorf("expected objects in declaration order, got %v", objects)
	}

	if m.Tilesets[0].Name != "terrain" || m.Tilesets[1].Name != "items" {
		t.Error("expected tilesets in declaration order")
	}
}

func TestDecodeMapFields(t *testing.T) {
	m := decodeString(t, orderedMap).Map

	if m.Width != 3 || m.Height != 2 || m.TileWidth != 16 || m.TileHeight != 16 {
		t.Errorf("unexpected dimensions %dx%d (%dx%d)", m.Width, m.Height, m.TileWidth, m.TileHeight)
	}
	if m.PixelWidth() != 48 || m.PixelHeight() != 32 {
		t.Errorf("unexpected pixel size %dx%d", m.PixelWidth(), m.PixelHeight())
	}
	if m.Properties["music"] != "forest.ogg" {
		t.Errorf("unexpected map properties %v", m.Properties)
	}

	items := m.Tilesets[1]
	if items.ImageWidth != 64 || items.ImageHeight != 32 || items.Columns() != 4 {
		t.Errorf("expected image size from the loaded image, got %dx%d", items.ImageWidth, items.ImageHeight)
	}

	c, err := m.GetLayer("C")
	if err != nil {
		t.Fatal(err)
	}
	if c.Visible || !c.Empty || c.Opacity != 1 {
		t.Errorf("unexpected layer C %+v", c)
	}
	if _, err := m.GetLayer("nope"); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("expected ErrLayerNotFound, got %v", err)
	}
}

func TestDecodeTileLayer(t *testing.T) {
	m := decodeString(t, orderedMap).Map
	a := &m.Layers[0]

	want := []GID{1, 2, 3, 5, 0, 102}
	for i, g := range want {
		if a.Tiles[i] != g {
			t.Errorf("cell %d: expected %d, got %d", i, g, a.Tiles[i])
		}
	}
	if a.Empty {
		t.Error("layer A is not empty")
	}

	flip, err := a.FlipAt(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !flip.Horizontal || flip.Vertical || flip.Diagonal {
		t.Errorf("expected a horizontal flip, got %+v", flip)
	}

	tile, err := m.TileAt(a, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if tile.Synthesized || tile.Properties["solid"] != "true" {
		t.Errorf("expected the declared tile 5, got %+v", tile)
	}
	if !tile.Rect.Eq(image.Rect(64, 0, 80, 16)) || tile.Image == nil {
		t.Errorf("unexpected tile 5 image %v", tile.Rect)
	}

	tile, err = m.TileAt(a, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !tile.Synthesized {
		t.Error("tile 2 should be synthesized")
	}

	if tile, err := m.TileAt(a, 1, 1); err != nil || tile != nil {
		t.Errorf("expected an empty cell, got %v, %v", tile, err)
	}
	if _, err := a.TileID(3, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}

	x, y := a.GetTilePositionFromIndex(5, m)
	if x != 32 || y != 16 {
		t.Errorf("expected (32, 16), got (%d, %d)", x, y)
	}
}

func TestDecodeObjectLayer(t *testing.T) {
	m := decodeString(t, orderedMap).Map
	b := m.Layers[1]

	if b.Opacity != 0.5 {
		t.Errorf("expected opacity 0.5, got %v", b.Opacity)
	}

	chest := b.Objects[0]
	if chest.GID != 103 || chest.Image == nil || chest.Type != "loot" {
		t.Errorf("unexpected chest %+v", chest)
	}
	if chest.Width != 16 || chest.Height != 16 {
		t.Errorf("expected the map tile size, got %vx%v", chest.Width, chest.Height)
	}
	tile, ok := m.TileForID(103)
	if !ok || chest.Image != tile.Image {
		t.Error("expected the chest to share its tile's image")
	}
	if !tile.Rect.Eq(image.Rect(32, 0, 48, 16)) {
		t.Errorf("unexpected item rect %v", tile.Rect)
	}

	spawn := b.Objects[1]
	if spawn.Visible || spawn.Image != nil || spawn.Width != 4 {
		t.Errorf("unexpected spawn %+v", spawn)
	}

	door := b.Objects[2]
	if door.Width != 32 || door.Height != 16 || door.Properties["target"] != "cave" {
		t.Errorf("unexpected door %+v", door)
	}

	zone := b.Objects[3]
	if len(zone.Polygon) != 3 || zone.Polygon[2] != (Point{16, 16}) {
		t.Errorf("unexpected polygon %v", zone.Polygon)
	}
}

func TestDecodeForwardObjectReference(t *testing.T) {
	doc := `<map orientation="orthogonal" width="1" height="1" tilewidth="8" tileheight="8">
 <tileset firstgid="1" tilewidth="16" tileheight="16"><image source="tiles.png"/></tileset>
 <objectgroup name="objs">
  <object name="a" x="0" y="0" gid="9"/>
 </objectgroup>
 <layer name="ground" width="1" height="1"><data encoding="csv">9</data></layer>
</map>`

	m := decodeString(t, doc).Map

	obj := m.Layers[0].Objects[0]
	tile, ok := m.TileForID(9)
	if !ok {
		t.Fatal("tile 9 not indexed")
	}
	if obj.Image != tile.Image || obj.Image == nil {
		t.Error("expected the object to share the tile image")
	}
	if obj.Width != 8 || obj.Height != 8 {
		t.Errorf("expected the map tile size 8x8, got %vx%v", obj.Width, obj.Height)
	}
	if got := m.Tilesets[0].Tiles; len(got) != 1 {
		t.Errorf("expected one synthesized tile, got %v", got)
	}
}

func TestDecodeUnknownCompressionKeepsMap(t *testing.T) {
	doc := `<map orientation="orthogonal" width="2" height="1" tilewidth="16" tileheight="16">
 <tileset firstgid="1" tilewidth="16" tileheight="16"><image source="tiles.png"/></tileset>
 <layer name="broken" width="2" height="1"><data encoding="base64" compression="bzip2">AAAAAAAAAAA=</data></layer>
 <layer name="fine" width="2" height="1"><data encoding="csv">1,2</data></layer>
</map>`

	res := decodeString(t, doc)
	m := res.Map

	if len(m.Layers) != 2 || len(m.Tilesets) != 1 {
		t.Fatalf("expected the whole map, got %d layers and %d tilesets", len(m.Layers), len(m.Tilesets))
	}
	broken := m.Layers[0]
	if !broken.Empty || len(broken.Tiles) != 2 || broken.Tiles[0] != 0 {
		t.Errorf("expected zeroed cells, got %+v", broken)
	}
	if m.Layers[1].Tiles[1] != 2 {
		t.Error("expected the second layer to decode")
	}

	if len(res.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %v", res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if d.Kind != LayerDataMalformed || d.Layer != "broken" || !errors.Is(d, ErrUnknownCompression) {
		t.Errorf("unexpected diagnostic %v", d)
	}
	if !strings.Contains(d.Error(), "bzip2") {
		t.Errorf("expected the compression name in %q", d.Error())
	}
	if !errors.Is(res.Err(), ErrUnknownCompression) {
		t.Error("expected Err to wrap the diagnostic")
	}
}

func TestDecodeDanglingReference(t *testing.T) {
	doc := `<map orientation="orthogonal" width="2" height="1" tilewidth="16" tileheight="16">
 <tileset firstgid="10" tilewidth="16" tileheight="16"><image source="tiles.png"/></tileset>
 <layer name="ground" width="2" height="1"><data encoding="csv">3,10</data></layer>
 <objectgroup><object x="1" y="1" gid="4"/></objectgroup>
</map>`

	res := decodeString(t, doc)
	m := res.Map

	if got := m.Layers[0].Tiles; got[0] != 0 || got[1] != 10 {
		t.Errorf("expected the dangling cell to be empty, got %v", got)
	}
	obj := m.Layers[1].Objects[0]
	if obj.Image != nil || obj.Visible || obj.GID != 0 || obj.Flip.Any() {
		t.Errorf("expected the dangling object to be hidden with no gid, got %+v", obj)
	}
	if n := res.Count(ReferenceMalformed); n != 2 {
		t.Errorf("expected 2 reference diagnostics, got %d: %v", n, res.Diagnostics)
	}
	if res.Diagnostics[0].GID != 3 {
		t.Errorf("expected gid 3 in %v", res.Diagnostics[0])
	}
}

func TestDecodeMissingTilesetImage(t *testing.T) {
	doc := `<map orientation="orthogonal" width="1" height="1" tilewidth="16" tileheight="16">
 <tileset firstgid="1" name="gone" tilewidth="16" tileheight="16"><image source="missing.png" width="32" height="32"/></tileset>
 <layer name="ground" width="1" height="1"><data encoding="csv">4</data></layer>
</map>`

	res := decodeString(t, doc)
	m := res.Map

	if len(m.Tilesets) != 1 || m.Tilesets[0].Image != nil {
		t.Fatal("expected the tileset to be kept without an image")
	}
	tile, ok := m.TileForID(4)
	if !ok || tile.Image != nil || !tile.Rect.Eq(image.Rect(16, 16, 32, 32)) {
		t.Errorf("unexpected tile %+v", tile)
	}
	if res.Count(ResourceMalformed) != 1 || !errors.Is(res.Err(), os.ErrNotExist) {
		t.Errorf("expected one resource diagnostic, got %v", res.Diagnostics)
	}
}

func TestDecodeFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"isometric", `<map orientation="isometric" width="1" height="1" tilewidth="1" tileheight="1"/>`, ErrUnsupportedOrientation},
		{"not a map", `<tileset firstgid="1"/>`, ErrNotMap},
		{"missing width", `<map orientation="orthogonal" height="1" tilewidth="1" tileheight="1"/>`, ErrInvalidMap},
		{"bad height", `<map orientation="orthogonal" width="1" height="x" tilewidth="1" tileheight="1"/>`, ErrInvalidMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(strings.NewReader(tt.doc), WithLogger(zerolog.Nop()))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if res != nil {
				t.Error("expected no result on a fatal error")
			}
		})
	}

	if _, err := Decode(strings.NewReader("<map")); err == nil {
		t.Error("expected an unreadable document to fail")
	}
}

func TestDecodeLayerLimits(t *testing.T) {
	doc := `<map orientation="orthogonal" width="100" height="100" tilewidth="16" tileheight="16">
 <layer name="huge"><data encoding="csv">0</data></layer>
</map>`

	res := decodeString(t, doc, WithLimits(Limits{MaxCells: 50}))
	l := res.Map.Layers[0]
	if l.Width != 0 || len(l.Tiles) != 0 || !l.Empty {
		t.Errorf("expected an empty layer, got %dx%d", l.Width, l.Height)
	}
	if !errors.Is(res.Err(), ErrLayerTooLarge) {
		t.Errorf("expected ErrLayerTooLarge, got %v", res.Err())
	}

	// width*height does not fit in an int.
	doc = `<map orientation="orthogonal" width="1" height="1" tilewidth="16" tileheight="16">
 <layer name="overflow" width="3037000500" height="3037000500"><data encoding="csv">0</data></layer>
 <layer name="ground" width="1" height="1"><data encoding="csv">0</data></layer>
</map>`

	res = decodeString(t, doc, WithLimits(Limits{}))
	if len(res.Map.Layers) != 2 {
		t.Fatalf("expected both layers, got %d", len(res.Map.Layers))
	}
	if l := res.Map.Layers[0]; l.Width != 0 || l.Height != 0 || len(l.Tiles) != 0 {
		t.Errorf("expected the overflowing layer to be emptied, got %dx%d", l.Width, l.Height)
	}
	if l := res.Map.Layers[1]; len(l.Tiles) != 1 {
		t.Errorf("expected the second layer to decode, got %v", l.Tiles)
	}
	if !errors.Is(res.Err(), ErrLayerTooLarge) {
		t.Errorf("expected ErrLayerTooLarge, got %v", res.Err())
	}
}

func TestDecodeTileObjectSize(t *testing.T) {
	doc := `<map orientation="orthogonal" width="1" height="1" tilewidth="8" tileheight="8">
 <tileset firstgid="1" tilewidth="16" tileheight="16"><image source="tiles.png"/></tileset>
 <objectgroup>
  <object name="unsized" x="0" y="0" gid="1"/>
  <object name="wide" x="0" y="0" gid="1" width="40"/>
  <object name="sized" x="0" y="0" gid="1" width="24" height="12"/>
 </objectgroup>
</map>`

	objs := decodeString(t, doc).Map.Layers[0].Objects

	for _, tt := range []struct {
		name          string
		width, height float64
	}{
		{"unsized", 8, 8},
		{"wide", 40, 8},
		{"sized", 24, 12},
	} {
		var o *Object
		for i := range objs {
			if objs[i].Name == tt.name {
				o = &objs[i]
			}
		}
		if o == nil {
			t.Fatalf("object %s missing", tt.name)
		}
		if o.Width != tt.width || o.Height != tt.height {
			t.Errorf("%s: expected %vx%v, got %vx%v", tt.name, tt.width, tt.height, o.Width, o.Height)
		}
	}
}

func TestDecodeUnnamedProperties(t *testing.T) {
	doc := `<map orientation="orthogonal" width="1" height="1" tilewidth="16" tileheight="16">
 <tileset firstgid="1" name="terrain" tilewidth="16" tileheight="16">
  <image source="tiles.png"/>
  <properties><property value="x"/></properties>
 </tileset>
 <layer name="ground" width="1" height="1">
  <properties><property name="kept" value="1"/><property value="lost"/></properties>
  <data encoding="csv">0</data>
 </layer>
</map>`

	res := decodeString(t, doc)
	if res.Count(ResourceMalformed) != 1 || res.Count(LayerDataMalformed) != 1 {
		t.Errorf("expected one resource and one layer diagnostic, got %v", res.Diagnostics)
	}
	if !errors.Is(res.Err(), ErrUnnamedProperty) {
		t.Errorf("expected ErrUnnamedProperty, got %v", res.Err())
	}
	l := res.Map.Layers[0]
	if len(l.Properties) != 1 || l.Properties["kept"] != "1" {
		t.Errorf("expected the named property to survive, got %v", l.Properties)
	}
	if len(res.Map.Tilesets[0].Properties) != 0 {
		t.Errorf("unexpected tileset properties %v", res.Map.Tilesets[0].Properties)
	}
}

func TestTilePositionOfEmptyLayer(t *testing.T) {
	m := &Map{TileWidth: 16, TileHeight: 16}
	l := &Layer{OffsetX: 3, OffsetY: 4}

	if x, y := l.GetTilePositionFromIndex(5, m); x != 3 || y != 4 {
		t.Errorf("expected the layer offset, got (%d, %d)", x, y)
	}
}

type memFiles map[string]string

func (fs memFiles) open(name string) (io.ReadCloser, error) {
	s, ok := fs[filepath.ToSlash(name)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

func TestDecodeExternalTileset(t *testing.T) {
	files := memFiles{
		"maps/sets/terrain.tsx": `<?xml version="1.0"?>
<tileset name="terrain" tilewidth="16" tileheight="16">
 <image source="../img/terrain.png" width="160" height="160"/>
 <tile id="0"><properties><property name="water" value="1"/></properties></tile>
</tileset>`,
	}
	images := testImages(map[string]image.Point{"maps/img/terrain.png": {160, 160}})

	doc := `<map orientation="orthogonal" width="1" height="1" tilewidth="16" tileheight="16">
 <tileset firstgid="7" source="sets/terrain.tsx"/>
 <tileset firstgid="200" source="sets/missing.tsx"/>
 <layer name="ground" width="1" height="1"><data encoding="csv">7</data></layer>
</map>`

	res := decodeString(t, doc, WithBaseDir("maps"), WithOpener(files.open), WithImageLoader(images))
	m := res.Map

	if len(m.Tilesets) != 2 {
		t.Fatalf("expected 2 tilesets, got %d", len(m.Tilesets))
	}
	ts := m.Tilesets[0]
	if ts.Name != "terrain" || ts.FirstGID != 7 || ts.Image == nil {
		t.Errorf("unexpected external tileset %+v", ts)
	}
	if filepath.ToSlash(ts.ImageSource) != "maps/img/terrain.png" {
		t.Errorf("expected the image path relative to the tsx, got %q", ts.ImageSource)
	}

	tile, ok := m.TileForID(7)
	if !ok || tile.Synthesized || tile.Properties["water"] != "1" || tile.Image == nil {
		t.Errorf("unexpected tile %+v", tile)
	}

	if res.Count(ResourceMalformed) != 1 || !errors.Is(res.Err(), os.ErrNotExist) {
		t.Errorf("expected one resource diagnostic for the missing tsx, got %v", res.Diagnostics)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.tmx")
	if err := os.WriteFile(path, []byte(orderedMap), 0o644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "tiles.png"), 160, 160)
	writePNG(t, filepath.Join(dir, "items.png"), 64, 32)

	m, err := LoadFile(path, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if m.Source != path || len(m.Layers) != 3 {
		t.Errorf("unexpected map %q with %d layers", m.Source, len(m.Layers))
	}
	if m.Tilesets[0].Image == nil || m.Tilesets[0].Image.Bounds().Dx() != 160 {
		t.Error("expected the tileset image to be decoded from disk")
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.tmx")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}
