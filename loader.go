package tmxmap

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/talvor/tmxmap/internal/xmltree"
)

var (
	ErrNotMap                 = errors.New("tmx: document root is not a map")
	ErrInvalidMap             = errors.New("tmx: invalid map attribute")
	ErrUnsupportedOrientation = errors.New("tmx: unsupported orientation")
	ErrLayerTooLarge          = errors.New("tmx: layer exceeds cell limit")
	ErrInvalidAttribute       = errors.New("tmx: invalid attribute")
	ErrInvalidPointsField     = errors.New("tmx: invalid points string")
)

// loader holds the state of one parse. It is never shared.
type loader struct {
	m     *Map
	o     options
	diags []Diagnostic
}

func (ld *loader) load(root *xmltree.Node) error {
	if root.Name != "map" {
		return fmt.Errorf("%w: <%s>", ErrNotMap, root.Name)
	}

	m := ld.m
	m.Orientation = root.AttrOr("orientation", OrientationOrthogonal)
	if m.Orientation != OrientationOrthogonal {
		return fmt.Errorf("%w: %q", ErrUnsupportedOrientation, m.Orientation)
	}

	var err error
	for _, a := range []struct {
		name string
		dst  *int
	}{
		{"width", &m.Width},
		{"height", &m.Height},
		{"tilewidth", &m.TileWidth},
		{"tileheight", &m.TileHeight},
	} {
		s, ok := root.Attr(a.name)
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrInvalidMap, a.name)
		}
		if *a.dst, err = strconv.Atoi(strings.TrimSpace(s)); err != nil || *a.dst < 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidMap, a.name, s)
		}
	}
	m.Version = root.AttrOr("version", "")
	m.Properties = ld.properties(root, Diagnostic{Kind: ResourceMalformed})

	var declared [][]*Tile
	for _, tn := range root.Children("tileset") {
		ts, tiles, ok := ld.parseTileset(tn, len(m.Tilesets))
		if !ok {
			continue
		}
		m.Tilesets = append(m.Tilesets, ts)
		declared = append(declared, tiles)
	}
	m.cacheTileList(declared)
	for _, t := range m.tiles {
		m.bindTileImage(t)
	}

	for _, ln := range root.ChildrenEither("layer", "objectgroup") {
		l := ld.parseLayerCommon(ln)
		if ln.Name == "layer" {
			ld.parseTileLayer(ln, &l)
		} else {
			ld.parseObjectLayer(ln, &l, len(m.Layers))
		}
		m.Layers = append(m.Layers, l)
	}

	ld.bindObjects()
	return nil
}

func (ld *loader) parseLayerCommon(n *xmltree.Node) Layer {
	l := Layer{
		Name:    n.AttrOr("name", ""),
		Visible: true,
		Opacity: 1,
	}
	l.Properties = ld.properties(n, Diagnostic{Kind: LayerDataMalformed, Layer: l.Name})
	if n.Name == "objectgroup" {
		l.Kind = ObjectLayer
	}

	if s, ok := n.Attr("visible"); ok {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			ld.layerAttrError(l.Name, "visible", s)
		} else {
			l.Visible = v != 0
		}
	}
	if s, ok := n.Attr("opacity"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			ld.layerAttrError(l.Name, "opacity", s)
		} else {
			l.Opacity = min(max(v, 0), 1)
		}
	}
	l.OffsetX = int(ld.layerFloat(n, "offsetx", 0, l.Name))
	l.OffsetY = int(ld.layerFloat(n, "offsety", 0, l.Name))
	return l
}

func (ld *loader) parseTileLayer(n *xmltree.Node, l *Layer) {
	var err error
	if l.Width, err = intAttr(n, "width", ld.m.Width); err != nil {
		ld.report(Diagnostic{Kind: LayerDataMalformed, Layer: l.Name, Err: err})
		l.Width = ld.m.Width
	}
	if l.Height, err = intAttr(n, "height", ld.m.Height); err != nil {
		ld.report(Diagnostic{Kind: LayerDataMalformed, Layer: l.Name, Err: err})
		l.Height = ld.m.Height
	}
	l.Empty = true

	if l.Width < 0 || l.Height < 0 || (l.Width > 0 && l.Height > math.MaxInt/l.Width) {
		ld.report(Diagnostic{Kind: LayerDataMalformed, Layer: l.Name, Err: fmt.Errorf("%w: %dx%d", ErrLayerTooLarge, l.Width, l.Height)})
		l.Width, l.Height = 0, 0
		return
	}
	cells := l.Width * l.Height
	if ld.o.limits.MaxCells > 0 && cells > ld.o.limits.MaxCells {
		ld.report(Diagnostic{Kind: LayerDataMalformed, Layer: l.Name, Err: fmt.Errorf("%w: %dx%d", ErrLayerTooLarge, l.Width, l.Height)})
		l.Width, l.Height = 0, 0
		return
	}
	l.Tiles = make([]GID, cells)
	l.Flips = make([]Flip, cells)

	raw, err := decodeData(n.FirstChild("data"), cells, ld.o.limits.MaxDecodedBytes)
	if err != nil {
		ld.report(Diagnostic{Kind: LayerDataMalformed, Layer: l.Name, Err: err})
		return
	}

	for i, v := range raw {
		id := v.ID()
		if id == 0 {
			continue
		}
		if _, err := ld.m.resolveTile(id); err != nil {
			ld.report(Diagnostic{Kind: ReferenceMalformed, Layer: l.Name, GID: id, Err: err})
			continue
		}
		l.Tiles[i] = id
		l.Flips[i] = v.Flip()
		l.Empty = false
	}
}

func (ld *loader) parseObjectLayer(n *xmltree.Node, l *Layer, index int) {
	for _, on := range n.Children("object") {
		o := Object{
			Name:       on.AttrOr("name", ""),
			Type:       on.AttrOr("type", on.AttrOr("class", "")),
			Visible:    true,
			Layer:      index,
			Properties: ld.properties(on, Diagnostic{Kind: LayerDataMalformed, Layer: l.Name}),
		}
		o.ID = int(ld.layerFloat(on, "id", 0, l.Name))
		o.X = ld.layerFloat(on, "x", 0, l.Name)
		o.Y = ld.layerFloat(on, "y", 0, l.Name)
		o.Width = ld.layerFloat(on, "width", 0, l.Name)
		o.Height = ld.layerFloat(on, "height", 0, l.Name)
		if s, ok := on.Attr("visible"); ok {
			o.Visible = strings.TrimSpace(s) != "0"
		}

		if _, ok := on.Attr("gid"); ok {
			raw, err := gidAttr(on, "gid")
			if err != nil {
				ld.report(Diagnostic{Kind: LayerDataMalformed, Layer: l.Name, Err: err})
			} else if raw.ID() != 0 {
				if _, err := ld.m.resolveTile(raw.ID()); err != nil {
					// An unresolvable tile object is kept but hidden.
					ld.report(Diagnostic{Kind: ReferenceMalformed, Layer: l.Name, GID: raw.ID(), Err: err})
					o.Visible = false
				} else {
					o.GID = raw.ID()
					o.Flip = raw.Flip()
				}
			}
		}

		var err error
		if pn := on.FirstChild("polygon"); pn != nil {
			if o.Polygon, err = decodePoints(pn.AttrOr("points", "")); err != nil {
				ld.report(Diagnostic{Kind: LayerDataMalformed, Layer: l.Name, Err: err})
			}
		}
		if pn := on.FirstChild("polyline"); pn != nil {
			if o.PolyLine, err = decodePoints(pn.AttrOr("points", "")); err != nil {
				ld.report(Diagnostic{Kind: LayerDataMalformed, Layer: l.Name, Err: err})
			}
		}

		l.Objects = append(l.Objects, o)
	}
}

// bindObjects runs after every layer is parsed: tile objects take the
// image of their tile and default to the map's tile size.
func (ld *loader) bindObjects() {
	m := ld.m
	for i := range m.Layers {
		l := &m.Layers[i]
		if l.Kind != ObjectLayer {
			continue
		}
		for j := range l.Objects {
			o := &l.Objects[j]
			if o.GID == 0 {
				continue
			}
			t, ok := m.TileForID(o.GID)
			if !ok {
				continue
			}
			o.Image = t.Image
			if o.Width == 0 {
				o.Width = float64(m.TileWidth)
			}
			if o.Height == 0 {
				o.Height = float64(m.TileHeight)
			}
		}
	}
}

// properties parses the properties of n and reports skipped entries as d.
func (ld *loader) properties(n *xmltree.Node, d Diagnostic) Properties {
	props, err := parseProperties(n)
	if err != nil {
		d.Err = err
		ld.report(d)
	}
	return props
}

func (ld *loader) layerFloat(n *xmltree.Node, name string, def float64, layer string) float64 {
	s, ok := n.Attr(name)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		ld.layerAttrError(layer, name, s)
		return def
	}
	return v
}

func (ld *loader) layerAttrError(layer, name, value string) {
	ld.report(Diagnostic{Kind: LayerDataMalformed, Layer: layer, Err: fmt.Errorf("%w: %s=%q", ErrInvalidAttribute, name, value)})
}

func intAttr(n *xmltree.Node, name string, def int) (int, error) {
	s, ok := n.Attr(name)
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrInvalidAttribute, name, s)
	}
	return v, nil
}

func gidAttr(n *xmltree.Node, name string) (GID, error) {
	s, _ := n.Attr(name)
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidAttribute, name, s)
	}
	return GID(v), nil
}

func decodePoints(s string) (points []Point, err error) {
	pointStrings := strings.Fields(s)
	if len(pointStrings) == 0 {
		return nil, ErrInvalidPointsField
	}

	points = make([]Point, len(pointStrings))
	for i, pointString := range pointStrings {
		coordStrings := strings.Split(pointString, ",")
		if len(coordStrings) != 2 {
			return nil, ErrInvalidPointsField
		}

		points[i].X, err = strconv.ParseFloat(coordStrings[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPointsField, pointString)
		}

		points[i].Y, err = strconv.ParseFloat(coordStrings[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPointsField, pointString)
		}
	}
	return
}
