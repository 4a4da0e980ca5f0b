// Package tmxmap loads orthogonal Tiled (TMX) maps into an in-memory model
// for rendering and queries.
//
// Loading is forgiving: malformed layer data, dangling tile references and
// missing tileset images are recorded as diagnostics on the Result while
// the rest of the map still loads. Only an unreadable document, a root
// that is not a map, bad map dimensions or an unsupported orientation
// fail the whole load.
package tmxmap

import (
	"io"
	"os"
	"path/filepath"

	"github.com/talvor/tmxmap/internal/xmltree"
)

// tmxReader parses a map from r. source names the document and is used to
// derive the base directory for tileset and image paths.
func tmxReader(source string, r io.Reader, opts []Option) (*Result, error) {
	if source != "" {
		opts = append([]Option{WithBaseDir(filepath.Dir(source))}, opts...)
	}
	o := newOptions(opts)

	root, err := xmltree.Parse(r, o.limits.tree())
	if err != nil {
		return nil, err
	}

	ld := &loader{
		m: &Map{Source: source},
		o: o,
	}
	if err := ld.load(root); err != nil {
		return nil, err
	}

	return &Result{Map: ld.m, Diagnostics: ld.diags}, nil
}

// Decode loads a map from r. Relative sources resolve against the
// directory given by WithBaseDir, or the working directory.
func Decode(r io.Reader, opts ...Option) (*Result, error) {
	return tmxReader("", r, opts)
}

// Load loads the map in fileName, resolving tilesets and images relative
// to the file.
func Load(fileName string, opts ...Option) (*Result, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return tmxReader(fileName, f, opts)
}

// LoadFile loads the map in fileName. Diagnostics are only logged; use
// Load to inspect them.
func LoadFile(fileName string, opts ...Option) (*Map, error) {
	res, err := Load(fileName, opts...)
	if err != nil {
		return nil, err
	}
	return res.Map, nil
}
