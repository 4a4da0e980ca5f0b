package tmxmap

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/talvor/tmxmap/internal/xmltree"
)

var (
	ErrPropertyNotFound = errors.New("tmx: property not found")
	ErrUnnamedProperty  = errors.New("tmx: property without a name")
)

// Properties maps property names to their raw string values. A node
// without a properties section yields an empty, non-nil table.
type Properties map[string]string

func (p Properties) String(name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrPropertyNotFound, name)
	}
	return v, nil
}

func (p Properties) Int(name string) (int, error) {
	v, err := p.String(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (p Properties) Float(name string) (float64, error) {
	v, err := p.String(name)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(v, 64)
}

func (p Properties) Bool(name string) (bool, error) {
	v, err := p.String(name)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(v)
}

// parseProperties reads the properties child of n. A property without a
// value attribute takes its text content; later duplicates win. Properties
// without a name are skipped and reported through the error, the table is
// always usable.
func parseProperties(n *xmltree.Node) (Properties, error) {
	props := Properties{}

	pn := n.FirstChild("properties")
	if pn == nil {
		return props, nil
	}

	unnamed := 0
	for _, p := range pn.Children("property") {
		name, ok := p.Attr("name")
		if !ok {
			unnamed++
			continue
		}
		value, ok := p.Attr("value")
		if !ok {
			value = p.Content()
		}
		props[name] = value
	}
	if unnamed > 0 {
		return props, fmt.Errorf("%w: %d skipped", ErrUnnamedProperty, unnamed)
	}
	return props, nil
}
