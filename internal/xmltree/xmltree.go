// Package xmltree builds a generic element tree from an XML document and
// offers a few lookups over it. It knows nothing about maps.
package xmltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNoRoot        = errors.New("xmltree: document has no root element")
	ErrTooDeep       = errors.New("xmltree: element nesting exceeds limit")
	ErrDocumentLimit = errors.New("xmltree: document exceeds size limit")
)

// Node is one element. Elems holds its child elements in document order.
// Text holds the element's own character data, children's text is
// reachable through Content.
type Node struct {
	Name  string
	Attrs []xml.Attr
	Elems []*Node
	Text  string
}

// Limits bounds what Parse will accept. Zero fields mean unlimited.
type Limits struct {
	MaxBytes int64
	MaxDepth int
}

// Parse reads r and returns its root element.
func Parse(r io.Reader, lim Limits) (*Node, error) {
	if lim.MaxBytes > 0 {
		r = &limitedReader{r: r, n: lim.MaxBytes}
	}
	d := xml.NewDecoder(r)
	d.Strict = true

	var (
		root  *Node
		stack []*Node
		text  [][]byte
	)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if lim.MaxDepth > 0 && len(stack) >= lim.MaxDepth {
				return nil, fmt.Errorf("%w: %d", ErrTooDeep, lim.MaxDepth)
			}
			n := &Node{Name: t.Name.Local, Attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("xmltree: second root element %q", n.Name)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Elems = append(parent.Elems, n)
			}
			stack = append(stack, n)
			text = append(text, nil)
		case xml.EndElement:
			top := len(stack) - 1
			stack[top].Text = string(text[top])
			stack = stack[:top]
			text = text[:top]
		case xml.CharData:
			if len(stack) > 0 {
				text[len(text)-1] = append(text[len(text)-1], t...)
			}
		}
	}

	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

// FirstChild returns the first direct child called name, or nil.
func (n *Node) FirstChild(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Elems {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Children returns the direct children called name in document order.
func (n *Node) Children(name string) []*Node {
	return n.ChildrenEither(name, name)
}

// ChildrenEither returns the direct children called a or b, keeping
// document order across both names.
func (n *Node) ChildrenEither(a, b string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Elems {
		if c.Name == a || c.Name == b {
			out = append(out, c)
		}
	}
	return out
}

// Attr returns the value of the attribute called name.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when it is absent.
func (n *Node) AttrOr(name, def string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return def
}

// Content returns the text of n and all its descendants.
func (n *Node) Content() string {
	if n == nil {
		return ""
	}
	if len(n.Elems) == 0 {
		return n.Text
	}
	var sb strings.Builder
	sb.WriteString(n.Text)
	for _, c := range n.Elems {
		sb.WriteString(c.Content())
	}
	return sb.String()
}

type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		// One more byte tells us whether the document really is too large.
		var one [1]byte
		n, err := l.r.Read(one[:])
		if n > 0 {
			return 0, ErrDocumentLimit
		}
		return 0, err
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}
