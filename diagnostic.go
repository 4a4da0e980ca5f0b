package tmxmap

import (
	"errors"
	"fmt"
	"strings"
)

// DiagnosticKind classifies a recoverable problem found while loading.
type DiagnosticKind int

const (
	// LayerDataMalformed: a layer's data or attributes could not be
	// decoded. The layer is kept with empty cells.
	LayerDataMalformed DiagnosticKind = iota
	// ReferenceMalformed: a gid belongs to no tileset. The cell is left
	// empty and the object is hidden with no gid.
	ReferenceMalformed
	// ResourceMalformed: a tileset, its image or one of its tiles could
	// not be read. Affected tiles have no image. Unnamed map and tileset
	// properties are reported here too.
	ResourceMalformed
)

func (k DiagnosticKind) String() string {
	switch k {
	case LayerDataMalformed:
		return "layer-data"
	case ReferenceMalformed:
		return "reference"
	case ResourceMalformed:
		return "resource"
	}
	return "unknown"
}

// Diagnostic is a recoverable problem. The load carried on past it.
type Diagnostic struct {
	Kind    DiagnosticKind
	Layer   string
	Tileset string
	GID     GID
	Err     error
}

func (d Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString(d.Kind.String())
	if d.Layer != "" {
		fmt.Fprintf(&sb, " layer=%q", d.Layer)
	}
	if d.Tileset != "" {
		fmt.Fprintf(&sb, " tileset=%q", d.Tileset)
	}
	if d.GID != 0 {
		fmt.Fprintf(&sb, " gid=%d", d.GID)
	}
	sb.WriteString(": ")
	sb.WriteString(d.Err.Error())
	return sb.String()
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

// Result is a loaded map together with everything that went wrong while
// loading it.
type Result struct {
	Map         *Map
	Diagnostics []Diagnostic
}

// Err joins all diagnostics, or returns nil when there were none.
func (r *Result) Err() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	errs := make([]error, len(r.Diagnostics))
	for i := range r.Diagnostics {
		errs[i] = r.Diagnostics[i]
	}
	return errors.Join(errs...)
}

// Count returns how many diagnostics of the given kind were reported.
func (r *Result) Count(kind DiagnosticKind) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

func (ld *loader) report(d Diagnostic) {
	ld.diags = append(ld.diags, d)

	ev := ld.o.logger.Warn().
		Str("kind", d.Kind.String()).
		Str("map", ld.m.Source)
	if d.Layer != "" {
		ev = ev.Str("layer", d.Layer)
	}
	if d.Tileset != "" {
		ev = ev.Str("tileset", d.Tileset)
	}
	if d.GID != 0 {
		ev = ev.Uint32("gid", uint32(d.GID))
	}
	ev.Err(d.Err).Msg("tmx: recovered from malformed input")
}
