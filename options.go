package tmxmap

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/talvor/tmxmap/internal/xmltree"
)

// Limits bounds the work a single load may do. Zero fields disable the
// corresponding check.
type Limits struct {
	MaxDocumentBytes int64 `yaml:"max_document_bytes"`
	MaxDepth         int   `yaml:"max_depth"`
	MaxCells         int   `yaml:"max_cells"`
	MaxDecodedBytes  int64 `yaml:"max_decoded_bytes"`
}

var DefaultLimits = Limits{
	MaxDocumentBytes: 64 << 20,
	MaxDepth:         64,
	MaxCells:         1 << 24,
	MaxDecodedBytes:  64 << 20,
}

func (l Limits) tree() xmltree.Limits {
	return xmltree.Limits{MaxBytes: l.MaxDocumentBytes, MaxDepth: l.MaxDepth}
}

type options struct {
	logger  zerolog.Logger
	images  ImageLoader
	open    Opener
	baseDir string
	limits  Limits
}

type Option func(*options)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithImageLoader replaces the default file-decoding image loader.
func WithImageLoader(il ImageLoader) Option {
	return func(o *options) {
		o.images = il
	}
}

// WithOpener sets how external tilesets (and, with the default image
// loader, images) are opened.
func WithOpener(open Opener) Option {
	return func(o *options) {
		o.open = open
	}
}

// WithBaseDir sets the directory relative sources are resolved against.
func WithBaseDir(dir string) Option {
	return func(o *options) {
		o.baseDir = dir
	}
}

func WithLimits(l Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: log.Logger,
		open:   OpenFile,
		limits: DefaultLimits,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.images == nil {
		o.images = FileImageLoader{Open: o.open}
	}
	return o
}
