package tmxmap

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Opener opens a file named by a path the loader resolved relative to the
// map (or external tileset) that referenced it.
type Opener func(name string) (io.ReadCloser, error)

// OpenFile opens name on the local file system.
func OpenFile(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// ImageLoader resolves a tileset image source into an image handle.
type ImageLoader interface {
	LoadImage(path string) (Image, error)
}

// ImageLoaderFunc adapts a function to ImageLoader.
type ImageLoaderFunc func(path string) (Image, error)

func (f ImageLoaderFunc) LoadImage(path string) (Image, error) {
	return f(path)
}

// FileImageLoader decodes images with the registered image formats.
type FileImageLoader struct {
	Open Opener
}

func (l FileImageLoader) LoadImage(path string) (Image, error) {
	open := l.Open
	if open == nil {
		open = OpenFile
	}

	img, err := DecodeImage(open, path)
	if err != nil {
		return nil, err
	}
	if si, ok := img.(Image); ok {
		return si, nil
	}

	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

// DecodeImage opens path and decodes it as png, jpeg, gif, bmp, tiff or
// webp.
func DecodeImage(open Opener, path string) (image.Image, error) {
	rc, err := open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, format, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decoding %q (%s): %w", path, format, err)
	}
	return img, nil
}
