package renderer

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/talvor/tmxmap"
)

// ImageLoader loads tileset images as ebiten images so the renderer can
// draw the tiles' sub-images directly. Pass it to the loader with
// tmxmap.WithImageLoader.
type ImageLoader struct {
	Open tmxmap.Opener
}

func (l ImageLoader) LoadImage(path string) (tmxmap.Image, error) {
	open := l.Open
	if open == nil {
		open = tmxmap.OpenFile
	}

	img, err := tmxmap.DecodeImage(open, path)
	if err != nil {
		return nil, err
	}
	return ebiten.NewImageFromImage(img), nil
}
