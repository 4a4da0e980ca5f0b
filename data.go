package tmxmap

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/talvor/tmxmap/internal/xmltree"
)

var (
	ErrUnknownEncoding       = errors.New("tmx: invalid encoding scheme")
	ErrUnknownCompression    = errors.New("tmx: invalid compression method")
	ErrInvalidDecodedDataLen = errors.New("tmx: invalid decoded data length")
	ErrInvalidGID            = errors.New("tmx: invalid gid")
	ErrDecodedDataLimit      = errors.New("tmx: decoded data exceeds limit")
	ErrMissingData           = errors.New("tmx: layer has no data")
)

// decodeData turns a layer's data node into cells raw stored values.
// Flip bits are left in place.
func decodeData(d *xmltree.Node, cells int, maxBytes int64) ([]GID, error) {
	if d == nil {
		return nil, ErrMissingData
	}

	encoding, _ := d.Attr("encoding")
	compression, _ := d.Attr("compression")

	switch encoding {
	case "":
		if compression != "" {
			return nil, fmt.Errorf("%w: %q without encoding", ErrUnknownCompression, compression)
		}
		return decodeXML(d, cells)
	case "csv":
		if compression != "" {
			return nil, fmt.Errorf("%w: %q with csv", ErrUnknownCompression, compression)
		}
		return decodeCSV(d.Content(), cells)
	case "base64":
		raw, err := decodeBase64(d.Content(), compression, maxBytes)
		if err != nil {
			return nil, err
		}
		return decodeLittleEndian(raw, cells)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
}

func decodeXML(d *xmltree.Node, cells int) ([]GID, error) {
	tiles := d.Children("tile")
	if len(tiles) != cells {
		return nil, fmt.Errorf("%w: %d tiles, want %d", ErrInvalidDecodedDataLen, len(tiles), cells)
	}

	gids := make([]GID, cells)
	for i, t := range tiles {
		s, ok := t.Attr("gid")
		if !ok {
			return nil, fmt.Errorf("%w: tile %d has no gid", ErrInvalidGID, i)
		}
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: tile %d: %q", ErrInvalidGID, i, s)
		}
		gids[i] = GID(v)
	}
	return gids, nil
}

func decodeCSV(text string, cells int) ([]GID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: 0 values, want %d", ErrInvalidDecodedDataLen, cells)
	}

	str := strings.Split(text, ",")
	if len(str) != cells {
		return nil, fmt.Errorf("%w: %d values, want %d", ErrInvalidDecodedDataLen, len(str), cells)
	}

	gids := make([]GID, len(str))
	for i, s := range str {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %q", ErrInvalidGID, i, s)
		}
		gids[i] = GID(v)
	}
	return gids, nil
}

func decodeBase64(text, compression string, maxBytes int64) (data []byte, err error) {
	rawData := bytes.TrimSpace([]byte(text))
	r := bytes.NewReader(rawData)

	encr := base64.NewDecoder(base64.StdEncoding, r)

	var comr io.Reader
	switch compression {
	case "gzip":
		var gz *gzip.Reader
		gz, err = gzip.NewReader(encr)
		if err != nil {
			return
		}
		defer gz.Close()
		comr = gz
	case "zlib":
		var zr io.ReadCloser
		zr, err = zlib.NewReader(encr)
		if err != nil {
			return
		}
		defer zr.Close()
		comr = zr
	case "":
		comr = encr
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
		return
	}

	if maxBytes > 0 {
		comr = io.LimitReader(comr, maxBytes+1)
	}
	data, err = io.ReadAll(comr)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrDecodedDataLimit, maxBytes)
	}
	return data, nil
}

func decodeLittleEndian(dataBytes []byte, cells int) ([]GID, error) {
	if len(dataBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrInvalidDecodedDataLen, len(dataBytes))
	}
	if len(dataBytes)/4 != cells {
		return nil, fmt.Errorf("%w: %d values, want %d", ErrInvalidDecodedDataLen, len(dataBytes)/4, cells)
	}

	gids := make([]GID, cells)
	for i, j := 0, 0; i < cells; i, j = i+1, j+4 {
		gids[i] = GID(dataBytes[j]) |
			GID(dataBytes[j+1])<<8 |
			GID(dataBytes[j+2])<<16 |
			GID(dataBytes[j+3])<<24
	}
	return gids, nil
}
