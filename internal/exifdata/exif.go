package exifdata

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ErrNoExif marks the benign outcome: the decoder ran but the file simply
// carries no EXIF block. Many images (screenshots, most PNGs) land here.
var ErrNoExif = errors.New("no EXIF data found")

var exifHeader = []byte("Exif\x00\x00")

// Extract reads the embedded EXIF tags from raw image bytes and returns
// them as a tag-name to value map. Missing data yields ErrNoExif; an input
// that advertises an EXIF block but fails to parse yields a wrapped parse
// error. The goexif decoder panics on some corrupt inputs, so the recover
// is load-bearing.
func Extract(data []byte) (tags map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			tags = nil
			err = fmt.Errorf("parse exif: %v", r)
		}
	}()

	x, derr := exif.Decode(bytes.NewReader(data))
	if derr != nil {
		if hasExifMarker(data) {
			return nil, fmt.Errorf("parse exif: %w", derr)
		}
		return nil, ErrNoExif
	}

	w := &tagWalker{tags: make(map[string]string)}
	if werr := x.Walk(w); werr != nil {
		return nil, fmt.Errorf("walk exif tags: %w", werr)
	}
	if len(w.tags) == 0 {
		return nil, ErrNoExif
	}
	return w.tags, nil
}

// hasExifMarker reports whether the input actually advertises an EXIF block:
// a raw TIFF header, or a JPEG APP1 segment carrying the Exif payload marker.
// Only segment headers are walked, so the marker bytes occurring by chance
// inside entropy-coded pixel data do not count.
func hasExifMarker(data []byte) bool {
	if len(data) >= 4 {
		switch string(data[:4]) {
		case "II*\x00", "MM\x00*":
			return true
		}
	}
	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		return false
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xff {
			return false
		}
		marker := data[i+1]
		switch {
		case marker == 0xff: // padding
			i++
			continue
		case marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7): // standalone
			i += 2
			continue
		case marker == 0xda || marker == 0xd9: // entropy data or end of image
			return false
		}
		segLen := int(data[i+2])<<8 | int(data[i+3])
		if segLen < 2 || i+2+segLen > len(data) {
			return false
		}
		if marker == 0xe1 && bytes.HasPrefix(data[i+4:i+2+segLen], exifHeader) {
			return true
		}
		i += 2 + segLen
	}
	return false
}

type tagWalker struct {
	tags map[string]string
}

func (w *tagWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	// ASCII tags stringify with surrounding quotes.
	w.tags[string(name)] = strings.Trim(tag.String(), `"`)
	return nil
}
