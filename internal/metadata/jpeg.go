package metadata

import (
	"bytes"
	"errors"
	"strings"

	"github.com/UnendingLoop/ComfyMeta/internal/model"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerCOM  = 0xFE
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
	markerAPP2 = 0xE2
	markerAPPE = 0xEE
)

var (
	jfifID  = []byte("JFIF\x00")
	exifID  = []byte("Exif\x00\x00")
	xmpID   = []byte("http://ns.adobe.com/xap/1.0/\x00")
	iccID   = []byte("ICC_PROFILE\x00")
	adobeID = []byte("Adobe")
)

// readJPEG records the marker segments before the first scan that carry metadata.
func readJPEG(data []byte) (model.Info, error) {
	var info model.Info

	segments, err := splitJPEG(data)
	if err != nil {
		return info, err
	}

	for _, s := range segments {
		payload := s.Data
		switch {
		case s.MarkerId == markerAPP0 && bytes.HasPrefix(payload, jfifID):
			info.Add("jfif", string(payload[len(jfifID):]))
		case s.MarkerId == markerAPP1 && bytes.HasPrefix(payload, exifID):
			info.Add("exif", string(payload[len(exifID):]))
		case s.MarkerId == markerAPP1 && bytes.HasPrefix(payload, xmpID):
			info.Add("xmp", string(payload[len(xmpID):]))
		case s.MarkerId == markerAPP2 && bytes.HasPrefix(payload, iccID):
			info.Add("icc_profile", string(payload))
		case s.MarkerId == markerAPPE && bytes.HasPrefix(payload, adobeID):
			info.Add("adobe", string(payload))
		case s.MarkerId == markerCOM:
			info.Add("comment", string(payload))
		}
	}

	return info, nil
}

// splitJPEG feeds the whole file to the segment splitter and stops at the
// first scan; nothing after SOS carries metadata.
func splitJPEG(data []byte) ([]*jpegstructure.Segment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, errors.New("missing JPEG SOI marker")
	}

	js := jpegstructure.NewJpegSplitter(nil)
	for rest := data; len(rest) > 0; {
		advance, _, err := js.Split(rest, true)
		if err != nil {
			return nil, err
		}
		if advance == 0 {
			break
		}
		rest = rest[advance:]

		segments := js.Segments().Segments()
		if len(segments) == 0 {
			continue
		}
		if id := segments[len(segments)-1].MarkerId; id == markerSOS || id == markerEOI {
			break
		}
	}

	return js.Segments().Segments(), nil
}

type tagCounter int

func (c *tagCounter) Walk(_ exif.FieldName, _ *tiff.Tag) error {
	*c++
	return nil
}

// ExifTagCount returns the number of EXIF tags (IFD0 and its sub-IFDs) of a
// raw TIFF-structured block, 0 when it cannot be read.
func ExifTagCount(raw string) int {
	if raw == "" {
		return 0
	}

	// некритичные ошибки (битые sub-IFD) не мешают посчитать остальное
	x, err := exif.Decode(strings.NewReader(raw))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return 0
	}

	var n tagCounter
	if err := x.Walk(&n); err != nil {
		return 0
	}
	return int(n)
}
