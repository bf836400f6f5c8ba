// Package metadata reads side-channel text metadata (PNG text chunks, JPEG
// application segments) that the standard decoders discard.
package metadata

import (
	"fmt"

	"github.com/UnendingLoop/ComfyMeta/internal/model"
)

// Read returns the side-channel entries of an encoded image. Formats without
// a reader yield an empty Info.
func Read(data []byte, f model.Format) (model.Info, error) {
	var (
		info model.Info
		err  error
	)

	switch f {
	case model.FormatPNG:
		info, err = readPNG(data)
	case model.FormatJPEG:
		info, err = readJPEG(data)
	default:
		return model.Info{}, nil
	}

	if err != nil {
		return model.Info{}, fmt.Errorf("%w: %s metadata: %v", model.ErrDecode, f, err)
	}
	return info, nil
}
