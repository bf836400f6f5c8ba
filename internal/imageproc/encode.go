package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/UnendingLoop/ComfyMeta/internal/model"
	"github.com/disintegration/imaging"
)

// JPEGQuality - качество пересжатия jpeg
const JPEGQuality = 95

// Encode writes img to w in format f with format-specific parameters.
func Encode(w io.Writer, img image.Image, f model.Format) error {
	format, ok := f.Imaging()
	if !ok {
		return fmt.Errorf("%w: %s: %w", model.ErrEncode, f, model.ErrUnsupportedEncoder)
	}

	if err := imaging.Encode(w, img, format, encodeOptions(f)...); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrEncode, f, err)
	}
	return nil
}

// EncodeToBuffer is Encode into memory; the result size is returned alongside.
func EncodeToBuffer(img image.Image, f model.Format) (io.Reader, int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f); err != nil {
		return nil, 0, err
	}
	return &buf, int64(buf.Len()), nil
}

func encodeOptions(f model.Format) []imaging.EncodeOption {
	switch f {
	case model.FormatJPEG:
		return []imaging.EncodeOption{imaging.JPEGQuality(JPEGQuality)}
	case model.FormatPNG:
		return []imaging.EncodeOption{imaging.PNGCompressionLevel(png.BestCompression)}
	default:
		return nil
	}
}
