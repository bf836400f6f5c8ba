// Package imageproc provides operations for images: decoding together with side-channel metadata, metadata stripping and format-aware encoding.
package imageproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/UnendingLoop/ComfyMeta/internal/metadata"
	"github.com/UnendingLoop/ComfyMeta/internal/model"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	_ "golang.org/x/image/webp" // регистрирует декодер webp для image.Decode
)

// Open reads and decodes the image at path.
func Open(fsys afero.Fs, path string) (*model.ImageHandle, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", model.ErrDecode, path, err)
	}
	return Decode(path, data)
}

// Decode decodes an already loaded file. Orientation tags are ignored so the
// pixel buffer stays exactly as stored.
func Decode(path string, data []byte) (*model.ImageHandle, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrDecode, path, err)
	}

	format, err := model.FormatFromName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %q: %v", model.ErrDecode, path, name, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrDecode, path, err)
	}

	info, err := metadata.Read(data, format)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}

	return &model.ImageHandle{
		Path:   path,
		Format: format,
		Mode:   ModeOf(img),
		Pixels: img,
		Info:   info,
	}, nil
}

// ModeOf derives the pixel mode from the concrete buffer type the decoder produced.
func ModeOf(img image.Image) model.Mode {
	switch img.(type) {
	case *image.Paletted:
		return model.ModeP
	case *image.Gray, *image.Gray16:
		return model.ModeL
	case *image.CMYK:
		return model.ModeCMYK
	case *image.YCbCr, *image.RGBA, *image.RGBA64:
		return model.ModeRGB
	default:
		// NRGBA, NRGBA64, NYCbCrA and anything unknown
		return model.ModeRGBA
	}
}
