package imageproc

import (
	"image"
	"image/color"
	"slices"

	"github.com/UnendingLoop/ComfyMeta/internal/model"
	"github.com/disintegration/imaging"
)

// Strip returns a pixel buffer carrying nothing but pixels. Images with alpha
// or a palette headed for a container without transparency are flattened
// onto white, everything else is copied as is.
func Strip(h *model.ImageHandle) image.Image {
	if !h.Format.SupportsAlpha() && h.Mode.CarriesAlpha() {
		return Flatten(h.Pixels)
	}
	return Clone(h.Pixels)
}

// Flatten composites img onto an opaque white canvas of the same size.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// Clone copies the pixel buffer keeping its concrete type, so palettes,
// grayscale and chroma subsampling survive re-encoding.
func Clone(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.NRGBA:
		return &image.NRGBA{Pix: slices.Clone(src.Pix), Stride: src.Stride, Rect: src.Rect}
	case *image.RGBA:
		return &image.RGBA{Pix: slices.Clone(src.Pix), Stride: src.Stride, Rect: src.Rect}
	case *image.NRGBA64:
		return &image.NRGBA64{Pix: slices.Clone(src.Pix), Stride: src.Stride, Rect: src.Rect}
	case *image.RGBA64:
		return &image.RGBA64{Pix: slices.Clone(src.Pix), Stride: src.Stride, Rect: src.Rect}
	case *image.Gray:
		return &image.Gray{Pix: slices.Clone(src.Pix), Stride: src.Stride, Rect: src.Rect}
	case *image.Gray16:
		return &image.Gray16{Pix: slices.Clone(src.Pix), Stride: src.Stride, Rect: src.Rect}
	case *image.CMYK:
		return &image.CMYK{Pix: slices.Clone(src.Pix), Stride: src.Stride, Rect: src.Rect}
	case *image.Paletted:
		return &image.Paletted{
			Pix:     slices.Clone(src.Pix),
			Stride:  src.Stride,
			Rect:    src.Rect,
			Palette: slices.Clone(src.Palette),
		}
	case *image.YCbCr:
		return cloneYCbCr(src)
	case *image.NYCbCrA:
		return &image.NYCbCrA{
			YCbCr:   *cloneYCbCr(&src.YCbCr),
			A:       slices.Clone(src.A),
			AStride: src.AStride,
		}
	default:
		return imaging.Clone(img)
	}
}

func cloneYCbCr(src *image.YCbCr) *image.YCbCr {
	return &image.YCbCr{
		Y:              slices.Clone(src.Y),
		Cb:             slices.Clone(src.Cb),
		Cr:             slices.Clone(src.Cr),
		YStride:        src.YStride,
		CStride:        src.CStride,
		SubsampleRatio: src.SubsampleRatio,
		Rect:           src.Rect,
	}
}
