// Package model provides data-structs shared by the extractor and the sanitizer
package model

import (
	"errors"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

type (
	Key    string
	Format string
	Mode   string
)

const (
	KeyWorkflow Key = "workflow"
	KeyPrompt   Key = "prompt"
)

// KnownKeys - порядок обработки ключей при извлечении
var KnownKeys = []Key{KeyWorkflow, KeyPrompt}

//---------------------

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
	FormatWEBP Format = "webp"
)

var formatByExt = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".bmp":  FormatBMP,
	".webp": FormatWEBP,
}

var imagingFormat = map[Format]imaging.Format{
	FormatJPEG: imaging.JPEG,
	FormatPNG:  imaging.PNG,
	FormatGIF:  imaging.GIF,
	FormatTIFF: imaging.TIFF,
	FormatBMP:  imaging.BMP,
}

// SanitizeExtensions - расширения, которые берет в работу санитайзер
var SanitizeExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".tif":  true,
	".bmp":  true,
	".webp": true,
}

// FormatFromExt maps a file extension (with or without the dot, any case) to a Format.
func FormatFromExt(ext string) (Format, error) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if f, ok := formatByExt[ext]; ok {
		return f, nil
	}
	return "", ErrUnsupportedFormat
}

// FormatFromName maps a decoder name as returned by image.Decode ("jpeg", "png", ...) to a Format.
func FormatFromName(name string) (Format, error) {
	f := Format(strings.ToLower(name))
	if _, ok := formatByExt["."+string(f)]; ok {
		return f, nil
	}
	return "", ErrUnsupportedFormat
}

// Imaging returns the encoder format of the imaging package; false for formats it cannot encode.
func (f Format) Imaging() (imaging.Format, bool) {
	v, ok := imagingFormat[f]
	return v, ok
}

// SupportsAlpha reports whether the container can store transparency.
func (f Format) SupportsAlpha() bool {
	return f != FormatJPEG
}

//---------------------

const (
	ModeRGB  Mode = "RGB"
	ModeRGBA Mode = "RGBA"
	ModeP    Mode = "P"
	ModeL    Mode = "L"
	ModeCMYK Mode = "CMYK"
)

// CarriesAlpha - палитра тоже считается: в ней может быть прозрачный цвет
func (m Mode) CarriesAlpha() bool {
	return m == ModeRGBA || m == ModeP
}

//---------------------

// InfoEntry is one side-channel key with its raw value.
type InfoEntry struct {
	Name  string
	Value string
}

// Info is the side-channel metadata of an image in file order. Only KnownKeys
// are ever interpreted, everything else is carried as is.
type Info struct {
	entries []InfoEntry
}

func NewInfo(entries ...InfoEntry) Info {
	return Info{entries: entries}
}

func (i *Info) Add(name, value string) {
	i.entries = append(i.entries, InfoEntry{Name: name, Value: value})
}

// Lookup returns the last value stored under k. An empty value counts as absent.
func (i Info) Lookup(k Key) (string, bool) {
	// повторный ключ перекрывает прежний, как в словаре info
	for j := len(i.entries) - 1; j >= 0; j-- {
		if e := i.entries[j]; e.Name == string(k) {
			return e.Value, e.Value != ""
		}
	}
	return "", false
}

func (i Info) Has(name string) bool {
	for _, e := range i.entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

func (i Info) Len() int {
	return len(i.entries)
}

func (i Info) Names() []string {
	res := make([]string, 0, len(i.entries))
	for _, e := range i.entries {
		res = append(res, e.Name)
	}
	return res
}

//---------------------

// ImageHandle is one decoded image; lives for the processing of one file.
type ImageHandle struct {
	Path   string
	Format Format
	Mode   Mode
	Pixels image.Image
	Info   Info
}

func (h *ImageHandle) Width() int  { return h.Pixels.Bounds().Dx() }
func (h *ImageHandle) Height() int { return h.Pixels.Bounds().Dy() }

// FileResult - итог обработки одного файла, возвращается в батч вместо паники/ошибки
type FileResult struct {
	Path    string
	OK      bool
	Skipped bool
	Outputs []string
	Err     error
}

// BaseName returns the file name without directory and extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ------------------

var (
	ErrPathNotFound       error = errors.New("input path does not exist")
	ErrNotDirectory       error = errors.New("input path is not a directory")
	ErrDecode             error = errors.New("cannot decode image")
	ErrMalformedMetadata  error = errors.New("metadata value is not valid JSON")
	ErrEncode             error = errors.New("cannot encode image")
	ErrWrite              error = errors.New("cannot write output file")
	ErrUnsupportedFormat  error = errors.New("unsupported image format")
	ErrUnsupportedEncoder error = errors.New("no encoder available for image format")
)
