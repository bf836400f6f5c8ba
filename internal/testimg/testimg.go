// Package testimg builds small encoded images with embedded metadata for tests.
package testimg

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// NRGBA returns a w*h image filled with c.
func NRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// Encode encodes img in format.
func Encode(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

// PNG returns an opaque w*h PNG.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	return Encode(t, NRGBA(w, h, color.NRGBA{R: 100, G: 100, B: 200, A: 255}), imaging.PNG)
}

// WithText inserts one tEXt chunk per key/value pair right after IHDR.
func WithText(t *testing.T, png []byte, kv ...string) []byte {
	t.Helper()
	require.True(t, len(kv)%2 == 0, "key/value pairs expected")

	chunks := make([][]byte, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		body := append([]byte(kv[i]), 0)
		body = append(body, kv[i+1]...)
		chunks = append(chunks, Chunk("tEXt", body))
	}
	return Insert(t, png, chunks...)
}

// Insert places raw chunks right after IHDR.
func Insert(t *testing.T, png []byte, chunks ...[]byte) []byte {
	t.Helper()

	// signature (8) + IHDR chunk (4+4+13+4)
	const afterIHDR = 33
	require.Greater(t, len(png), afterIHDR)
	require.Equal(t, "IHDR", string(png[12:16]))

	out := make([]byte, 0, len(png)+1024)
	out = append(out, png[:afterIHDR]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, png[afterIHDR:]...)
}

// Chunk frames body as a PNG chunk of type ctype.
func Chunk(ctype string, body []byte) []byte {
	out := make([]byte, 8, 12+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:8], ctype)
	out = append(out, body...)

	crc := crc32.ChecksumIEEE(out[4:])
	return binary.BigEndian.AppendUint32(out, crc)
}

// JPEGWithComment returns a JPEG carrying a COM segment right after SOI.
func JPEGWithComment(t *testing.T, w, h int, comment string) []byte {
	t.Helper()
	return JPEGWithSegment(t, w, h, 0xFE, []byte(comment))
}

// JPEGWithSegment returns a JPEG carrying one extra marker segment right after SOI.
func JPEGWithSegment(t *testing.T, w, h int, marker byte, payload []byte) []byte {
	t.Helper()

	raw := Encode(t, NRGBA(w, h, color.NRGBA{R: 10, G: 200, B: 30, A: 255}), imaging.JPEG)
	seg := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	out := append([]byte{}, raw[:2]...)
	out = append(out, seg...)
	return append(out, raw[2:]...)
}

// TIFF returns a minimal TIFF structure whose IFD0 holds one SHORT entry per tag.
func TIFF(order binary.AppendByteOrder, tags ...uint16) []byte {
	var b []byte
	if order == binary.AppendByteOrder(binary.LittleEndian) {
		b = []byte("II*\x00")
	} else {
		b = []byte("MM\x00*")
	}
	b = order.AppendUint32(b, 8)
	b = order.AppendUint16(b, uint16(len(tags)))
	for _, tag := range tags {
		b = order.AppendUint16(b, tag)
		b = order.AppendUint16(b, 3) // SHORT
		b = order.AppendUint32(b, 1)
		b = order.AppendUint16(b, 1)
		b = order.AppendUint16(b, 0)
	}
	return order.AppendUint32(b, 0)
}
