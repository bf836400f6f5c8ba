package metadata

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/UnendingLoop/ComfyMeta/internal/model"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	"golang.org/x/text/encoding/charmap"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// maxTextSize caps inflated zTXt/iTXt payloads; workflows are far below it.
const maxTextSize = 64 << 20

// readPNG collects tEXt, zTXt and iTXt chunks in file order.
func readPNG(data []byte) (model.Info, error) {
	var info model.Info

	if !bytes.HasPrefix(data, pngSignature) {
		return info, errors.New("missing PNG signature")
	}

	chunks, err := splitPNG(data[len(pngSignature):])
	if err != nil {
		return info, err
	}

	for _, c := range chunks {
		if !c.CheckCrc32() {
			return info, fmt.Errorf("chunk %q at offset %d: crc mismatch", c.Type, c.Offset)
		}

		var (
			k, v string
			err  error
		)
		switch c.Type {
		case "tEXt":
			k, v, err = parseTEXt(c.Data)
		case "zTXt":
			k, v, err = parseZTXt(c.Data)
		case "iTXt":
			k, v, err = parseITXt(c.Data)
		default:
			continue
		}
		if err != nil {
			return info, err
		}
		info.Add(k, v)
	}

	return info, nil
}

// splitPNG runs the chunk splitter over the whole file at once (it is already
// in memory). Anything after IEND is ignored; a missing IEND means truncation.
func splitPNG(body []byte) ([]*pngstructure.Chunk, error) {
	ps := pngstructure.NewPngSplitter()

	for len(body) > 0 {
		advance, _, err := ps.Split(body, true)
		if err != nil {
			return nil, err
		}
		if advance == 0 {
			break
		}
		body = body[advance:]
		if last := ps.Chunks().Chunks(); last[len(last)-1].Type == "IEND" {
			break
		}
	}

	chunks := ps.Chunks().Chunks()
	if len(chunks) == 0 || chunks[len(chunks)-1].Type != "IEND" {
		return nil, errors.New("truncated PNG: no IEND chunk")
	}
	return chunks, nil
}

func parseTEXt(body []byte) (string, string, error) {
	k, rest, ok := bytes.Cut(body, []byte{0})
	if !ok {
		return "", "", errors.New("tEXt chunk without keyword separator")
	}
	key, err := latin1(k)
	if err != nil {
		return "", "", err
	}
	val, err := latin1(rest)
	if err != nil {
		return "", "", err
	}
	return key, val, nil
}

func parseZTXt(body []byte) (string, string, error) {
	k, rest, ok := bytes.Cut(body, []byte{0})
	if !ok || len(rest) < 1 {
		return "", "", errors.New("malformed zTXt chunk")
	}
	key, err := latin1(k)
	if err != nil {
		return "", "", err
	}
	raw, err := inflate(rest[1:])
	if err != nil {
		return "", "", fmt.Errorf("zTXt %q: %w", key, err)
	}
	val, err := latin1(raw)
	if err != nil {
		return "", "", err
	}
	return key, val, nil
}

func parseITXt(body []byte) (string, string, error) {
	k, rest, ok := bytes.Cut(body, []byte{0})
	if !ok || len(rest) < 2 {
		return "", "", errors.New("malformed iTXt chunk")
	}
	key := string(k)
	compressed := rest[0] == 1
	rest = rest[2:]

	// language tag and translated keyword are not used
	_, rest, ok = bytes.Cut(rest, []byte{0})
	if !ok {
		return "", "", errors.New("iTXt chunk without language tag")
	}
	_, rest, ok = bytes.Cut(rest, []byte{0})
	if !ok {
		return "", "", errors.New("iTXt chunk without translated keyword")
	}

	if !compressed {
		return key, string(rest), nil
	}
	raw, err := inflate(rest)
	if err != nil {
		return "", "", fmt.Errorf("iTXt %q: %w", key, err)
	}
	return key, string(raw), nil
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxTextSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxTextSize {
		return nil, errors.New("inflated text exceeds size limit")
	}
	return out, nil
}

func latin1(b []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
