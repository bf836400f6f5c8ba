package sanitizer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/UnendingLoop/ComfyMeta/internal/imageproc"
	"github.com/UnendingLoop/ComfyMeta/internal/logctx"
	"github.com/UnendingLoop/ComfyMeta/internal/model"
	"github.com/UnendingLoop/ComfyMeta/internal/report"
	"github.com/UnendingLoop/ComfyMeta/internal/storage/fsstorage"
	"github.com/UnendingLoop/ComfyMeta/internal/testimg"
	"github.com/disintegration/imaging"
	fcolor "github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, verbose bool) (*Service, afero.Fs, *bytes.Buffer, context.Context) {
	t.Helper()

	prev := fcolor.NoColor
	fcolor.NoColor = true
	t.Cleanup(func() { fcolor.NoColor = prev })

	fsys := afero.NewMemMapFs()
	var buf bytes.Buffer
	svc := NewService(fsys, fsstorage.New(fsys), report.New(&buf), verbose)
	ctx := logctx.WithLogger(context.Background(), zerolog.Nop())

	return svc, fsys, &buf, ctx
}

func put(t *testing.T, fsys afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, data, 0o644))
}

func comfyPNG(t *testing.T) []byte {
	t.Helper()
	return testimg.WithText(t, testimg.PNG(t, 6, 4), "workflow", `{"nodes":[]}`, "prompt", `{"1":{}}`, "Software", "x")
}

func open(t *testing.T, fsys afero.Fs, path string) (*model.ImageHandle, []uint8) {
	t.Helper()
	h, err := imageproc.Open(fsys, path)
	require.NoError(t, err)
	return h, imaging.Clone(h.Pixels).Pix
}

func exists(t *testing.T, fsys afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fsys, path)
	require.NoError(t, err)
	return ok
}

func TestDestination(t *testing.T) {
	tests := []struct {
		name     string
		in, out  string
		preserve bool
		want     string
	}{
		{name: "explicit output wins", in: "/a/x.png", out: "/b/y.png", preserve: true, want: "/b/y.png"},
		{name: "preserve adds suffix", in: "/a/x.png", preserve: true, want: "/a/x_no_metadata.png"},
		{name: "keeps extension case", in: "/a/photo.JPG", preserve: true, want: "/a/photo_no_metadata.JPG"},
		{name: "in place", in: "/a/x.png", want: "/a/x.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Destination(tt.in, tt.out, tt.preserve))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	svc, fsys, out, ctx := newTestService(t, false)
	put(t, fsys, "/in/a.png", comfyPNG(t))
	src, srcPix := open(t, fsys, "/in/a.png")
	require.Equal(t, 3, src.Info.Len())

	res := svc.Sanitize(ctx, "/in/a.png", "", true)
	require.True(t, res.OK)
	require.NoError(t, res.Err)
	require.Equal(t, []string{"/in/a_no_metadata.png"}, res.Outputs)
	require.Equal(t,
		"Successfully removed metadata from: /in/a.png\nClean image saved as: /in/a_no_metadata.png\n",
		out.String())

	first, firstPix := open(t, fsys, "/in/a_no_metadata.png")
	require.Zero(t, first.Info.Len())
	require.Equal(t, srcPix, firstPix)
	require.Equal(t, src.Format, first.Format)

	res = svc.Sanitize(ctx, "/in/a_no_metadata.png", "/in/again.png", true)
	require.True(t, res.OK)

	second, secondPix := open(t, fsys, "/in/again.png")
	require.Zero(t, second.Info.Len())
	require.Equal(t, firstPix, secondPix)

	// оригинал не тронут
	orig, _ := open(t, fsys, "/in/a.png")
	require.Equal(t, 3, orig.Info.Len())
}

func TestSanitize_InPlace(t *testing.T) {
	svc, fsys, out, ctx := newTestService(t, false)
	put(t, fsys, "/in/a.png", comfyPNG(t))
	_, srcPix := open(t, fsys, "/in/a.png")

	res := svc.Sanitize(ctx, "/in/a.png", "", false)
	require.True(t, res.OK)
	require.Equal(t, "Successfully removed metadata from: /in/a.png\n", out.String())

	h, pix := open(t, fsys, "/in/a.png")
	require.Zero(t, h.Info.Len())
	require.Equal(t, srcPix, pix)

	entries, err := afero.ReadDir(fsys, "/in")
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary or suffixed files left")
}

func TestSanitize_Formats(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		data   func(t *testing.T) []byte
		format model.Format
	}{
		{
			name:   "jpeg with comment",
			path:   "/in/a.jpg",
			data:   func(t *testing.T) []byte { return testimg.JPEGWithComment(t, 8, 8, "secret") },
			format: model.FormatJPEG,
		},
		{
			name: "bmp",
			path: "/in/a.bmp",
			data: func(t *testing.T) []byte {
				return testimg.Encode(t, testimg.NRGBA(5, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 255}), imaging.BMP)
			},
			format: model.FormatBMP,
		},
		{
			name: "tiff",
			path: "/in/a.tiff",
			data: func(t *testing.T) []byte {
				return testimg.Encode(t, testimg.NRGBA(5, 5, color.NRGBA{R: 9, G: 8, B: 7, A: 128}), imaging.TIFF)
			},
			format: model.FormatTIFF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fsys, _, ctx := newTestService(t, false)
			put(t, fsys, tt.path, tt.data(t))

			res := svc.Sanitize(ctx, tt.path, "/out/clean", true)
			require.True(t, res.OK, "%v", res.Err)

			h, _ := open(t, fsys, "/out/clean")
			require.Equal(t, tt.format, h.Format)
			require.Zero(t, h.Info.Len())
		})
	}
}

func TestSanitize_Verbose(t *testing.T) {
	svc, fsys, out, ctx := newTestService(t, true)
	put(t, fsys, "/in/a.png", comfyPNG(t))

	res := svc.Sanitize(ctx, "/in/a.png", "/out/a.png", true)
	require.True(t, res.OK)
	require.Contains(t, out.String(),
		"Original image has 3 info tags\n  - Contains ComfyUI workflow metadata\n  - Contains ComfyUI prompt metadata\n")
}

func TestSanitize_Logs(t *testing.T) {
	svc, fsys, _, _ := newTestService(t, false)
	put(t, fsys, "/in/a.png", comfyPNG(t))
	put(t, fsys, "/in/bad.png", []byte("not an image"))

	var logs bytes.Buffer
	ctx := logctx.WithLogger(context.Background(), zerolog.New(&logs).Level(zerolog.DebugLevel))

	require.True(t, svc.Sanitize(ctx, "/in/a.png", "", true).OK)
	require.Contains(t, logs.String(), `"message":"Clean image written"`)
	require.Contains(t, logs.String(), `"dest":"/in/a_no_metadata.png"`)

	require.False(t, svc.Sanitize(ctx, "/in/bad.png", "", true).OK)
	require.Contains(t, logs.String(), `"level":"error"`)
	require.Contains(t, logs.String(), `"message":"Failed to sanitize image"`)
}

func TestSanitize_Undecodable(t *testing.T) {
	svc, fsys, out, ctx := newTestService(t, false)
	put(t, fsys, "/in/bad.png", []byte("not an image"))

	res := svc.Sanitize(ctx, "/in/bad.png", "", true)
	require.False(t, res.OK)
	require.ErrorIs(t, res.Err, model.ErrDecode)
	require.Contains(t, out.String(), "Error processing /in/bad.png")
	require.False(t, exists(t, fsys, "/in/bad_no_metadata.png"))
}

func TestWrite_FlattensAlphaForJPEG(t *testing.T) {
	svc, fsys, _, ctx := newTestService(t, false)

	src := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			if x < 8 {
				src.SetNRGBA(x, y, color.NRGBA{R: 255, A: 0}) // прозрачная половина
			} else {
				src.SetNRGBA(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}
	h := &model.ImageHandle{Path: "mem", Format: model.FormatJPEG, Mode: model.ModeRGBA, Pixels: src}

	require.NoError(t, svc.write(ctx, h, "/out/flat.jpg"))

	got, _ := open(t, fsys, "/out/flat.jpg")
	require.Equal(t, model.FormatJPEG, got.Format)

	near := func(c color.Color, want color.NRGBA) {
		r, g, b, a := c.RGBA()
		require.Equal(t, uint32(0xffff), a)
		const tol = 12
		require.InDelta(t, int(want.R), int(r>>8), tol)
		require.InDelta(t, int(want.G), int(g>>8), tol)
		require.InDelta(t, int(want.B), int(b>>8), tol)
	}
	near(got.Pixels.At(2, 4), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	near(got.Pixels.At(13, 4), color.NRGBA{B: 255, A: 255})
}

func TestWrite_UnsupportedEncoder(t *testing.T) {
	svc, fsys, _, ctx := newTestService(t, false)
	h := &model.ImageHandle{
		Path:   "mem",
		Format: model.FormatWEBP,
		Mode:   model.ModeRGBA,
		Pixels: testimg.NRGBA(2, 2, color.NRGBA{A: 255}),
	}

	err := svc.write(ctx, h, "/out/x.webp")
	require.ErrorIs(t, err, model.ErrEncode)
	require.False(t, exists(t, fsys, "/out/x.webp"))
}

func TestProcessFolder_Isolation(t *testing.T) {
	svc, fsys, out, ctx := newTestService(t, false)
	put(t, fsys, "/in/a.png", comfyPNG(t))
	put(t, fsys, "/in/b.bmp", testimg.Encode(t, testimg.NRGBA(3, 3, color.NRGBA{G: 200, A: 255}), imaging.BMP))
	put(t, fsys, "/in/c.jpg", []byte("corrupt"))

	sum, err := svc.ProcessFolder(ctx, "/in", "", FolderOptions{Preserve: true, Recursive: true})
	require.NoError(t, err)
	require.Equal(t, report.Summary{Total: 3, Succeeded: 2, Failed: 1}, sum)
	require.Contains(t, out.String(), "Error processing /in/c.jpg")
	require.Contains(t, out.String(), "\nProcessed 2 images total (1 failed, 0 skipped)\n")

	require.True(t, exists(t, fsys, "/in/a_no_metadata.png"))
	require.True(t, exists(t, fsys, "/in/b_no_metadata.bmp"))
}

func TestProcessFolder_Mirror(t *testing.T) {
	tests := []struct {
		name    string
		opts    FolderOptions
		want    []string
		missing []string
	}{
		{
			name:    "recursive",
			opts:    FolderOptions{Recursive: true},
			want:    []string{"/out/a.png", "/out/sub/b.PNG", "/out/sub/deeper/c.png", "/out/skip/d.png"},
			missing: []string{"/out/notes.txt"},
		},
		{
			name:    "flat",
			opts:    FolderOptions{},
			want:    []string{"/out/a.png"},
			missing: []string{"/out/sub/b.PNG", "/out/sub"},
		},
		{
			name:    "exclude",
			opts:    FolderOptions{Recursive: true, Exclude: []string{"skip/", "deeper"}},
			want:    []string{"/out/a.png", "/out/sub/b.PNG"},
			missing: []string{"/out/skip", "/out/sub/deeper"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fsys, _, ctx := newTestService(t, false)
			for _, p := range []string{"/in/a.png", "/in/sub/b.PNG", "/in/sub/deeper/c.png", "/in/skip/d.png"} {
				put(t, fsys, p, comfyPNG(t))
			}
			put(t, fsys, "/in/notes.txt", []byte("hi"))

			sum, err := svc.ProcessFolder(ctx, "/in", "/out", tt.opts)
			require.NoError(t, err)
			require.Equal(t, len(tt.want), sum.Succeeded)

			for _, p := range tt.want {
				require.True(t, exists(t, fsys, p), p)
				h, _ := open(t, fsys, p)
				require.Zero(t, h.Info.Len())
			}
			for _, p := range tt.missing {
				require.False(t, exists(t, fsys, p), p)
			}
			// исходники не меняются, если есть outRoot
			h, _ := open(t, fsys, "/in/a.png")
			require.Equal(t, 3, h.Info.Len())
		})
	}
}

// lockedFs refuses to open one directory, like a folder without read permission.
type lockedFs struct {
	afero.Fs
	locked string
}

func (l lockedFs) Open(name string) (afero.File, error) {
	if name == l.locked {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return l.Fs.Open(name)
}

func TestProcessFolder_UnreadableSubdir(t *testing.T) {
	_, mem, out, ctx := newTestService(t, false)
	for _, p := range []string{"/in/a.png", "/in/locked/b.png", "/in/z.png"} {
		put(t, mem, p, comfyPNG(t))
	}
	fsys := lockedFs{Fs: mem, locked: "/in/locked"}
	svc := NewService(fsys, fsstorage.New(fsys), report.New(out), false)

	sum, err := svc.ProcessFolder(ctx, "/in", "", FolderOptions{Preserve: true, Recursive: true})
	require.NoError(t, err)
	require.Equal(t, report.Summary{Total: 2, Succeeded: 2}, sum)

	require.True(t, exists(t, mem, "/in/a_no_metadata.png"))
	require.True(t, exists(t, mem, "/in/z_no_metadata.png"))
	require.False(t, exists(t, mem, "/in/locked/b_no_metadata.png"))
}

func TestProcessFolder_MissingRoot(t *testing.T) {
	svc, _, _, ctx := newTestService(t, false)

	_, err := svc.ProcessFolder(ctx, "/nope", "", FolderOptions{Recursive: true})
	require.ErrorIs(t, err, model.ErrPathNotFound)
}

func TestProcessFolder_Cancelled(t *testing.T) {
	svc, fsys, out, ctx := newTestService(t, false)
	put(t, fsys, "/in/a.png", comfyPNG(t))

	ctx, cancel := context.WithCancel(ctx)
	cancel()

	sum, err := svc.ProcessFolder(ctx, "/in", "", FolderOptions{Preserve: true, Recursive: true})
	require.NoError(t, err)
	require.Zero(t, sum.Total)
	require.Contains(t, out.String(), "Processed 0 images total")
	require.False(t, exists(t, fsys, "/in/a_no_metadata.png"))
}
