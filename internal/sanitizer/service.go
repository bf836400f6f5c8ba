// Package sanitizer re-encodes images without any side-channel metadata
package sanitizer

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/ComfyMeta/internal/imageproc"
	"github.com/UnendingLoop/ComfyMeta/internal/logctx"
	"github.com/UnendingLoop/ComfyMeta/internal/metadata"
	"github.com/UnendingLoop/ComfyMeta/internal/model"
	"github.com/UnendingLoop/ComfyMeta/internal/report"
	"github.com/UnendingLoop/ComfyMeta/internal/traversal"
	"github.com/spf13/afero"
)

// CleanSuffix - суффикс копии, когда оригинал сохраняется
const CleanSuffix = "_no_metadata"

// ArtifactStorage - контракт для записи очищенных изображений
type ArtifactStorage interface {
	EnsureDir(ctx context.Context, dir string) error
	Put(ctx context.Context, path string, r io.Reader) error
}

// FolderOptions control a batch run over a directory.
type FolderOptions struct {
	Preserve  bool
	Recursive bool
	Exclude   []string
}

type Service struct {
	fs       afero.Fs
	storage  ArtifactStorage
	reporter *report.Reporter
	verbose  bool
}

func NewService(fsys afero.Fs, strg ArtifactStorage, rep *report.Reporter, verbose bool) *Service {
	return &Service{fs: fsys, storage: strg, reporter: rep, verbose: verbose}
}

// Sanitize writes a metadata-free copy of in. out overrides the destination;
// otherwise the copy gets CleanSuffix when preserve is set, or replaces in.
// Failures are reported and returned in the result, never propagated.
func (s *Service) Sanitize(ctx context.Context, in, out string, preserve bool) model.FileResult {
	ctx = logctx.WithFile(ctx, in)
	logger := logctx.LoggerFromContext(ctx)
	res := model.FileResult{Path: in}

	h, err := imageproc.Open(s.fs, in)
	if err != nil {
		return s.fail(ctx, res, err)
	}
	logger.Debug().Str("format", string(h.Format)).Str("mode", string(h.Mode)).
		Strs("info", h.Info.Names()).Msg("Image decoded")

	if s.verbose {
		exif, _ := h.Info.Lookup(model.Key("exif"))
		s.reporter.Metadata(h.Info, metadata.ExifTagCount(exif))
	}

	dest := Destination(in, out, preserve)
	if err := s.write(ctx, h, dest); err != nil {
		return s.fail(ctx, res, err)
	}

	s.reporter.Cleaned(in, dest)
	res.OK = true
	res.Outputs = []string{dest}
	return res
}

func (s *Service) write(ctx context.Context, h *model.ImageHandle, dest string) error {
	clean := imageproc.Strip(h)

	r, size, err := imageproc.EncodeToBuffer(clean, h.Format)
	if err != nil {
		return err
	}
	if err := s.storage.Put(ctx, dest, r); err != nil {
		return err
	}

	logger := logctx.LoggerFromContext(ctx)
	logger.Debug().Str("dest", dest).Int64("bytes", size).Msg("Clean image written")
	return nil
}

func (s *Service) fail(ctx context.Context, res model.FileResult, err error) model.FileResult {
	logger := logctx.LoggerFromContext(ctx)
	logger.Error().Err(err).Msg("Failed to sanitize image")
	s.reporter.Failed(res.Path, err)
	res.Err = err
	return res
}

// Destination resolves where the clean image of in is written.
func Destination(in, out string, preserve bool) string {
	switch {
	case out != "":
		return out
	case preserve:
		ext := filepath.Ext(in)
		return strings.TrimSuffix(in, ext) + CleanSuffix + ext
	default:
		return in
	}
}

// ProcessFolder sanitizes every supported image under root. With outRoot set,
// outputs mirror root's directory layout there. A file's failure never stops
// the batch; only cancellation does, keeping what was done so far.
func (s *Service) ProcessFolder(ctx context.Context, root, outRoot string, opts FolderOptions) (report.Summary, error) {
	logger := logctx.LoggerFromContext(ctx)
	var sum report.Summary

	if outRoot != "" {
		if err := s.storage.EnsureDir(ctx, outRoot); err != nil {
			return sum, err
		}
	}

	files, err := traversal.Walk(ctx, s.fs, root, traversal.Options{
		Recursive: opts.Recursive,
		Match:     traversal.ExtensionIn(model.SanitizeExtensions),
		Exclude:   opts.Exclude,
	})
	if err != nil {
		return sum, err
	}
	logger.Info().Int("candidates", len(files)).Str("root", root).Msg("Sanitizing folder")

	for _, f := range files {
		if ctx.Err() != nil {
			logger.Warn().Int("done", sum.Total).Msg("Interrupted")
			break
		}

		out := ""
		if outRoot != "" {
			dir, err := traversal.MirrorDir(root, outRoot, f)
			if err != nil {
				sum.Add(s.fail(ctx, model.FileResult{Path: f}, err))
				continue
			}
			if err := s.storage.EnsureDir(ctx, dir); err != nil {
				sum.Add(s.fail(ctx, model.FileResult{Path: f}, err))
				continue
			}
			out = filepath.Join(dir, filepath.Base(f))
		}

		sum.Add(s.Sanitize(ctx, f, out, opts.Preserve))
	}

	s.reporter.Totals(sum, "images")
	return sum, nil
}
