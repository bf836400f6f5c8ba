// Package extractor pulls embedded ComfyUI workflow/prompt JSON out of images into standalone files
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/UnendingLoop/ComfyMeta/internal/imageproc"
	"github.com/UnendingLoop/ComfyMeta/internal/logctx"
	"github.com/UnendingLoop/ComfyMeta/internal/model"
	"github.com/UnendingLoop/ComfyMeta/internal/report"
	"github.com/UnendingLoop/ComfyMeta/internal/traversal"
	"github.com/spf13/afero"
)

// ArtifactStorage - контракт для записи json-файлов
type ArtifactStorage interface {
	EnsureDir(ctx context.Context, dir string) error
	Put(ctx context.Context, path string, r io.Reader) error
}

type Service struct {
	fs        afero.Fs
	storage   ArtifactStorage
	reporter  *report.Reporter
	outputDir string
}

func NewService(fsys afero.Fs, strg ArtifactStorage, rep *report.Reporter, outputDir string) *Service {
	return &Service{
		fs:        fsys,
		storage:   strg,
		reporter:  rep,
		outputDir: outputDir,
	}
}

// Run scans inputRoot recursively for files ending in ext and extracts each one.
// Only a missing/invalid root or an unusable output directory is returned as error.
func (s *Service) Run(ctx context.Context, inputRoot, ext string) (report.Summary, error) {
	logger := logctx.LoggerFromContext(ctx)
	var sum report.Summary

	info, err := s.fs.Stat(inputRoot)
	if err != nil {
		return sum, fmt.Errorf("%w: %s", model.ErrPathNotFound, inputRoot)
	}
	if !info.IsDir() {
		return sum, fmt.Errorf("%w: %s", model.ErrNotDirectory, inputRoot)
	}

	if err := s.storage.EnsureDir(ctx, s.outputDir); err != nil {
		return sum, err
	}

	files, err := traversal.Walk(ctx, s.fs, inputRoot, traversal.Options{
		Recursive: true,
		Match:     traversal.ExtensionIs(ext),
	})
	if err != nil {
		return sum, err
	}
	logger.Info().Int("candidates", len(files)).Str("root", inputRoot).Msg("Scanning for embedded metadata")

	for _, f := range files {
		if ctx.Err() != nil {
			logger.Warn().Msg("Interrupted")
			break
		}
		sum.Add(s.Extract(ctx, f))
	}

	s.reporter.Totals(sum, "files")
	return sum, nil
}

// Extract writes every recognised metadata document of one image. OK is set
// when at least one document was written; Skipped when the image carries none.
func (s *Service) Extract(ctx context.Context, path string) model.FileResult {
	ctx = logctx.WithFile(ctx, path)
	logger := logctx.LoggerFromContext(ctx)
	res := model.FileResult{Path: path}

	h, err := imageproc.Open(s.fs, path)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to decode image")
		s.reporter.Failed(path, err)
		res.Err = err
		return res
	}

	base := model.BaseName(path)
	found := false
	var errs []error

	// ключи обрабатываются независимо: битый workflow не мешает сохранить prompt
	for _, key := range model.KnownKeys {
		raw, ok := h.Info.Lookup(key)
		if !ok {
			continue
		}
		found = true

		out, err := s.extractKey(ctx, base, key, raw)
		if err != nil {
			logger.Error().Err(err).Str("key", string(key)).Msg("Failed to extract metadata entry")
			s.reporter.Failed(path, err)
			errs = append(errs, err)
			continue
		}
		res.Outputs = append(res.Outputs, out)
	}

	if !found {
		logger.Debug().Msg("No ComfyUI metadata")
		res.Skipped = true
		return res
	}

	res.OK = len(res.Outputs) > 0
	res.Err = errors.Join(errs...)
	return res
}

func (s *Service) extractKey(ctx context.Context, base string, key model.Key, raw string) (string, error) {
	doc := bytes.TrimSpace([]byte(raw))
	if !json.Valid(doc) {
		return "", fmt.Errorf("%w: %s", model.ErrMalformedMetadata, key)
	}

	var (
		wf      workflowSummary
		entries int
		err     error
	)
	switch key {
	case model.KeyWorkflow:
		wf, err = summarizeWorkflow(doc)
	case model.KeyPrompt:
		entries, err = summarizePrompt(doc)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", model.ErrMalformedMetadata, key, err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return "", fmt.Errorf("%w: %s: %v", model.ErrMalformedMetadata, key, err)
	}

	out := filepath.Join(s.outputDir, base+"_"+string(key)+".json")
	if err := s.storage.Put(ctx, out, &buf); err != nil {
		return "", err
	}

	switch key {
	case model.KeyWorkflow:
		s.reporter.Workflow(base, wf.Nodes, wf.Links, wf.Sample)
	case model.KeyPrompt:
		s.reporter.Prompt(base, entries)
	}
	return out, nil
}
