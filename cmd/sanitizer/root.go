package main

import (
	"context"
	"fmt"
	"io"

	"github.com/UnendingLoop/ComfyMeta/internal/config"
	"github.com/UnendingLoop/ComfyMeta/internal/logctx"
	"github.com/UnendingLoop/ComfyMeta/internal/model"
	"github.com/UnendingLoop/ComfyMeta/internal/report"
	"github.com/UnendingLoop/ComfyMeta/internal/sanitizer"
	"github.com/UnendingLoop/ComfyMeta/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

const usageExamples = `Image Metadata Remover
==================================================
Usage examples:
  sanitizer image.jpg
  sanitizer image.png -o clean_image.png
  sanitizer /path/to/folder
  sanitizer /path/to/folder -o /path/to/clean_folder
  sanitizer folder --no-preserve  # overwrite originals
  sanitizer folder --exclude 'cache/' --exclude '*.tmp.png'

For full help: sanitizer --help

Supported formats: JPG, PNG, TIFF, BMP, WebP
`

func newRootCmd(fsys afero.Fs, logger zerolog.Logger, base config.SanitizeConfig) *cobra.Command {
	cfg := base
	var noPreserve, noRecursive bool

	cmd := &cobra.Command{
		Use:   "sanitizer <input>",
		Short: "Remove metadata from images",
		Long: `Re-encodes images without EXIF, text chunks or any other embedded metadata.
Input may be a single image or a folder; folders are processed recursively by default.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), usageExamples)
				return nil
			}

			cfg.Input = args[0]
			cfg.Preserve = !noPreserve
			cfg.Recursive = !noRecursive
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := zlog.SetLevel(cfg.EffectiveLogLevel()); err != nil {
				return fmt.Errorf("failed to set log level: %w", err)
			}
			lvl, _ := zerolog.ParseLevel(cfg.EffectiveLogLevel())
			ctx := logctx.WithLogger(cmd.Context(), logger.Level(lvl))

			return run(ctx, fsys, cmd.OutOrStdout(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Output, "output", "o", "", "output file or folder")
	flags.BoolVar(&noPreserve, "no-preserve", false, "overwrite original files instead of creating new ones")
	flags.BoolVar(&noRecursive, "no-recursive", false, "don't process subfolders recursively")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "verbose output")
	flags.StringArrayVar(&cfg.Exclude, "exclude", nil, "gitignore-style pattern to skip (repeatable)")

	return cmd
}

// run returns an error only for a bad input path or a failed single file;
// folder runs report failures per file and still succeed.
func run(ctx context.Context, fsys afero.Fs, out io.Writer, cfg config.SanitizeConfig) error {
	info, err := fsys.Stat(cfg.Input)
	if err != nil {
		return fmt.Errorf("%w: '%s'", model.ErrPathNotFound, cfg.Input)
	}

	svc := sanitizer.NewService(fsys, storage.NewArtifactStorage(fsys), report.New(out), cfg.Verbose)

	switch {
	case info.Mode().IsRegular():
		if res := svc.Sanitize(ctx, cfg.Input, cfg.Output, cfg.Preserve); !res.OK {
			return res.Err
		}
		return nil
	case info.IsDir():
		_, err := svc.ProcessFolder(ctx, cfg.Input, cfg.Output, sanitizer.FolderOptions{
			Preserve:  cfg.Preserve,
			Recursive: cfg.Recursive,
			Exclude:   cfg.Exclude,
		})
		return err
	default:
		return fmt.Errorf("'%s' is not a valid file or directory", cfg.Input)
	}
}
