// Package main (in extractor-subfolder) extracts embedded ComfyUI workflow/prompt documents into json-files
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/UnendingLoop/ComfyMeta/internal/config"
	"github.com/UnendingLoop/ComfyMeta/internal/extractor"
	"github.com/UnendingLoop/ComfyMeta/internal/logctx"
	"github.com/UnendingLoop/ComfyMeta/internal/report"
	"github.com/UnendingLoop/ComfyMeta/internal/storage"
	"github.com/spf13/afero"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}
	cfg, err := config.ExtractFrom(appConfig)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Ctrl+C прерывает обход между файлами, уже записанное остается
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logctx.WithLogger(ctx, zlog.Logger)

	if err := run(ctx, afero.NewOsFs(), os.Stdout, cfg); err != nil {
		zlog.Logger.Error().Err(err).Str("root", cfg.InputRoot).Msg("Extraction failed")
		stop()
		os.Exit(1)
	}
}

// run fails only when the input root or the output directory is unusable;
// per-file failures are reported and counted.
func run(ctx context.Context, fsys afero.Fs, out io.Writer, cfg config.ExtractConfig) error {
	svc := extractor.NewService(fsys, storage.NewArtifactStorage(fsys), report.New(out), cfg.OutputRoot)
	_, err := svc.Run(ctx, cfg.InputRoot, cfg.Extension)
	return err
}
