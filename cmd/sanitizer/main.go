// Package main (in sanitizer-subfolder) removes metadata from a single image or a folder of images
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/UnendingLoop/ComfyMeta/internal/config"
	"github.com/spf13/afero"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	appConfig, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	zlog.InitConsole()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(afero.NewOsFs(), zlog.Logger, config.SanitizeFrom(appConfig))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
