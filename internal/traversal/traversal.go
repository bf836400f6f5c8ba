// Package traversal finds candidate image files under a root path.
package traversal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/ComfyMeta/internal/logctx"
	"github.com/UnendingLoop/ComfyMeta/internal/model"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// Options control which files Walk yields.
type Options struct {
	Recursive bool
	// Match filters by file name; nil accepts everything.
	Match func(name string) bool
	// Exclude holds gitignore-style patterns relative to the root.
	Exclude []string
}

// ExtensionIs matches a single literal suffix, case-insensitively.
func ExtensionIs(ext string) func(string) bool {
	ext = strings.ToLower(ext)
	return func(name string) bool {
		return strings.HasSuffix(strings.ToLower(name), ext)
	}
}

// ExtensionIn matches when the file extension is in set (keys lower-case, with dot).
func ExtensionIn(set map[string]bool) func(string) bool {
	return func(name string) bool {
		return set[strings.ToLower(filepath.Ext(name))]
	}
}

// Walk returns candidate paths in walk order (lexical within a directory).
// A file root yields itself without filtering. An empty tree is not an error.
// Only an unreadable root fails the walk; other unreadable entries are logged and skipped.
func Walk(ctx context.Context, fsys afero.Fs, root string, opts Options) ([]string, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrPathNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var excluded *ignore.GitIgnore
	if len(opts.Exclude) > 0 {
		excluded = ignore.CompileIgnoreLines(opts.Exclude...)
	}

	files := make([]string, 0)
	err = afero.Walk(fsys, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger := logctx.LoggerFromContext(ctx)
			logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable entry")
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if excluded != nil {
			rel = filepath.ToSlash(rel)
			if fi.IsDir() && (excluded.MatchesPath(rel) || excluded.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			if !fi.IsDir() && excluded.MatchesPath(rel) {
				return nil
			}
		}

		if fi.IsDir() {
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		if opts.Match != nil && !opts.Match(fi.Name()) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// MirrorDir returns the directory under outRoot that mirrors file's directory relative to inRoot.
func MirrorDir(inRoot, outRoot, file string) (string, error) {
	rel, err := filepath.Rel(inRoot, filepath.Dir(file))
	if err != nil {
		return "", err
	}
	return filepath.Join(outRoot, rel), nil
}
