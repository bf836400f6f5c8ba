// Package fsstorage provides structure to write artifacts to a filesystem
package fsstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/UnendingLoop/ComfyMeta/internal/model"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

type Storage struct {
	fs afero.Fs
}

func New(fsys afero.Fs) *Storage {
	return &Storage{fs: fsys}
}

// EnsureDir creates dir with all parents; no-op when it exists.
func (s *Storage) EnsureDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%w: mkdir %q: %v", model.ErrWrite, dir, err)
	}
	return nil
}

// Put writes r to path, replacing any existing file. Data goes to a temporary
// sibling first and is renamed over the target, so a failed write never
// leaves a truncated file behind (matters when overwriting the source image).
// An overwritten file keeps its permission bits.
func (s *Storage) Put(ctx context.Context, path string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}
	if err := s.EnsureDir(ctx, filepath.Dir(path)); err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := s.write(tmp, r); err != nil {
		s.remove(tmp)
		return fmt.Errorf("%w: %q: %v", model.ErrWrite, path, err)
	}

	if fi, err := s.fs.Stat(path); err == nil {
		if err := s.fs.Chmod(tmp, fi.Mode().Perm()); err != nil {
			s.remove(tmp)
			return fmt.Errorf("%w: chmod %q: %v", model.ErrWrite, tmp, err)
		}
	}

	if err := s.fs.Rename(tmp, path); err != nil {
		s.remove(tmp)
		return fmt.Errorf("%w: rename into %q: %v", model.ErrWrite, path, err)
	}
	return nil
}

func (s *Storage) write(path string, r io.Reader) error {
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *Storage) remove(path string) {
	_ = s.fs.Remove(path)
}
