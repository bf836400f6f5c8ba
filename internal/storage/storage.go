// Package storage provides construction of the artifact storage used by both tools
package storage

import (
	"github.com/UnendingLoop/ComfyMeta/internal/storage/fsstorage"
	"github.com/spf13/afero"
)

// NewArtifactStorage returns a storage writing through fsys; nil means the real OS filesystem.
func NewArtifactStorage(fsys afero.Fs) *fsstorage.Storage {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return fsstorage.New(fsys)
}
