package models

import (
	"github.com/hyperjump/ruiji/internal/fileid"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// ImageRef identifies an embedded image in API responses.
type ImageRef struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	RelPath string `json:"rel_path"`
}

// NewImageRef describes the image at absolute path found under root.
func NewImageRef(root, path string) ImageRef {
	return ImageRef{
		ID:      fileid.ImageID(path),
		Path:    path,
		RelPath: utils.RelPath(root, path),
	}
}

// NewImageRefs maps paths to refs, preserving order.
func NewImageRefs(root string, paths []string) []ImageRef {
	refs := make([]ImageRef, len(paths))
	for i, p := range paths {
		refs[i] = NewImageRef(root, p)
	}
	return refs
}
