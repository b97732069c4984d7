// Package fileid provides a deterministic, URL-safe image ID from a file path.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "img-"

// ImageID returns a stable ID for the given absolute path.
// Same path always yields the same ID. Used to reference embedded images in URLs
// without exposing the path itself.
func ImageID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:16])
}
