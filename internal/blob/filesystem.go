package blob

import (
	"popgraph/internal/infra/blob/fs"
)

// NewFilesystem constructs a filesystem-backed Store rooted at root. baseURL
// prefixes keys in URL results; empty yields file:// URLs.
func NewFilesystem(root, baseURL string) (Store, error) {
	return fs.New(root, baseURL)
}
