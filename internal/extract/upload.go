package extract

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"popgraph/pkg/domain"
)

// SupportedExtensions is the allow-list of upload extensions, lower case.
var SupportedExtensions = map[string]bool{
	".xlsx": true,
}

// ValidateUpload rejects uploads that cannot be a spreadsheet before any
// parsing happens. The returned error matches domain.ErrInvalidUpload.
func ValidateUpload(filename string, content []byte) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: no file selected", domain.ErrInvalidUpload)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !SupportedExtensions[ext] {
		return fmt.Errorf("%w: %q is not an .xlsx file", domain.ErrInvalidUpload, filepath.Base(filename))
	}
	if len(content) == 0 {
		return fmt.Errorf("%w: %q is empty", domain.ErrInvalidUpload, filepath.Base(filename))
	}
	// xlsx is an OOXML zip container.
	if mime := http.DetectContentType(content); mime != "application/zip" {
		return fmt.Errorf("%w: %q content is %s, not a spreadsheet", domain.ErrInvalidUpload, filepath.Base(filename), mime)
	}
	return nil
}
