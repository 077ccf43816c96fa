// Package extract pulls plain text out of uploaded documents. Parsing
// correctness is delegated to the underlying libraries; this layer
// only routes by extension and normalizes the result to a string.
package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// FromFile reads a document and returns its plain text. Supported:
// .txt and .md (read as-is), .pdf (text layer extraction).
func FromFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", eris.Wrapf(err, "extract: read %s", path)
		}
		return string(data), nil
	case ".pdf":
		return fromPDF(path)
	default:
		return "", eris.Errorf("extract: unsupported file type %q", filepath.Ext(path))
	}
}

func fromPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "extract: open pdf %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader, err := r.GetPlainText()
	if err != nil {
		return "", eris.Wrapf(err, "extract: pdf text %s", path)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", eris.Wrapf(err, "extract: read pdf text %s", path)
	}
	if buf.Len() == 0 {
		return "", eris.Errorf("extract: pdf %s has no extractable text", path)
	}
	return buf.String(), nil
}
