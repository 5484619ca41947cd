// Package extract pulls plain text out of uploaded documents. Layout,
// images and styling are ignored; only the text stream matters for the
// question pipeline.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"classquiz-service/internal/domain"
)

// Text dispatches on the filename extension and returns the extracted
// plain text. An upload with no extractable text yields ErrEmptyDocument.
func Text(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = pdfText(data)
	case ".docx":
		text, err = docxText(data)
	case ".txt":
		text = string(data)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", domain.ErrValidation, filepath.Ext(filename))
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyDocument
	}
	return text, nil
}
