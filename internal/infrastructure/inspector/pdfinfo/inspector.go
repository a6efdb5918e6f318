package pdfinfo

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Inspector reads page counts from staged PDF files. Other mime types report
// zero pages.
type Inspector struct{}

func New() *Inspector {
	return &Inspector{}
}

func (i *Inspector) PageCount(_ context.Context, path, mimeType string) (pages int, err error) {
	if !strings.EqualFold(strings.TrimSpace(mimeType), "application/pdf") {
		return 0, nil
	}

	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}
