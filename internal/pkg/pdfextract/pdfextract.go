package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrTooLarge = errors.New("pdf exceeds size limit")

// ExtractText reads at most maxBytes of r and returns the plain text of every
// page, pages separated by a blank line. Pages without text are skipped.
func ExtractText(r io.Reader, maxBytes int64) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read pdf failed: %w", err)
	}
	if int64(len(b)) > maxBytes {
		return "", ErrTooLarge
	}
	if len(b) == 0 {
		return "", nil
	}

	doc, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}

	pages := make([]string, 0, doc.NumPage())
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d failed: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
