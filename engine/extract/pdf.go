package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/askdoc/askdoc/engine/domain"
)

// PDF extracts per-page plain text from PDF bytes.
type PDF struct{}

// NewPDF creates a PDF extractor.
func NewPDF() *PDF {
	return &PDF{}
}

// Extract reads every page of the PDF. Pages that yield no text are skipped;
// a document with no extractable text at all is an ErrUnreadableSource.
func (e *PDF) Extract(ctx context.Context, name string, data []byte) (doc Document, err error) {
	// The pdf library panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			err = domain.E(domain.ErrUnreadableSource, "extract: pdf "+name, fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Document{}, domain.E(domain.ErrUnreadableSource, "extract: pdf "+name, err)
	}

	doc = Document{SourceName: name, Kind: domain.SourcePDF}
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		doc.Pages = append(doc.Pages, Page{Number: i, Text: text})
	}

	if len(doc.Pages) == 0 {
		return Document{}, domain.E(domain.ErrUnreadableSource, "extract: pdf "+name, fmt.Errorf("no text extracted"))
	}
	return doc, nil
}
