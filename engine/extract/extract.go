// Package extract converts raw ingestion sources (PDF bytes, web pages) into
// plain text. Extractors are the only components that touch source formats;
// everything downstream sees a Document.
package extract

import "github.com/askdoc/askdoc/engine/domain"

// Page is a unit of extracted text. Number is 1-based for paginated sources
// and 0 for sources without page structure.
type Page struct {
	Number int
	Text   string
}

// Document is the extraction output handed to the chunker.
type Document struct {
	SourceName string
	Kind       domain.SourceKind
	Pages      []Page
}

// TotalChars returns the total extracted character count across pages.
func (d Document) TotalChars() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Text)
	}
	return n
}

// Text joins all pages into a single string. Used for summarization input.
func (d Document) Text() string {
	switch len(d.Pages) {
	case 0:
		return ""
	case 1:
		return d.Pages[0].Text
	}
	out := make([]byte, 0, d.TotalChars()+2*len(d.Pages))
	for i, p := range d.Pages {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, p.Text...)
	}
	return string(out)
}
