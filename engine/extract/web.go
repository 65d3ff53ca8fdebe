package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/askdoc/askdoc/engine/domain"
)

const (
	webUserAgent = "askdoc/1.0"
	// maxBodyBytes caps page downloads; anything larger is truncated.
	maxBodyBytes = 8 << 20
)

// Web fetches a page and strips its markup down to plain text.
type Web struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewWeb creates a web extractor with a polite request rate.
func NewWeb() *Web {
	return &Web{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

// Extract fetches the URL and returns its visible text as a single page.
func (e *Web) Extract(ctx context.Context, url string) (Document, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return Document{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, domain.E(domain.ErrUnreadableSource, "extract: fetch "+url, err)
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return Document{}, domain.E(domain.ErrUnreadableSource, "extract: fetch "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, domain.E(domain.ErrUnreadableSource, "extract: fetch "+url, fmt.Errorf("status %d", resp.StatusCode))
	}

	text, err := visibleText(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Document{}, domain.E(domain.ErrUnreadableSource, "extract: parse "+url, err)
	}
	if text == "" {
		return Document{}, domain.E(domain.ErrUnreadableSource, "extract: parse "+url, fmt.Errorf("no content extracted"))
	}

	return Document{
		SourceName: url,
		Kind:       domain.SourceURL,
		Pages:      []Page{{Number: 0, Text: text}},
	}, nil
}

// skipElements are HTML subtrees that never contribute visible text.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"head": true, "iframe": true, "svg": true, "template": true,
}

// blockElements end a text block; their boundaries become paragraph breaks.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"li": true, "tr": true, "br": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "blockquote": true,
	"pre": true, "table": true, "ul": true, "ol": true,
}

// visibleText parses HTML and collects text nodes, collapsing whitespace and
// separating block elements with blank lines.
func visibleText(r io.Reader) (string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var blocks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			blocks = append(blocks, s)
		}
		current.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if s := collapseSpace(n.Data); s != "" {
				if current.Len() > 0 {
					current.WriteByte(' ')
				}
				current.WriteString(s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			flush()
		}
	}
	walk(root)
	flush()

	return strings.Join(blocks, "\n\n"), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
