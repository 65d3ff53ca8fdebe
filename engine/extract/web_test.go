package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askdoc/askdoc/engine/domain"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebExtract_StripsMarkup(t *testing.T) {
	srv := serve(t, http.StatusOK, `<!doctype html>
<html>
<head><title>ignored</title><style>body { color: red }</style></head>
<body>
<script>console.log("ignored")</script>
<h1>Heading</h1>
<p>First paragraph with   extra   spaces.</p>
<p>Second paragraph.</p>
</body>
</html>`)

	doc, err := NewWeb().Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Kind != domain.SourceURL || doc.SourceName != srv.URL {
		t.Errorf("unexpected document identity: %+v", doc)
	}
	if len(doc.Pages) != 1 || doc.Pages[0].Number != 0 {
		t.Fatalf("expected a single unpaginated page, got %+v", doc.Pages)
	}

	text := doc.Pages[0].Text
	for _, want := range []string{"Heading", "First paragraph with extra spaces.", "Second paragraph."} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	for _, banned := range []string{"console.log", "color: red", "ignored"} {
		if strings.Contains(text, banned) {
			t.Errorf("text leaked %q:\n%s", banned, text)
		}
	}
}

func TestWebExtract_BlockElementsSeparateParagraphs(t *testing.T) {
	srv := serve(t, http.StatusOK, `<body><p>one</p><p>two</p></body>`)

	doc, err := NewWeb().Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := doc.Pages[0].Text; got != "one\n\ntwo" {
		t.Errorf("expected paragraph break, got %q", got)
	}
}

func TestWebExtract_HTTPErrorStatus(t *testing.T) {
	srv := serve(t, http.StatusNotFound, "not found")

	_, err := NewWeb().Extract(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrUnreadableSource) {
		t.Fatalf("expected ErrUnreadableSource, got %v", err)
	}
}

func TestWebExtract_EmptyPage(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><head><script>only()</script></head><body></body></html>`)

	_, err := NewWeb().Extract(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrUnreadableSource) {
		t.Fatalf("expected ErrUnreadableSource for empty page, got %v", err)
	}
}

func TestWebExtract_UnreachableHost(t *testing.T) {
	srv := serve(t, http.StatusOK, "x")
	url := srv.URL
	srv.Close()

	_, err := NewWeb().Extract(context.Background(), url)
	if !errors.Is(err, domain.ErrUnreadableSource) {
		t.Fatalf("expected ErrUnreadableSource, got %v", err)
	}
}

func TestCollapseSpace(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  a   b\t c \n", "a b c"},
		{"", ""},
		{"   ", ""},
		{"one", "one"},
	}
	for _, tc := range cases {
		if got := collapseSpace(tc.in); got != tc.want {
			t.Errorf("collapseSpace(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVisibleText_NestedSkips(t *testing.T) {
	in := strings.NewReader(`<div>visible<div><script>hidden()</script></div></div>`)
	got, err := visibleText(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "visible") || strings.Contains(got, "hidden") {
		t.Errorf("unexpected text: %q", got)
	}
}
