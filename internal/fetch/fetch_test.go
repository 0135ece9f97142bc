package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Example Page</title><style>.x{color:red}</style></head>
<body>
<nav>Home | About</nav>
<script>console.log("noise")</script>
<h1>Heading</h1>
<p>First paragraph of content.</p>
<p>Second paragraph.</p>
<footer>Copyright</footer>
</body>
</html>`

func TestExtractHTML(t *testing.T) {
	title, text := ExtractHTML(samplePage)

	if title != "Example Page" {
		t.Errorf("title = %q, want Example Page", title)
	}
	for _, want := range []string{"Heading", "First paragraph of content.", "Second paragraph."} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	for _, unwanted := range []string{"console.log", "color:red", "Home | About", "Copyright"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("text contains boilerplate %q:\n%s", unwanted, text)
		}
	}
}

func TestFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	page, err := New().Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if page.Title != "Example Page" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", page.StatusCode)
	}
	if !strings.Contains(page.Content, "First paragraph") {
		t.Errorf("Content missing body text: %q", page.Content)
	}
}

func TestFetchPlainTextTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	page, err := New().Fetch(context.Background(), srv.URL, 10)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(page.Content) != 10 || !page.Truncated {
		t.Errorf("Content len = %d, Truncated = %v; want 10, true", len(page.Content), page.Truncated)
	}
}

func TestFetchEmptyURL(t *testing.T) {
	if _, err := New().Fetch(context.Background(), "", 0); err == nil {
		t.Error("Fetch(\"\") should fail")
	}
}
