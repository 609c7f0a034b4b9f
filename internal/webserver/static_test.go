package webserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":          {Data: []byte("<html>app</html>")},
		"styles/app.css":      {Data: []byte("body{}")},
		"docs/index.html":     {Data: []byte("docs")},
		"assets/logo.unknown": {Data: []byte{0x01}},
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// TestStaticServesIndexForRoot checks the root fallback and headers.
func TestStaticServesIndexForRoot(t *testing.T) {
	rec := get(t, staticHandler(testFS()), "/?v=1")
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>app</html>" {
		t.Fatalf("GET / = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Fatalf("content type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("cache control = %q", got)
	}
}

// TestStaticContentTypes checks the extension map and the default.
func TestStaticContentTypes(t *testing.T) {
	h := staticHandler(testFS())
	if got := get(t, h, "/styles/app.css").Header().Get("Content-Type"); got != "text/css; charset=utf-8" {
		t.Fatalf("css content type = %q", got)
	}
	if got := get(t, h, "/assets/logo.unknown").Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Fatalf("default content type = %q", got)
	}
}

// TestStaticDirectoryIndex checks directory fallback to index.html.
func TestStaticDirectoryIndex(t *testing.T) {
	rec := get(t, staticHandler(testFS()), "/docs/")
	if rec.Code != http.StatusOK || rec.Body.String() != "docs" {
		t.Fatalf("GET /docs/ = %d %q", rec.Code, rec.Body.String())
	}
}

// TestStaticNotFound checks the 404 body, including directories without index.
func TestStaticNotFound(t *testing.T) {
	h := staticHandler(testFS())
	for _, target := range []string{"/missing.js", "/styles", "/assets/"} {
		rec := get(t, h, target)
		if rec.Code != http.StatusNotFound || rec.Body.String() != "Not found" {
			t.Fatalf("GET %s = %d %q", target, rec.Code, rec.Body.String())
		}
	}
}

// TestStaticRejectsTraversal checks that dot segments stay inside root.
func TestStaticRejectsTraversal(t *testing.T) {
	h := staticHandler(testFS())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../../etc/passwd"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("traversal = %d", rec.Code)
	}

	req.URL.Path = "/docs/../index.html"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>app</html>" {
		t.Fatalf("cleaned path = %d %q", rec.Code, rec.Body.String())
	}
}

// TestStaticRejectsWrites checks the method guard.
func TestStaticRejectsWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	staticHandler(testFS()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST / = %d", rec.Code)
	}
}
