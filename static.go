package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// defaultPages maps the fixed static routes to files under the static directory.
var defaultPages = map[string]string{
	"/":      "index.html",
	"/about": "about.html",
}

// StaticResponder serves a fixed set of HTML pages from a directory.
type StaticResponder struct {
	dir    string
	pages  map[string]string
	logger *log.Logger
}

// NewStaticResponder creates a StaticResponder for the default pages in dir.
func NewStaticResponder(dir string, logger *log.Logger) *StaticResponder {
	return &StaticResponder{dir: dir, pages: defaultPages, logger: logger}
}

// Has reports whether path is one of the static pages.
func (s *StaticResponder) Has(path string) bool {
	_, ok := s.pages[path]
	return ok
}

func (s *StaticResponder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page, ok := s.pages[r.URL.Path]
	if !ok {
		writeError(w, r, http.StatusNotFound, "endpoint not found")
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, err := os.ReadFile(filepath.Join(s.dir, page))
	if err != nil {
		s.logger.Printf("error reading page %s: %v", page, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
