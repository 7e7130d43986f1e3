// Package web serves the embedded live preview page.
package web

import (
	_ "embed"
	"net/http"
)

//go:embed preview.html
var previewPage []byte

// ServePreview serves the preview page
func ServePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(previewPage)
}
