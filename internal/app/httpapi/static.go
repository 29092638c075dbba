package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// spaHandler serves the single-page client. Paths that do not match a file on
// disk fall back to index.html so client-side routes survive a reload.
type spaHandler struct {
	dir string
	fs  http.Handler
}

func newSPAHandler(dir string) *spaHandler {
	return &spaHandler{dir: dir, fs: http.FileServer(http.Dir(dir))}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := filepath.Join(h.dir, filepath.Clean("/"+strings.TrimPrefix(r.URL.Path, "/")))

	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
		return
	}

	h.fs.ServeHTTP(w, r)
}
