package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yegors/flight-tracker/pkg/logger"
)

// StaticFileHandler serves the browser UI from a directory
type StaticFileHandler struct {
	staticDir string
	logger    *logger.Logger
}

// NewStaticFileHandler creates a new static file handler
func NewStaticFileHandler(staticDir string, log *logger.Logger) *StaticFileHandler {
	return &StaticFileHandler{
		staticDir: staticDir,
		logger:    log.Named("static-handler"),
	}
}

// ServeHTTP serves a file, or index.html for directories
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	fullPath, ok := h.resolve(r.URL.Path)
	if !ok {
		h.logger.Warn("Rejected static path outside web root", logger.String("requested_path", r.URL.Path))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(fullPath)
	if err == nil && info.IsDir() {
		fullPath = filepath.Join(fullPath, "index.html")
		info, err = os.Stat(fullPath)
	}
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("Failed to stat file", logger.Error(err), logger.String("path", fullPath))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	// HTML is always revalidated so UI changes show up on reload; assets may be cached briefly
	if strings.HasSuffix(fullPath, ".html") {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=300")
	}

	http.ServeFile(w, r, fullPath)
}

// resolve maps a URL path into the static directory, refusing anything that escapes it
func (h *StaticFileHandler) resolve(urlPath string) (string, bool) {
	root, err := filepath.Abs(h.staticDir)
	if err != nil {
		return "", false
	}

	rel := strings.TrimPrefix(filepath.Clean("/"+urlPath), string(filepath.Separator))
	full := filepath.Join(root, rel)

	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}
