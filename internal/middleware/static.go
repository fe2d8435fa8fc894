package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" rx="16" fill="#1a1a2e"/><rect x="55" y="55" width="90" height="90" rx="12" fill="#e94560"/><circle cx="80" cy="80" r="8" fill="#fff"/><circle cx="120" cy="80" r="8" fill="#fff"/><circle cx="80" cy="120" r="8" fill="#fff"/><circle cx="120" cy="120" r="8" fill="#fff"/><circle cx="100" cy="100" r="8" fill="#fff"/><text x="100" y="180" text-anchor="middle" font-family="Arial" font-size="14" fill="#aaa">GAME</text></svg>`

// StaticFileServer serves game artwork from dir, falling back to a
// placeholder tile when a game has no uploaded image yet.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
