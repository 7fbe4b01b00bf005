// Package web embeds the single-page client served at the site root.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// Handler serves the embedded client files.
func Handler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// embed guarantees the directory exists; this cannot happen.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
