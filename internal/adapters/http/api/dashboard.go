// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/board.html
var apiStaticFS embed.FS

// boardFS exposes a sub-filesystem rooted at static/.
var boardFS fs.FS = func() fs.FS {
	sub, err := fs.Sub(apiStaticFS, "static")
	if err != nil {
		return apiStaticFS
	}
	return sub
}()

// boardHandler serves a minimal scoreboard that registers as a display.
type boardHandler struct{}

func newBoardHandler() *boardHandler {
	return &boardHandler{}
}

// HandleBoard handles GET /board. The page reads ?license= and connects to
// the websocket endpoint on the same host.
func (h *boardHandler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, boardFS, "board.html")
}
