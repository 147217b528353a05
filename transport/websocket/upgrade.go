package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// Upgrade upgrades an HTTP request to a websocket connection and wraps it
// in a Link. Origin checking is left to the caller's HTTP layer.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ...Option) (*Link, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	return NewLink(conn, opts...)
}
