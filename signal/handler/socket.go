// Package handler provides an interface for managing socket.
package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"parley/pkg/socket"
	"parley/signal/controller"
)

// Handler upgrades HTTP requests to websocket connections and hands them to
// the controller.
type Handler struct {
	controller *controller.Controller
}

// New creates a new Handler instance.
func New(c *controller.Controller) *Handler {
	return &Handler{
		controller: c,
	}
}

// ServeHTTP handles the HTTP request and upgrades it to websocket connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := socket.New(w, r)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("failed to upgrade websocket")
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close websocket")
		}
	}()
	if err := h.controller.Process(conn); err != nil {
		log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("connection closed")
	}
}
