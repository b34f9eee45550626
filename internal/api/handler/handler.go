package handler

import (
	"anonchat/backend/internal/engine"
	"anonchat/backend/internal/relay"
	"anonchat/backend/internal/storage"
)

// Handler carries the service dependencies for the HTTP surface.
type Handler struct {
	Engine    *engine.Engine
	Relay     *relay.Dispatcher
	Store     storage.StateStore
	JWTSecret []byte
}

func NewHandler(eng *engine.Engine, dispatcher *relay.Dispatcher, store storage.StateStore, jwtSecret string) *Handler {
	return &Handler{
		Engine:    eng,
		Relay:     dispatcher,
		Store:     store,
		JWTSecret: []byte(jwtSecret),
	}
}
