package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tbonnaves/chat-relay/internal/handler/messaging"
	"github.com/tbonnaves/chat-relay/internal/middleware"
	"github.com/tbonnaves/chat-relay/internal/service/relay"
)

// NewRouter wires HTTP routes to the relay service.
func NewRouter(relaySvc *relay.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	messagingHandler := messaging.New(relaySvc)
	messagingHandler.RegisterRoutes(r)

	return r
}
