package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/poipoi-backend/internal/hub"
	"github.com/DoyleJ11/poipoi-backend/internal/store"
	"github.com/DoyleJ11/poipoi-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SetupRoutes builds the router. records may be nil.
func SetupRoutes(h *hub.Hub, records store.ResultStore, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	r := chi.NewRouter()

	// Public routes
	r.Post("/rooms", CreateRoom(h, log))
	r.Get("/rooms/{code}", GetRoom(h))
	r.Get("/records", TopRecords(records, log))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log))
	return r
}
