package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/shibacoder/shibacoder-backend/internal/hub"
	"github.com/shibacoder/shibacoder-backend/internal/ws"
)

// SetupRoutes builds the router with the hub injected. CORS is wide open,
// matching the deploy-anywhere posture of the frontend.
func SetupRoutes(h *hub.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/", Root)
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log))

	return cors.AllowAll().Handler(r)
}
