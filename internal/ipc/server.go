package ipc

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Server wraps an HTTP server with engine-specific routing.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server that binds to the given address.
func NewServer(h *Handler, listenAddr string) *Server {
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: NewRouter(h),
	}

	return &Server{
		httpServer: srv,
	}
}

// NewRouter builds the engine's route table.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/skills/{skill}", h.GetSkill)

		r.Post("/session", h.CreateSession)
		r.Route("/session/{name}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.Unregister)
			r.Post("/advance", h.Advance)
			r.Post("/item/{number}", h.UpdateItem)
			r.Post("/current-item", h.SetCurrentItem)
			r.Put("/documents", h.PutDocument)
			r.Post("/tasks/sync", h.SyncTasks)
			r.Post("/tasks/{taskID}/complete", h.CompleteTask)
			r.Get("/events", h.ListEvents)
			r.Get("/events/stream", h.StreamEvents)
		})
	})

	return r
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for the collaboration UI.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
