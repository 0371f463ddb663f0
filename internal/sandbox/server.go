// Package sandbox is a local stand-in for the IntentScout backend. It serves the job, signal
// and token endpoints with simulated long-running jobs so the client and CLI can be exercised
// end to end without the hosted service.
package sandbox

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/cors"
)

// TrailingSlashMiddleware redirects requests with trailing slashes to their canonical form
func TrailingSlashMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && strings.HasSuffix(r.URL.Path, "/") {
			newURL := *r.URL
			newURL.Path = strings.TrimSuffix(r.URL.Path, "/")

			// 308 preserves the request method
			http.Redirect(w, r, newURL.String(), http.StatusPermanentRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Server represents the HTTP server
type Server struct {
	addr    string
	humaAPI huma.API
	handler http.Handler
	server  *http.Server
}

// NewServer creates the sandbox HTTP server.
func NewServer(deps Deps) *Server {
	mux := http.NewServeMux()
	api := NewHumaAPI(mux, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Type", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	// Order: TrailingSlash -> CORS -> Mux
	handler := TrailingSlashMiddleware(corsHandler.Handler(mux))

	return &Server{
		addr:    deps.Config.ServerAddress,
		humaAPI: api,
		handler: handler,
		server: &http.Server{
			Addr:              deps.Config.ServerAddress,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// HumaAPI returns the Huma API instance
func (s *Server) HumaAPI() huma.API {
	return s.humaAPI
}

// Handler is the full middleware stack, for serving from tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for incoming HTTP requests
func (s *Server) Start() error {
	log.Printf("Sandbox server starting on %s", s.addr)
	log.Printf("API documentation at http://localhost%s/docs", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
