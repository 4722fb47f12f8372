package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/hyperborea-net/hyperborea/envelope"
	"github.com/hyperborea-net/hyperborea/internal/logger"
	"github.com/hyperborea-net/hyperborea/internal/metrics"
	"github.com/hyperborea-net/hyperborea/protoerr"
	"github.com/hyperborea-net/hyperborea/server"
)

// Handler binds a *server.Server's eight operations to the fixed URL
// paths Transport's client side expects.
type Handler struct {
	Server *server.Server
}

// NewHandler wraps srv for HTTP serving.
func NewHandler(srv *server.Server) *Handler {
	return &Handler{Server: srv}
}

// Mux returns an http.Handler with every endpoint registered.
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/info", h.wrap(func(ctx context.Context, req *envelope.Request) *envelope.Response {
		return h.Server.Info(ctx, req, true)
	}))
	mux.HandleFunc("/api/v1/clients", h.wrap(h.Server.Clients))
	mux.HandleFunc("/api/v1/servers", h.wrap(h.Server.Servers))
	mux.HandleFunc("/api/v1/connect", h.wrap(h.Server.Connect))
	mux.HandleFunc("/api/v1/lookup", h.wrap(h.Server.Lookup))
	mux.HandleFunc("/api/v1/announce", h.wrap(h.Server.Announce))
	mux.HandleFunc("/api/v1/send", h.wrap(h.Server.Send))
	mux.HandleFunc("/api/v1/poll", h.wrap(h.Server.Poll))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (h *Handler) wrap(fn func(ctx context.Context, req *envelope.Request) *envelope.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeEnvelope(w, envelope.Failure(protoerr.StatusInvalidRequest, "failed to read request body"))
			return
		}
		defer r.Body.Close()

		var req envelope.Request
		if err := json.Unmarshal(body, &req); err != nil {
			writeEnvelope(w, envelope.Failure(protoerr.StatusInvalidRequest, "malformed request envelope"))
			return
		}

		if requestID := r.Header.Get(RequestIDHeader); requestID != "" && h.Server.Log != nil {
			h.Server.Log.Debug("handling HTTP request", logger.String("request_id", requestID), logger.String("path", r.URL.Path))
		}

		resp := fn(r.Context(), &req)
		writeEnvelope(w, resp)
	}
}

func writeEnvelope(w http.ResponseWriter, resp *envelope.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
