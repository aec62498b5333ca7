package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RenatoUtsch/redes-tp3/logger"
)

// NewStatusHandler routes the read-only HTTP status surface of a servent.
func NewStatusHandler(handler AdminHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "node_id": handler.NodeID()})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, handler.Stats())
	})

	r.Get("/keys", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, handler.Keys())
	})

	r.Get("/lookup/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		value, ok := handler.Lookup(key)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "key not found", "key": key})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HTTP serves the status surface.
type HTTP struct {
	srv *http.Server
	lis net.Listener
}

func NewHTTP(addr string, handler AdminHandler) (*HTTP, error) {
	if addr == "" {
		return nil, fmt.Errorf("invalid address: %s", addr)
	}
	return &HTTP{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewStatusHandler(handler),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Start binds synchronously and serves in the background.
func (h *HTTP) Start() error {
	lis, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	h.lis = lis
	go func() {
		if err := h.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("status server on %s stopped: %v", lis.Addr(), err)
		}
	}()
	return nil
}

func (h *HTTP) Addr() string {
	if h.lis == nil {
		return h.srv.Addr
	}
	return h.lis.Addr().String()
}

func (h *HTTP) Stop(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
