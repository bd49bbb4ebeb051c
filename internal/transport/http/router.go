package http

import (
	"net/http"

	"assessment-service/internal/metrics"
)

// NewRouter mounts the JSON API, the live channel, health and metrics.
func NewRouter(api *API, ws *WSHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/ws", ws.ServeWS)
	api.Register(mux)
	return mux
}
