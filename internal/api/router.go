package api

import (
	"net/http"

	"github.com/TonyTwoStep/mini-metro-display/internal/api/handlers"
)

// NewRouter creates and configures the HTTP router with all routes and middleware
func NewRouter(engine handlers.SnapshotProvider, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	rootHandler := handlers.NewRootHandler()
	healthHandler := handlers.NewHealthHandler(engine)
	boardHandler := handlers.NewBoardHandler(engine)

	mux.HandleFunc("GET /{$}", rootHandler.Index)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /api/board", boardHandler.GetBoard)

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	mux.HandleFunc("/", rootHandler.NotFound)

	return Chain(mux,
		Recovery,
		Logging,
		CORS,
	)
}
