package server

import (
	"net/http"

	"blockforge/internal/handler"
	"blockforge/internal/middleware"
	"blockforge/internal/relay"
)

func NewMux(
	relayHandler *relay.Handler,
	liveHandler *relay.LiveHandler,
	versionHandler *handler.VersionHandler,
	reviewHandler *handler.ReviewHandler,
	chatHandler *handler.ChatHandler,
) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/v1/generate", relayHandler)
	mux.HandleFunc("/v1/generate/ws", liveHandler.HandleGenerationWS)
	mux.HandleFunc("/v1/versions", versionHandler.HandleList)
	mux.HandleFunc("/v1/versions/diff", versionHandler.HandleDiff)
	mux.HandleFunc("/v1/versions/restore", versionHandler.HandleRestore)
	mux.HandleFunc("/v1/review/commit", reviewHandler.HandleCommit)
	mux.HandleFunc("/v1/chat", chatHandler.HandleHistory)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return middleware.CORS(mux)
}
