package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mash-protocol/tagsched/pkg/service"
	"github.com/mash-protocol/tagsched/pkg/version"
)

type statusResponse struct {
	service.Stats
	Version string `json:"version"`
	Tags    int    `json:"tags"`
}

func newMux(srv *service.DataServer, gatherer prometheus.Gatherer, tags int, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := statusResponse{Stats: srv.Stats(), Version: version.Current, Tags: tags}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn("status encode failed", slog.Any("error", err))
		}
	})
	return mux
}
