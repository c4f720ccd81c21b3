package router

import (
	"net/http"

	"github.com/avito-tech/gravure/internal/http-server/handler/image"
	"github.com/avito-tech/gravure/internal/http-server/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/zlog"
)

type Handler struct {
	ImageHandler *image.ImageHandler
	// Metrics is served on /metrics when set.
	Metrics prometheus.Gatherer
	Logger  *zlog.Zerolog
}

func SetupRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(h.Logger))

	if h.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Metrics, promhttp.HandlerOpts{}))
	}

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Logging(h.Logger))

		r.Post("/upload/{preset:[a-z0-9_]+}/{id:[0-9]+}", h.ImageHandler.Upload)
		r.Get("/images/{id:[0-9]+}/jobs", h.ImageHandler.Jobs)
		r.Get("/jobs/{id}", h.ImageHandler.Job)
	})

	return r
}
