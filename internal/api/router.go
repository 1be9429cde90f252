package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP routing table over the given handlers.
func NewRouter(handler *TaskHandler, datasets *DatasetHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", handler.SubmitTask)
		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", handler.GetTask)
			r.Delete("/", handler.PurgeTask)
			r.Post("/kill", handler.KillTask)
			r.Get("/cancellation", handler.GetCancellation)
			r.Post("/records", handler.ReportRecord)
		})
	})

	r.Get("/topologies/{topologyName}/tasks", handler.ListActiveTasks)

	r.Route("/datasets/{datasetID}/records", func(r chi.Router) {
		r.Post("/", datasets.RegisterHarvest)
		r.Get("/", datasets.ListRecords)
		r.Route("/{localID}", func(r chi.Router) {
			r.Get("/", datasets.GetRecord)
			r.Delete("/", datasets.DeleteRecord)
			r.Post("/harvests", datasets.StampRecord)
		})
	})

	return r
}
