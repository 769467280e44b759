package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires all routes and middleware.
func NewRouter(h *Handler, cors CORSConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(Logger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(CORS(cors))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", h.ListModels)

		r.Post("/generate/{kind}", h.Generate)
		r.Post("/rewrite-section", h.RewriteSection)

		r.Route("/artifacts", func(r chi.Router) {
			r.Get("/", h.ListArtifacts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetArtifact)
				r.Patch("/", h.UpdateArtifact)
				r.Delete("/", h.DeleteArtifact)
				r.Post("/share", h.ShareArtifact)
				r.Post("/rewrite", h.RewriteArtifact)
				r.Get("/compare/{otherId}", h.CompareArtifacts)

				r.Get("/export", h.ExportArtifact)
				r.Post("/export/notion", h.ExportToNotion)

				r.Get("/versions", h.ListVersions)
				r.Get("/versions/{versionId}", h.GetVersion)
				r.Get("/versions/{versionId}/diff", h.DiffVersion)
				r.Post("/versions/{versionId}/restore", h.RestoreVersion)
			})
		})

		r.Get("/shared/{shareId}", h.GetShared)

		r.Get("/templates", h.ListTemplates)
		r.Post("/templates", h.CreateTemplate)
		r.Delete("/templates/{id}", h.DeleteTemplate)

		r.Post("/analytics/export", h.LogExport)
		r.Get("/analytics/summary", h.AnalyticsSummary)

		r.Get("/notion/pages", h.SearchNotionPages)
	})

	return r
}
