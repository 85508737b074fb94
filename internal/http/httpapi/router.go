package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/SkelleTu/UltraPix/internal/http/handlers"
	"github.com/SkelleTu/UltraPix/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSAllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Get("/ws/progress", app.ProgressSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/templates", app.TemplatesList)
		r.Get("/templates/{id}", app.TemplateGet)
		r.Get("/effects", app.EffectsList)
		r.Get("/effects/{id}", app.EffectGet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.Config.JWTSecret, middleware.ClaimChecks(app.Config.JWTIssuer, app.Config.JWTAudience)...))

			r.With(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute, middleware.UserOrIP)).
				Post("/videos/generate", app.VideosGenerate)
			r.Get("/videos", app.VideosList)
			r.Get("/videos/{id}", app.VideoGet)
			r.Patch("/videos/{id}", app.VideoUpdate)
			r.Delete("/videos/{id}", app.VideoDelete)
			r.Post("/enhance-prompt", app.EnhancePrompt)
		})
	})

	return r
}
