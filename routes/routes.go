package routes

import (
	"net/http"

	"github.com/Dosada05/matchday/handlers"
	"github.com/Dosada05/matchday/middleware"
	"github.com/Dosada05/matchday/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

type Handlers struct {
	Fixture   *handlers.FixtureHandler
	Pool      *handlers.PoolHandler
	StatsJob  *handlers.StatsJobHandler
	Cache     *handlers.CacheHandler
	WebSocket *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	// Metrics отдаёт /metrics; nil - маршрут не регистрируется.
	Metrics http.Handler
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}
	router.Get(swaggerDocPath, serveOpenAPIDoc)
	router.Get("/swagger/*", swaggerUI())

	authenticate := middleware.Authenticate(opts.JWTSecret)
	admins := middleware.Authorize(models.RoleAdmin, models.RoleSuperadmin)

	// WebSocket: токен приходит в query-параметре
	router.With(authenticate).Get("/ws/fixtures/{fixtureID}", h.WebSocket.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/fixtures/{fixtureID}", func(r chi.Router) {
			r.Get("/", h.Fixture.GetHandler)
			r.Get("/pool", h.Pool.GetPoolHandler)
			r.Get("/progress", h.Fixture.ProgressHandler)

			r.Group(func(r chi.Router) {
				r.Use(admins)

				r.Post("/pool", h.Pool.AttachHandler)
				r.Post("/pool/clear", h.Pool.ClearAssignmentsHandler)
				r.Put("/pool/{playerID}", h.Pool.AssignSlotHandler)
				r.Delete("/pool/{playerID}", h.Pool.DetachHandler)

				r.Patch("/lock-pool", h.Fixture.LockPoolHandler)
				r.Post("/balance", h.Fixture.BalanceHandler)
				r.Patch("/confirm-teams", h.Fixture.ConfirmTeamsHandler)
				r.Patch("/unlock-teams", h.Fixture.UnlockTeamsHandler)
				r.Patch("/unlock-pool", h.Fixture.UnlockPoolHandler)
				r.Patch("/complete", h.Fixture.CompleteHandler)
				r.Patch("/undo-completion", h.Fixture.UndoCompletionHandler)
			})
		})

		r.Route("/stats/jobs", func(r chi.Router) {
			r.Use(admins)
			r.Get("/", h.StatsJob.ListHandler)
			r.Post("/", h.StatsJob.CreateHandler)
			r.Get("/{jobID}", h.StatsJob.GetHandler)
			r.Post("/{jobID}/retry", h.StatsJob.RetryHandler)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Use(admins)
			r.Post("/invalidate", h.Cache.InvalidateHandler)
			r.Get("/tags", h.Cache.ListTagsHandler)
			r.Get("/tags/{tag}", h.Cache.GenerationHandler)
		})

		r.With(middleware.Authorize(models.RoleSuperadmin)).
			Post("/admin/stats/recompute-all", h.StatsJob.RecomputeAllHandler)
	})
}
