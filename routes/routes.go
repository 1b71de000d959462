package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/app"
	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/utils"
)

const (
	requestTimeout = 60 * time.Second
	apiRateLimit   = 300
	rateWindow     = time.Minute
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(secureHeaders(cfg.IsProduction(), deps.Logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.Health.HandleHealth)
	r.Get("/readyz", deps.Health.HandleReadiness)

	authMW := deps.AuthMiddleware
	scope := deps.ScopeMiddleware.RequireDealership

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimiter(cfg.Auth.LoginRateLimit, httprate.KeyByIP)).Post("/login", deps.Auth.HandleLogin)
			r.Post("/logout", deps.Auth.HandleLogout)
			r.Get("/session", deps.Auth.HandleSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW.RequireAuth)
			r.Use(rateLimiter(apiRateLimit, userOrIPKey))

			r.Get("/me", deps.Me.HandleMe)
			r.With(authMW.RequireRole(auth.RoleViewer)).Get("/dashboard", deps.DashboardAPI.HandleSummary)

			r.Route("/vehicles", func(r chi.Router) {
				r.With(authMW.RequireRole(auth.RoleViewer)).Get("/", deps.Vehicles.HandleList)
				r.With(authMW.RequireRole(auth.RoleManager)).Post("/", deps.Vehicles.HandleCreate)

				r.Route("/{id}", func(r chi.Router) {
					r.With(authMW.RequireRole(auth.RoleViewer)).Get("/", deps.Vehicles.HandleGet)
					r.With(authMW.RequireRole(auth.RoleViewer)).Get("/photos", deps.PhotosAPI.HandleList)

					r.Group(func(r chi.Router) {
						r.Use(authMW.RequireRole(auth.RoleManager))
						r.Put("/", deps.Vehicles.HandleUpdate)
						r.Delete("/", deps.Vehicles.HandleDelete)
						r.Post("/photos", deps.PhotosAPI.HandleUpload)
						r.Delete("/photos/{photoID}", deps.PhotosAPI.HandleDelete)
						r.Put("/photos/{photoID}/primary", deps.PhotosAPI.HandleSetPrimary)
					})
				})
			})

			r.With(authMW.RequireRole(auth.RoleManager)).Get("/vin/{vin}", deps.VINAPI.HandleDecode)

			r.Route("/dealerships/{"+middleware.DealershipParam+"}", func(r chi.Router) {
				r.Use(scope)
				r.With(authMW.RequireRole(auth.RoleViewer)).Get("/", deps.Dealerships.HandleGet)
				r.With(authMW.RequireRole(auth.RoleAdmin)).Put("/", deps.Dealerships.HandleUpdate)
			})

			r.Group(func(r chi.Router) {
				r.Use(authMW.RequireRole(auth.RoleAdmin))
				r.Get("/users", deps.Users.HandleList)
				r.Put("/users/{id}/role", deps.Users.HandleUpdateRole)
				r.Get("/audit", deps.AuditLog.HandleList)
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

func secureHeaders(production bool, logger *zap.Logger) func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				// Process has already written the redirect.
				logger.Debug("secure headers blocked request", zap.Error(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimiter(limit int, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(limit, rateWindow,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = utils.WriteTooManyRequests(w, "too many requests, try again shortly", nil)
		}),
	)
}

// userOrIPKey buckets signed-in callers by user and everyone else by address.
func userOrIPKey(r *http.Request) (string, error) {
	if id := middleware.GetUserIDFromContext(r.Context()); id != uuid.Nil {
		return "user:" + id.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
