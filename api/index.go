package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"spendhub-backend/pkg/config"
	"spendhub-backend/pkg/database"
	"spendhub-backend/pkg/handlers"
	customMiddleware "spendhub-backend/pkg/middleware"
	"spendhub-backend/pkg/utils"
)

// Handler is the serverless entry point. It implements the monolithic
// router pattern: every API endpoint lives in one chi router so the whole
// backend deploys as a single function.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.GetCached()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	db, err := database.GetDatabase(database.DatabaseConfig{
		UseMemoryDB: cfg.UseMemoryDB,
		PostgresDSN: cfg.PostgresDSN,
		Debug:       cfg.Debug,
	})
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Database error: "+err.Error())
		return
	}

	NewRouter(cfg, db).ServeHTTP(w, r)
}

// NewRouter builds the chi router with all middleware and routes
func NewRouter(cfg *config.Config, db database.DatabaseInterface) *chi.Mux {
	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db)
	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))
	router.Use(customMiddleware.CORS(cfg))
	router.Use(customMiddleware.MaxBodySize(1 << 20))
	router.Use(middleware.Timeout(25 * time.Second))
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	authHandler := handlers.NewAuthHandler(cfg, db)
	orgsHandler := handlers.NewOrgsHandler(cfg, db)
	categoriesHandler := handlers.NewCategoriesHandler(cfg, db)
	policiesHandler := handlers.NewPoliciesHandler(cfg, db)

	router.Get("/", authHandler.HealthCheck)

	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, database.GetConnectionStats())
		})
	}

	router.Route("/api", func(r chi.Router) {
		// Public routes
		r.Route("/auth", func(r chi.Router) {
			r.Use(customMiddleware.ContentTypeJSON)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))

			r.Route("/orgs", func(r chi.Router) {
				r.Get("/", orgsHandler.ListMyOrganizations)
				r.Post("/", orgsHandler.CreateOrganization)

				r.Route("/{orgID}", func(r chi.Router) {
					r.Get("/members", orgsHandler.ListMembers)
					r.Post("/invite", orgsHandler.InviteMember)
					r.Get("/invitations", orgsHandler.ListPendingInvitations)

					r.Get("/categories", categoriesHandler.ListCategories)
					r.Post("/categories", categoriesHandler.CreateCategory)

					r.Get("/policies", policiesHandler.ListPolicies)
					r.Get("/policies/resolve", policiesHandler.ResolvePolicy)
					r.Post("/policies", policiesHandler.CreatePolicy)
				})
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Post("/accept", orgsHandler.AcceptInvitation)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Put("/{id}", categoriesHandler.UpdateCategory)
				r.Delete("/{id}", categoriesHandler.DeleteCategory)
			})

			r.Route("/policies", func(r chi.Router) {
				r.Put("/{id}", policiesHandler.UpdatePolicy)
				r.Delete("/{id}", policiesHandler.DeletePolicy)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
