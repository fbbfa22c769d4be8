package api

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/affconsole/internal/api/handler"
	"github.com/daap14/affconsole/internal/api/middleware"
	"github.com/daap14/affconsole/internal/organization"
	"github.com/daap14/affconsole/internal/permission"
	"github.com/daap14/affconsole/internal/profile"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger      handler.DBPinger
	Version       string
	OpenAPISpec   []byte
	JWTSecret     []byte
	Profiles      *profile.Service
	Organizations organization.Repository
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		r.Get("/openapi.json", handler.NewOpenAPIHandler(deps.OpenAPISpec).ServeHTTP)
	}

	if deps.Profiles == nil || deps.Organizations == nil {
		return r
	}

	profileHandler := handler.NewProfileHandler(deps.Profiles)
	orgHandler := handler.NewOrganizationHandler(deps.Organizations, deps.Profiles)
	manageOrgs := middleware.RequirePermission(deps.Profiles, permission.ManageOrganizations)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.JWTSecret))

		r.Get("/users/me", profileHandler.Me)

		r.Route("/profiles", func(r chi.Router) {
			r.Post("/", profileHandler.Create)
			r.Put("/{id}", profileHandler.Update)
		})

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/{id}", orgHandler.GetByID)
			r.With(manageOrgs).Post("/", orgHandler.Create)
			r.With(manageOrgs).Get("/", orgHandler.List)
		})
	})

	return r
}
