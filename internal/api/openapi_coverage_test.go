package api_test

import (
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	specpkg "github.com/daap14/affconsole/api"
	"github.com/daap14/affconsole/internal/api"
	"github.com/daap14/affconsole/internal/profile"
)

type openAPIDoc struct {
	Paths map[string]map[string]interface{} `json:"paths"`
}

type route struct {
	method string
	path   string
}

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

func sortRoutes(routes []route) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].path == routes[j].path {
			return routes[i].method < routes[j].method
		}
		return routes[i].path < routes[j].path
	})
}

func TestOpenAPISpec_MatchesRouter(t *testing.T) {
	t.Parallel()

	var doc openAPIDoc
	require.NoError(t, yaml.Unmarshal(specpkg.OpenAPISpec, &doc), "embedded document must parse")

	var documented []route
	for path, ops := range doc.Paths {
		for method := range ops {
			if m := strings.ToUpper(method); httpMethods[m] {
				documented = append(documented, route{method: m, path: path})
			}
		}
	}
	sortRoutes(documented)

	router := api.NewRouter(api.RouterDeps{
		Version:       "test",
		OpenAPISpec:   specpkg.OpenAPISpec,
		JWTSecret:     secret,
		Profiles:      profile.NewService(newMemProfiles(), nil),
		Organizations: &memOrgs{},
	})

	var served []route
	err := chi.Walk(router, func(method, path string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		// Subrouters register "/profiles/" where the document says "/profiles".
		if trimmed := strings.TrimRight(path, "/"); trimmed != "" {
			path = trimmed
		}
		served = append(served, route{method: method, path: path})
		return nil
	})
	require.NoError(t, err)
	sortRoutes(served)

	assert.Equal(t, documented, served)
}
