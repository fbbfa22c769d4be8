package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/daap14/affconsole/internal/api/middleware"
	"github.com/daap14/affconsole/internal/api/response"
)

// OpenAPIHandler serves the service's OpenAPI document as JSON.
type OpenAPIHandler struct {
	doc []byte

	once    sync.Once
	payload []byte
	err     error
}

// NewOpenAPIHandler creates a handler for a YAML document. Conversion
// happens once, on the first request.
func NewOpenAPIHandler(doc []byte) *OpenAPIHandler {
	return &OpenAPIHandler{doc: doc}
}

func (h *OpenAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.payload, h.err = yaml.YAMLToJSON(h.doc)
	})

	if h.err != nil {
		slog.Error("invalid OpenAPI document", "error", h.err)
		response.Err(w, http.StatusInternalServerError, response.CodeInternal, "OpenAPI document is unavailable", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.payload); err != nil {
		slog.Debug("client went away while writing OpenAPI document", "error", err)
	}
}
