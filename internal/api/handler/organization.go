package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/affconsole/internal/api/middleware"
	"github.com/daap14/affconsole/internal/api/response"
	"github.com/daap14/affconsole/internal/api/validation"
	"github.com/daap14/affconsole/internal/organization"
	"github.com/daap14/affconsole/internal/profile"
)

type createOrganizationRequest struct {
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Type      string         `json:"type"`
	ExtraInfo map[string]any `json:"extraInfo"`
}

type organizationResponse struct {
	OrganizationID int64          `json:"organizationId"`
	Name           string         `json:"name"`
	Status         string         `json:"status"`
	Type           string         `json:"type"`
	ExtraInfo      map[string]any `json:"extraInfo,omitempty"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
}

func toOrganizationResponse(o *organization.Organization, withExtra bool) organizationResponse {
	resp := organizationResponse{
		OrganizationID: o.ID,
		Name:           o.Name,
		Status:         o.Status,
		Type:           o.Type,
		CreatedAt:      o.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:      o.UpdatedAt.UTC().Format(timeFormat),
	}
	if withExtra {
		resp.ExtraInfo = o.ExtraInfo
		if resp.ExtraInfo == nil {
			resp.ExtraInfo = map[string]any{}
		}
	}
	return resp
}

// OrganizationAccess decides who may read an organization's extraInfo.
type OrganizationAccess interface {
	CanViewOrganizationExtra(ctx context.Context, caller profile.Caller, orgID int64) (bool, error)
}

// OrganizationHandler handles organization endpoints.
type OrganizationHandler struct {
	repo   organization.Repository
	access OrganizationAccess
}

// NewOrganizationHandler creates a new OrganizationHandler. With a nil
// access, withExtra reads are refused for everyone.
func NewOrganizationHandler(repo organization.Repository, access OrganizationAccess) *OrganizationHandler {
	return &OrganizationHandler{repo: repo, access: access}
}

// GetByID handles GET /organizations/{id}?withExtra=bool.
func (h *OrganizationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidID, "id must be a positive integer", requestID)
		return
	}

	withExtra := false
	if raw := r.URL.Query().Get("withExtra"); raw != "" {
		withExtra, err = strconv.ParseBool(raw)
		if err != nil {
			response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed",
				[]validation.FieldError{{Field: "withExtra", Message: "withExtra must be true or false"}}, requestID)
			return
		}
	}
	if withExtra {
		allowed, err := h.canViewExtra(r.Context(), id)
		if err != nil {
			slog.Error("failed to check organization access", "error", err, "id", id)
			response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Authorization failed", requestID)
			return
		}
		if !allowed {
			response.Err(w, http.StatusForbidden, response.CodeForbidden, "Only members may read extraInfo", requestID)
			return
		}
	}

	o, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, organization.ErrOrganizationNotFound) {
			response.Err(w, http.StatusNotFound, response.CodeNotFound, "Organization not found", requestID)
			return
		}
		slog.Error("failed to get organization", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Failed to get organization", requestID)
		return
	}

	response.Success(w, http.StatusOK, toOrganizationResponse(o, withExtra), requestID)
}

func (h *OrganizationHandler) canViewExtra(ctx context.Context, orgID int64) (bool, error) {
	caller := middleware.GetCaller(ctx)
	if caller == nil || h.access == nil {
		return false, nil
	}
	return h.access.CanViewOrganizationExtra(ctx, *caller, orgID)
}

// Create handles POST /organizations.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req createOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidJSON, "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateOrganizationRequest(validation.CreateOrganizationRequest{
		Name:   req.Name,
		Status: req.Status,
		Type:   req.Type,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed", fieldErrors, requestID)
		return
	}

	o := &organization.Organization{
		Name:      req.Name,
		Status:    req.Status,
		Type:      req.Type,
		ExtraInfo: req.ExtraInfo,
	}
	if err := h.repo.Create(r.Context(), o); err != nil {
		if errors.Is(err, organization.ErrDuplicateOrganizationName) {
			response.Err(w, http.StatusConflict, response.CodeConflict, fmt.Sprintf("An organization named %q already exists", req.Name), requestID)
			return
		}
		slog.Error("failed to create organization", "error", err)
		response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Failed to create organization", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toOrganizationResponse(o, true), requestID)
}

// List handles GET /organizations.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	orgs, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("failed to list organizations", "error", err)
		response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Failed to list organizations", requestID)
		return
	}

	items := make([]organizationResponse, 0, len(orgs))
	for i := range orgs {
		items = append(items, toOrganizationResponse(&orgs[i], false))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}
