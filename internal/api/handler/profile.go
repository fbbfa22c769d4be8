package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/daap14/affconsole/internal/api/middleware"
	"github.com/daap14/affconsole/internal/api/response"
	"github.com/daap14/affconsole/internal/api/validation"
	"github.com/daap14/affconsole/internal/profile"
)

const timeFormat = "2006-01-02T15:04:05Z"

type createProfileRequest struct {
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	OrganizationID *int64 `json:"organizationId"`
	RoleID         *int64 `json:"roleId"`
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

type refResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type profileResponse struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	Email        string       `json:"email"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Role         *refResponse `json:"role"`
	Organization *refResponse `json:"organization"`
	Permissions  []string     `json:"permissions"`
	CreatedAt    string       `json:"createdAt"`
	UpdatedAt    string       `json:"updatedAt"`
}

func ref(id *int64, name *string) *refResponse {
	if id == nil {
		return nil
	}
	out := &refResponse{ID: *id}
	if name != nil {
		out.Name = *name
	}
	return out
}

// ProfileHandler handles the caller's profile endpoints.
type ProfileHandler struct {
	svc *profile.Service
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(svc *profile.Service) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) toResponse(p *profile.Profile) profileResponse {
	return profileResponse{
		ID:           p.ID.String(),
		UserID:       p.UserID,
		Email:        p.Email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Role:         ref(p.RoleID, p.RoleName),
		Organization: ref(p.OrganizationID, p.OrganizationName),
		Permissions:  h.svc.Permissions(p).Tokens(),
		CreatedAt:    p.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:    p.UpdatedAt.UTC().Format(timeFormat),
	}
}

// Me handles GET /users/me.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	p, err := h.svc.Resolve(r.Context(), *caller)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			response.Err(w, http.StatusNotFound, response.CodeNotFound, "Profile not found", requestID)
			return
		}
		slog.Error("failed to resolve profile", "error", err, "userId", caller.UserID)
		response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Failed to load profile", requestID)
		return
	}

	response.Success(w, http.StatusOK, h.toResponse(p), requestID)
}

// Create handles POST /profiles.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidJSON, "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateProfileRequest(validation.CreateProfileRequest{
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		OrganizationID: req.OrganizationID,
		RoleID:         req.RoleID,
		TokenEmail:     caller.Email,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed", fieldErrors, requestID)
		return
	}

	p, err := h.svc.Create(r.Context(), *caller, profile.CreateInput{
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		OrganizationID: req.OrganizationID,
		RoleID:         req.RoleID,
	})
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrProfileExists):
			response.Err(w, http.StatusConflict, response.CodeConflict, "A profile already exists for this user", requestID)
		case errors.Is(err, profile.ErrInvalidReference):
			response.Err(w, http.StatusUnprocessableEntity, response.CodeValidation, "Unknown organization or role", requestID)
		case errors.Is(err, profile.ErrForbidden):
			response.Err(w, http.StatusForbidden, response.CodeForbidden, "That role cannot be self-assigned", requestID)
		default:
			slog.Error("failed to create profile", "error", err, "userId", caller.UserID)
			response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Failed to create profile", requestID)
		}
		return
	}

	response.Success(w, http.StatusCreated, h.toResponse(p), requestID)
}

// Update handles PUT /profiles/{id}.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidID, "id must be a valid UUID", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidJSON, "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateUpdateProfileRequest(validation.UpdateProfileRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed", fieldErrors, requestID)
		return
	}

	p, err := h.svc.Update(r.Context(), *caller, id, profile.UpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrProfileNotFound):
			response.Err(w, http.StatusNotFound, response.CodeNotFound, "Profile not found", requestID)
		case errors.Is(err, profile.ErrForbidden):
			response.Err(w, http.StatusForbidden, response.CodeForbidden, "Only the owner may update this profile", requestID)
		default:
			slog.Error("failed to update profile", "error", err, "id", id)
			response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Failed to update profile", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, h.toResponse(p), requestID)
}
