package validation

import (
	"net/mail"
	"strings"
)

const maxNameLen = 100

// CreateProfileRequest mirrors the fields needed for create profile validation.
type CreateProfileRequest struct {
	Email          string
	FirstName      string
	LastName       string
	OrganizationID *int64
	RoleID         *int64
	// TokenEmail is the email carried by the bearer token; when set the
	// body email may be omitted.
	TokenEmail string
}

// ValidateCreateProfileRequest validates the fields of a create profile request.
func ValidateCreateProfileRequest(req CreateProfileRequest) []FieldError {
	var errs []FieldError

	email := strings.TrimSpace(req.Email)
	switch {
	case email == "" && req.TokenEmail == "":
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	case email != "":
		if _, err := mail.ParseAddress(email); err != nil {
			errs = append(errs, FieldError{Field: "email", Message: "email must be a valid address"})
		}
	}

	errs = append(errs, validateName("firstName", &req.FirstName)...)
	errs = append(errs, validateName("lastName", &req.LastName)...)

	if req.OrganizationID != nil && *req.OrganizationID <= 0 {
		errs = append(errs, FieldError{Field: "organizationId", Message: "organizationId must be a positive integer"})
	}
	if req.RoleID != nil && *req.RoleID <= 0 {
		errs = append(errs, FieldError{Field: "roleId", Message: "roleId must be a positive integer"})
	}

	return errs
}

// UpdateProfileRequest mirrors the fields needed for update profile validation.
type UpdateProfileRequest struct {
	FirstName *string
	LastName  *string
}

// ValidateUpdateProfileRequest validates the fields of an update profile request.
func ValidateUpdateProfileRequest(req UpdateProfileRequest) []FieldError {
	if req.FirstName == nil && req.LastName == nil {
		return []FieldError{{Field: "body", Message: "at least one of firstName or lastName is required"}}
	}

	var errs []FieldError
	errs = append(errs, validateName("firstName", req.FirstName)...)
	errs = append(errs, validateName("lastName", req.LastName)...)
	return errs
}

func validateName(field string, value *string) []FieldError {
	if value == nil {
		return nil
	}
	if len(strings.TrimSpace(*value)) > maxNameLen {
		return []FieldError{{Field: field, Message: field + " must be at most 100 characters"}}
	}
	return nil
}
