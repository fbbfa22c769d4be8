package validation

import "strings"

var organizationStatuses = map[string]bool{"active": true, "suspended": true, "pending": true}

// CreateOrganizationRequest mirrors the fields needed for create organization validation.
type CreateOrganizationRequest struct {
	Name   string
	Status string
	Type   string
}

// ValidateCreateOrganizationRequest validates the fields of a create organization request.
func ValidateCreateOrganizationRequest(req CreateOrganizationRequest) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}

	if req.Status != "" && !organizationStatuses[req.Status] {
		errs = append(errs, FieldError{Field: "status", Message: "status must be one of active, suspended, pending"})
	}

	if len(req.Type) > 64 {
		errs = append(errs, FieldError{Field: "type", Message: "type must be at most 64 characters"})
	}

	return errs
}
