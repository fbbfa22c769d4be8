// Package api embeds the profile service's OpenAPI document.
package api

import _ "embed"

// OpenAPISpec is the YAML OpenAPI document served at /openapi.json.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
