// Package permission maps roles to capability tokens.
//
// A capability token is an opaque string such as "manage_users". Every
// authorization question in the console is answered by looking a token up
// in a Set; role names never grant anything on their own unless the Policy
// lists tokens for them.
package permission

import (
	"fmt"
	"os"
	"slices"
	"strings"

	sigsyaml "sigs.k8s.io/yaml"
)

// Well-known capability tokens.
const (
	ManageUsers         = "manage_users"
	ManageOrganizations = "manage_organizations"
	ManageCampaigns     = "manage_campaigns"
	ViewCampaigns       = "view_campaigns"
	ViewReports         = "view_reports"
	SendMessages        = "send_messages"
	SearchPartners      = "search_partners"
)

// Set is an unordered collection of capability tokens.
type Set map[string]struct{}

// NewSet builds a Set from tokens, ignoring blanks.
func NewSet(tokens ...string) Set {
	s := make(Set, len(tokens))
	s.Add(tokens...)
	return s
}

// Add inserts tokens into the set.
func (s Set) Add(tokens ...string) {
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t != "" {
			s[t] = struct{}{}
		}
	}
}

// Has reports whether token is in the set. A nil set has nothing.
func (s Set) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Tokens returns the tokens sorted.
func (s Set) Tokens() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	c := make(Set, len(s))
	for t := range s {
		c[t] = struct{}{}
	}
	return c
}

// Policy assigns capability tokens to role names.
type Policy struct {
	Roles map[string][]string `json:"roles"`
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{Roles: map[string][]string{
		"Admin": {
			ManageUsers, ManageOrganizations, ManageCampaigns, ViewCampaigns,
			ViewReports, SendMessages, SearchPartners,
		},
		"Manager":    {ManageCampaigns, ViewCampaigns, ViewReports, SendMessages, SearchPartners},
		"Affiliate":  {ViewCampaigns, ViewReports, SendMessages},
		"Advertiser": {ManageCampaigns, ViewCampaigns, ViewReports, SearchPartners},
	}}
}

// Parse decodes a YAML (or JSON) policy document:
//
//	roles:
//	  Admin: [manage_users, view_reports]
func Parse(data []byte) (*Policy, error) {
	var p Policy
	if err := sigsyaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("parsing permission policy: %w", err)
	}
	if p.Roles == nil {
		p.Roles = map[string][]string{}
	}
	return &p, nil
}

// LoadFile reads a policy from path. An empty path yields Default().
func LoadFile(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading permission policy: %w", err)
	}
	return Parse(data)
}

// Grants returns the tokens for role plus any explicit tokens. Role names
// are matched case-insensitively.
func (p *Policy) Grants(role string, explicit ...string) Set {
	s := NewSet(explicit...)
	if p == nil || role == "" {
		return s
	}
	if tokens, ok := p.Roles[role]; ok {
		s.Add(tokens...)
		return s
	}
	for name, tokens := range p.Roles {
		if strings.EqualFold(name, role) {
			s.Add(tokens...)
			break
		}
	}
	return s
}
