// Package access decides whether a caller may run description generation.
package access

import "strings"

// Default grants that allow generation without an override.
const (
	PremiumRole     = "ai-premium"
	AdminCapability = "manage_options"
)

// Grants is the set of roles and capabilities an actor holds.
type Grants []string

// Policy lists the grants that authorize generation. Allowed is matched
// against the caller's own grants; AuthorRoles is matched against the roles
// of the item's author and never against the author's capabilities.
type Policy struct {
	Allowed     []string
	AuthorRoles []string
}

// DefaultPolicy allows callers with the premium role or the admin capability,
// and items whose author has the premium role.
func DefaultPolicy() Policy {
	return Policy{
		Allowed:     []string{PremiumRole, AdminCapability},
		AuthorRoles: []string{PremiumRole},
	}
}

// Authorize is true for trusted automated callers (override) or when the
// actor holds any allowed grant. Comparison ignores case and surrounding space.
func (p Policy) Authorize(actor Grants, override bool) bool {
	if override {
		return true
	}
	return holdsAny(actor, p.Allowed)
}

// AuthorizeItem extends Authorize with the item author's roles.
func (p Policy) AuthorizeItem(actor, authorRoles Grants, override bool) bool {
	return p.Authorize(actor, override) || holdsAny(authorRoles, p.AuthorRoles)
}

func holdsAny(have Grants, allowed []string) bool {
	for _, g := range have {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		for _, want := range allowed {
			if strings.EqualFold(g, strings.TrimSpace(want)) {
				return true
			}
		}
	}
	return false
}
