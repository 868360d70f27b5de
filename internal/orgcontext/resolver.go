// resolver.go implements the pure active-organization selection logic. It has no
// I/O and no side effects so every branch is testable in isolation.
package orgcontext

import (
	"github.com/member-portal/member-portal/internal/db/models"
)

// Selection is the resolver's verdict. Org and Membership are nil together
// when nothing is selectable. Ambiguous marks a selection produced by the
// positional fallback (multiple non-individual organizations, no valid
// preference): callers that want an explicit user choice instead of a silent
// default should decline to commit an ambiguous selection.
type Selection struct {
	Org        *models.Organization
	Membership *models.Membership
	Ambiguous  bool
}

// Resolve picks the active organization from the user's active memberships and
// their corresponding organization records, using preferredID as a hint.
//
// Priority order, first match wins:
//  1. no organizations: nothing selected
//  2. preferredID names an organization in the set: select it
//  3. exactly one organization: select it
//  4. exactly one organization of type individual: select it;
//     otherwise the first in the given ordering, flagged Ambiguous
//
// The preference is a hint, never truth: an id absent from the set is ignored.
// Resolve is deterministic for fixed inputs and never fails; an empty
// Selection is a valid result, not an error.
func Resolve(memberships []*models.Membership, orgs []*models.Organization, preferredID string) Selection {
	if len(orgs) == 0 {
		return Selection{}
	}

	byOrg := make(map[string]*models.Membership, len(memberships))
	for _, m := range memberships {
		byOrg[m.OrgID] = m
	}

	pick := func(org *models.Organization, ambiguous bool) Selection {
		m, ok := byOrg[org.ID]
		if !ok {
			// Organization without a backing membership row; not selectable.
			return Selection{}
		}
		return Selection{Org: org, Membership: m, Ambiguous: ambiguous}
	}

	if preferredID != "" {
		for _, org := range orgs {
			if org.ID == preferredID {
				if sel := pick(org, false); sel.Org != nil {
					return sel
				}
				break
			}
		}
	}

	if len(orgs) == 1 {
		return pick(orgs[0], false)
	}

	var individual *models.Organization
	individualCount := 0
	for _, org := range orgs {
		if org.Type == models.OrgTypeIndividual {
			individual = org
			individualCount++
		}
	}
	if individualCount == 1 {
		if sel := pick(individual, false); sel.Org != nil {
			return sel
		}
	}

	return pick(orgs[0], true)
}
