// Package orgcontext implements the active-organization resolution and
// session-context subsystem: given a user who may belong to zero, one, or many
// organizations, it deterministically selects, persists, validates, and
// transitions the organization a session operates against, and derives the
// admission decisions page guards act on.
package orgcontext

import "errors"

var (
	// ErrAccessDenied is returned by SetActiveOrg when revalidation shows the
	// identity no longer holds an active membership in the target organization.
	// Prior state is left untouched.
	ErrAccessDenied = errors.New("no active membership in organization")

	// ErrOrganizationNotFound is returned by SetActiveOrg when the target id is
	// absent from the last-known organization list. This is a caller
	// programming error, reported rather than silently ignored.
	ErrOrganizationNotFound = errors.New("organization not found in session context")

	// ErrSuperseded is returned when a switch was overtaken by a newer
	// user-driven action or a sign-out before it could commit.
	ErrSuperseded = errors.New("switch superseded by a newer action")
)
