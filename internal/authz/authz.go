// Package authz decides what an actor may do to an issue.
package authz

import (
	"strings"

	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/models"
)

// CanUpdateStatus reports whether actor may change the issue's status.
//
//	ADMIN           always
//	REGIONAL_ADMIN  issue in their zone, or issue assigned to them
//	anyone else     never
func CanUpdateStatus(actor models.Actor, issue *models.Issue) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleRegionalAdmin:
		inZone := actor.Zone != "" && issue.Zone == actor.Zone
		return inZone || (actor.ID != "" && issue.IsAssignedTo(actor.ID))
	default:
		return false
	}
}

// CheckUpdateStatus is CanUpdateStatus returning an Unauthorized error that
// names the actor's scope.
func CheckUpdateStatus(actor models.Actor, issue *models.Issue) error {
	if CanUpdateStatus(actor, issue) {
		return nil
	}
	if actor.Role == models.RoleRegionalAdmin {
		return apperr.Unauthorized("you can only update issues in your zone: %s", scope(actor))
	}
	return apperr.Unauthorized("role %s may not update issue status (zone: %s)", roleName(actor), scope(actor))
}

// RequireRole returns an Unauthorized error unless actor holds one of roles.
func RequireRole(actor models.Actor, roles ...models.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return apperr.Unauthorized("requires role %s; you are %s (zone: %s)",
		strings.Join(names, " or "), roleName(actor), scope(actor))
}

func scope(actor models.Actor) string {
	if actor.Zone == "" {
		return "none"
	}
	return string(actor.Zone)
}

func roleName(actor models.Actor) string {
	if actor.Role == "" {
		return "anonymous"
	}
	return string(actor.Role)
}
