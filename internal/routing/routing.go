// Package routing binds issues to the regional official responsible for their zone.
package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/authz"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

// Directory looks up officials.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByRoleAndZone(ctx context.Context, role models.Role, zone models.Zone) (*models.User, error)
}

// IssueWriter persists assignment changes.
type IssueWriter interface {
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	UnassignIssues(ctx context.Context, officialID string) (int64, error)
}

// Router selects and changes issue assignees.
type Router struct {
	users  Directory
	issues IssueWriter
}

// New creates a Router. A store.Store satisfies both dependencies, including
// a transaction-bound one.
func New(users Directory, issues IssueWriter) *Router {
	return &Router{users: users, issues: issues}
}

// Route returns the ID of the regional official for zone. ok is false when
// nobody covers the zone, which is a normal outcome.
func (r *Router) Route(ctx context.Context, zone models.Zone) (officialID string, ok bool, err error) {
	if !zone.Governed() {
		return "", false, nil
	}
	official, err := r.users.GetUserByRoleAndZone(ctx, models.RoleRegionalAdmin, zone)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("route zone %s: %w", zone, err)
	}
	return official.ID, true, nil
}

// Reassign binds issue to officialID on behalf of an administrator and
// overwrites the issue zone with the official's zone. The zone may then
// disagree with the issue's coordinates; that is intended.
func (r *Router) Reassign(ctx context.Context, issue *models.Issue, officialID string, requester models.Actor) (*models.Issue, error) {
	if err := authz.RequireRole(requester, models.RoleAdmin); err != nil {
		return nil, err
	}

	official, err := r.users.GetUser(ctx, officialID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("regional official", officialID)
	}
	if err != nil {
		return nil, fmt.Errorf("reassign: %w", err)
	}
	if official.Role != models.RoleRegionalAdmin {
		return nil, apperr.InvalidTarget("user %s is %s, not a regional official", officialID, official.Role)
	}

	issue.AssignedTo = &official.ID
	if official.Zone.Valid() {
		issue.Zone = official.Zone
	}
	if err := r.issues.UpdateIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("reassign: %w", err)
	}
	return issue, nil
}

// UnassignAllFor clears the assignee on every issue bound to officialID and
// leaves their zones untouched. It returns the number of issues changed.
func (r *Router) UnassignAllFor(ctx context.Context, officialID string) (int64, error) {
	n, err := r.issues.UnassignIssues(ctx, officialID)
	if err != nil {
		return 0, fmt.Errorf("unassign issues of %s: %w", officialID, err)
	}
	return n, nil
}
