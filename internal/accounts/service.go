// Package accounts manages users: citizen registration and the administrator
// workflow for regional officials.
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/auth"
	"github.com/joescharf/civic/internal/authz"
	"github.com/joescharf/civic/internal/metrics"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/routing"
	"github.com/joescharf/civic/internal/store"
	"github.com/joescharf/civic/internal/zone"
)

const minPasswordLength = 6

// Service runs account operations against a store.
type Service struct {
	store   store.Store
	hasher  *auth.Hasher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a Service. logger and m may be nil.
func NewService(s store.Store, hasher *auth.Hasher, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: s, hasher: hasher, logger: logger, metrics: m}
}

// UserRequest holds the fields of a new account.
type UserRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role,omitempty"`
	Zone     models.Zone `json:"zone,omitempty"`
}

func (r *UserRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r UserRequest) validate() error {
	var v apperr.Validator
	v.Require("name", r.Name, "name is required")
	v.Require("email", r.Email, "email is required")
	if r.Email != "" {
		_, err := mail.ParseAddress(r.Email)
		v.Check(err == nil, "email", "email is not valid")
	}
	v.Check(len(r.Password) >= minPasswordLength, "password", "password must be at least 6 characters")
	switch r.Role {
	case models.RoleRegionalAdmin:
		v.Check(r.Zone.Governed(), "zone", "zone must be one of NORTH, SOUTH, EAST, WEST, CENTRAL")
	case models.RoleCitizen, models.RoleAdmin:
		v.Check(r.Zone == "", "zone", "only regional officials have a zone")
	default:
		v.Add("role", "unknown role")
	}
	return v.Err()
}

// Register creates a citizen account.
func (s *Service) Register(ctx context.Context, req UserRequest) (*models.User, error) {
	req.Role = models.RoleCitizen
	req.Zone = ""
	return s.create(ctx, req)
}

// CreateUser creates an account of any role. It backs the operator CLI.
func (s *Service) CreateUser(ctx context.Context, req UserRequest, actor models.Actor) (*models.User, error) {
	if err := authz.RequireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = models.RoleCitizen
	}
	return s.create(ctx, req)
}

// CreateOfficial creates a regional official for a governed zone. A zone
// already covered by an official is rejected with ZoneTaken.
func (s *Service) CreateOfficial(ctx context.Context, req UserRequest, actor models.Actor) (*models.Official, error) {
	if err := authz.RequireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	req.Role = models.RoleRegionalAdmin
	u, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}
	return &models.Official{User: *u, ZoneDescription: zone.Describe(u.Zone)}, nil
}

func (s *Service) create(ctx context.Context, req UserRequest) (*models.User, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{Name: req.Name, Email: req.Email, PasswordHash: hash, Role: req.Role, Zone: req.Zone}
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		exists, err := tx.EmailExists(ctx, u.Email)
		if err != nil {
			return err
		}
		if exists {
			return apperr.DuplicateEmail(u.Email)
		}
		if u.Role == models.RoleRegionalAdmin {
			_, err := tx.GetUserByRoleAndZone(ctx, models.RoleRegionalAdmin, u.Zone)
			if err == nil {
				return apperr.ZoneTaken(string(u.Zone))
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		if err := tx.CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.DuplicateEmail(u.Email)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user", u.ID, "role", u.Role, "zone", u.Zone)
	return u, nil
}

// ListUsers returns the accounts with the given role. Administrators only.
func (s *Service) ListUsers(ctx context.Context, role models.Role, actor models.Actor) ([]*models.User, error) {
	if err := authz.RequireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListUsersByRole(ctx, role)
}

// UserByEmail resolves an account by email.
func (s *Service) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("user", email)
	}
	return u, err
}

// ListOfficials returns every regional official with issue counters for
// their zone.
func (s *Service) ListOfficials(ctx context.Context, actor models.Actor) ([]*models.Official, error) {
	if err := authz.RequireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsersByRole(ctx, models.RoleRegionalAdmin)
	if err != nil {
		return nil, err
	}

	officials := make([]*models.Official, 0, len(users))
	for _, u := range users {
		list, err := s.store.ListIssues(ctx, store.IssueListFilter{Zone: u.Zone})
		if err != nil {
			return nil, err
		}
		o := &models.Official{User: *u, ZoneDescription: zone.Describe(u.Zone), TotalIssues: len(list)}
		for _, issue := range list {
			switch issue.Status {
			case models.IssueStatusPending:
				o.PendingIssues++
			case models.IssueStatusResolved:
				o.ResolvedIssues++
			}
		}
		officials = append(officials, o)
	}
	return officials, nil
}

// RemoveOfficial unassigns every issue bound to the official, keeping the
// issues' zones, then deletes the account. It returns how many issues were
// unassigned.
func (s *Service) RemoveOfficial(ctx context.Context, officialID string, actor models.Actor) (int64, error) {
	if err := authz.RequireRole(actor, models.RoleAdmin); err != nil {
		return 0, err
	}

	var unassigned int64
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		u, err := tx.GetUser(ctx, officialID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("regional official", officialID)
		}
		if err != nil {
			return err
		}
		if u.Role != models.RoleRegionalAdmin {
			return apperr.InvalidTarget("user %s is %s, not a regional official", officialID, u.Role)
		}

		unassigned, err = routing.New(tx, tx).UnassignAllFor(ctx, officialID)
		if err != nil {
			return err
		}
		return tx.DeleteUser(ctx, officialID)
	})
	if err != nil {
		return 0, err
	}

	s.metrics.OfficialRemoved()
	s.logger.Info("regional official removed", "official", officialID, "unassigned_issues", unassigned)
	return unassigned, nil
}
