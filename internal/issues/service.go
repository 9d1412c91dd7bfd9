// Package issues implements the issue lifecycle: creation with zone routing,
// guarded status updates with creator notification, deletion, comments, and
// the listings built on top of them.
package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/authz"
	"github.com/joescharf/civic/internal/metrics"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/notify"
	"github.com/joescharf/civic/internal/routing"
	"github.com/joescharf/civic/internal/store"
	"github.com/joescharf/civic/internal/zone"
)

// Service runs issue operations against a store.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a Service. logger and m may be nil.
func NewService(s store.Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: s, logger: logger, metrics: m}
}

// CreateRequest holds the citizen-supplied fields of a new issue.
type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

func (r CreateRequest) validate() error {
	var v apperr.Validator
	v.Require("title", r.Title, "title is required")
	v.Require("description", r.Description, "description is required")
	v.Require("category", r.Category, "category is required")
	v.Check((r.Latitude == nil) == (r.Longitude == nil), "location", "latitude and longitude must be given together")
	return v.Err()
}

// Create classifies the issue location, routes it to the zone's official if
// one exists, and persists it as PENDING. No notification is sent.
func (s *Service) Create(ctx context.Context, req CreateRequest, creator models.Actor) (*models.Issue, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	issue := &models.Issue{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		Status:      models.IssueStatusPending,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		CreatedBy:   creator.ID,
		Zone:        zone.Classify(req.Latitude, req.Longitude),
	}

	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetUser(ctx, creator.ID); err != nil {
			return translate(err, "user", creator.ID)
		}
		officialID, ok, err := routing.New(tx, tx).Route(ctx, issue.Zone)
		if err != nil {
			return err
		}
		if ok {
			issue.AssignedTo = &officialID
		}
		return tx.CreateIssue(ctx, issue)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IssueCreated(issue.Zone, issue.AssignedTo != nil)
	if issue.AssignedTo != nil {
		s.logger.Info("issue routed", "issue", issue.ID, "zone", issue.Zone, "official", *issue.AssignedTo)
	} else {
		s.logger.Info("issue unassigned", "issue", issue.ID, "zone", issue.Zone)
	}
	return issue, nil
}

// UpdateStatus changes the status of an issue if actor is allowed to, and
// notifies the issue's creator. Load, check, write and notify run in one
// transaction, so concurrent updates to an issue are serialized and each
// successful call yields exactly one notification.
func (s *Service) UpdateStatus(ctx context.Context, issueID string, status models.IssueStatus, actor models.Actor) (*models.Issue, error) {
	if !status.Valid() {
		var v apperr.Validator
		v.Add("status", fmt.Sprintf("unknown status %q", status))
		return nil, v.Err()
	}

	var updated *models.Issue
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		issue, err := tx.GetIssue(ctx, issueID)
		if err != nil {
			return translate(err, "issue", issueID)
		}

		if err := authz.CheckUpdateStatus(actor, issue); err != nil {
			s.logger.Warn("status update denied",
				"issue", issue.ID, "issue_zone", issue.Zone,
				"actor", actor.ID, "role", actor.Role, "actor_zone", actor.Zone)
			s.metrics.AuthorizationDenied(actor.Role)
			return err
		}

		issue.Status = status
		if err := tx.UpdateIssue(ctx, issue); err != nil {
			return translate(err, "issue", issueID)
		}
		if err := notify.NewStoreSink(tx).Record(ctx, issue.CreatedBy, notify.StatusChanged(issue.Title, status)); err != nil {
			return err
		}
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusUpdated(status)
	s.logger.Info("issue status updated", "issue", updated.ID, "status", status, "actor", actor.ID)
	return updated, nil
}

// Assign binds an issue to a regional official on behalf of an administrator.
// The issue zone becomes the official's zone.
func (s *Service) Assign(ctx context.Context, issueID, officialID string, actor models.Actor) (*models.Issue, error) {
	var updated *models.Issue
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		issue, err := tx.GetIssue(ctx, issueID)
		if err != nil {
			return translate(err, "issue", issueID)
		}
		updated, err = routing.New(tx, tx).Reassign(ctx, issue, officialID, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Reassigned()
	s.logger.Info("issue reassigned", "issue", updated.ID, "official", officialID, "zone", updated.Zone)
	return updated, nil
}

// Delete removes an issue and its comments. Callers restrict it to
// administrators; actor is recorded in the log.
func (s *Service) Delete(ctx context.Context, issueID string, actor models.Actor) error {
	if err := s.store.DeleteIssue(ctx, issueID); err != nil {
		return translate(err, "issue", issueID)
	}
	s.logger.Info("issue deleted", "issue", issueID, "actor", actor.ID)
	return nil
}

// AddComment appends a comment to an issue.
func (s *Service) AddComment(ctx context.Context, issueID, text string, author models.Actor) (*models.Comment, error) {
	var v apperr.Validator
	v.Require("text", text, "comment text is required")
	if err := v.Err(); err != nil {
		return nil, err
	}

	c := &models.Comment{IssueID: issueID, AuthorID: author.ID, Text: strings.TrimSpace(text)}
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetIssue(ctx, issueID); err != nil {
			return translate(err, "issue", issueID)
		}
		return tx.CreateComment(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns one issue with its comments.
func (s *Service) Get(ctx context.Context, issueID string) (*models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, translate(err, "issue", issueID)
	}
	return issue, nil
}

// List returns every issue, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Issue, error) {
	return s.store.ListIssues(ctx, store.IssueListFilter{})
}

// ListMine returns the issues actor created, newest first.
func (s *Service) ListMine(ctx context.Context, actor models.Actor) ([]*models.Issue, error) {
	return s.store.ListIssues(ctx, store.IssueListFilter{CreatedBy: actor.ID})
}

// ListForOfficial returns the dashboard issues for actor: every issue for an
// administrator, the zone's issues for a regional official.
func (s *Service) ListForOfficial(ctx context.Context, actor models.Actor) ([]*models.Issue, error) {
	filter, err := dashboardFilter(actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListIssues(ctx, filter)
}

// Find returns issues matching filter, newest first. Regional officials are
// limited to their own zone.
func (s *Service) Find(ctx context.Context, filter store.IssueListFilter, actor models.Actor) ([]*models.Issue, error) {
	scope, err := dashboardFilter(actor)
	if err != nil {
		return nil, err
	}
	if scope.Zone != "" {
		filter.Zone = scope.Zone
	}
	return s.store.ListIssues(ctx, filter)
}

// ListUnassigned returns issues with no official. Administrators only.
func (s *Service) ListUnassigned(ctx context.Context, actor models.Actor) ([]*models.Issue, error) {
	if err := authz.RequireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListIssues(ctx, store.IssueListFilter{Unassigned: true})
}

// ZoneStats counts dashboard issues per status. Administrators get the "ALL"
// summary; regional officials get their zone.
func (s *Service) ZoneStats(ctx context.Context, actor models.Actor) (*models.ZoneStats, error) {
	filter, err := dashboardFilter(actor)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return nil, err
	}

	stats := &models.ZoneStats{Zone: "ALL", Description: "All Zones"}
	if filter.Zone != "" {
		stats.Zone = string(filter.Zone)
		stats.Description = zone.Describe(filter.Zone)
	}
	for _, issue := range list {
		stats.Add(issue)
	}
	return stats, nil
}

// StatsByZone returns one summary per zone, UNASSIGNED included, in
// models.Zones order. Administrators only.
func (s *Service) StatsByZone(ctx context.Context, actor models.Actor) ([]*models.ZoneStats, error) {
	if err := authz.RequireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	list, err := s.store.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}

	byZone := make(map[models.Zone]*models.ZoneStats)
	out := make([]*models.ZoneStats, 0, len(models.Zones()))
	for _, z := range models.Zones() {
		st := &models.ZoneStats{Zone: string(z), Description: zone.Describe(z)}
		byZone[z] = st
		out = append(out, st)
	}
	for _, issue := range list {
		if st, ok := byZone[issue.Zone]; ok {
			st.Add(issue)
		}
	}
	return out, nil
}

// Notifications returns actor's inbox, newest first.
func (s *Service) Notifications(ctx context.Context, actor models.Actor) ([]*models.Notification, error) {
	return s.store.ListNotifications(ctx, actor.ID)
}

// MarkNotificationRead marks one of actor's notifications as read.
func (s *Service) MarkNotificationRead(ctx context.Context, notificationID string, actor models.Actor) error {
	if err := s.store.MarkNotificationRead(ctx, notificationID, actor.ID); err != nil {
		return translate(err, "notification", notificationID)
	}
	return nil
}

func dashboardFilter(actor models.Actor) (store.IssueListFilter, error) {
	if err := authz.RequireRole(actor, models.RoleAdmin, models.RoleRegionalAdmin); err != nil {
		return store.IssueListFilter{}, err
	}
	if actor.Role == models.RoleAdmin {
		return store.IssueListFilter{}, nil
	}
	if !actor.Zone.Governed() {
		return store.IssueListFilter{}, apperr.Unauthorized("regional official has no zone")
	}
	return store.IssueListFilter{Zone: actor.Zone}, nil
}

func translate(err error, entity, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(entity, id)
	}
	return err
}
