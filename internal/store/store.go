package store

import (
	"context"
	"errors"

	"github.com/joescharf/civic/internal/models"
)

// Sentinel errors for persistence facts. Services translate them into domain errors.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// IssueListFilter specifies filters for listing issues. Zero values match everything.
// Results are always ordered newest first.
type IssueListFilter struct {
	CreatedBy  string
	Zone       models.Zone
	AssignedTo string
	Unassigned bool
	Status     models.IssueStatus
}

// Store defines the persistence interface for civic.
type Store interface {
	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	DeleteIssue(ctx context.Context, id string) error
	UnassignIssues(ctx context.Context, officialID string) (int64, error)

	// Comments
	CreateComment(ctx context.Context, c *models.Comment) error
	ListComments(ctx context.Context, issueID string) ([]models.Comment, error)

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByRoleAndZone(ctx context.Context, role models.Role, zone models.Zone) (*models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) // empty role lists everyone
	EmailExists(ctx context.Context, email string) (bool, error)
	DeleteUser(ctx context.Context, id string) error

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipientID string) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error

	// RunInTx runs fn against a Store bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
