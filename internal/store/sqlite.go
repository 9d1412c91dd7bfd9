package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/civic/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// querier is the subset of *sql.DB and *sql.Tx the store needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
	q  querier
	tx *sql.Tx // non-nil when bound to a transaction
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access, so a transaction held by RunInTx excludes every
	// other request until it commits.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	return &SQLiteStore{db: db, q: db}, nil
}

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// newULID generates a new ULID string, monotonic within the process.
func newULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RunInTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&SQLiteStore{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Issues ---

const issueColumns = `id, title, description, category, image_url, status, latitude, longitude, created_by, zone, assigned_to, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	var status, zone string
	var lat, lng sql.NullFloat64
	var assignedTo sql.NullString

	if err := row.Scan(&issue.ID, &issue.Title, &issue.Description, &issue.Category, &issue.ImageURL,
		&status, &lat, &lng, &issue.CreatedBy, &zone, &assignedTo,
		&issue.CreatedAt, &issue.UpdatedAt); err != nil {
		return nil, err
	}

	issue.Status = models.IssueStatus(status)
	issue.Zone = models.Zone(zone)
	if lat.Valid {
		issue.Latitude = &lat.Float64
	}
	if lng.Valid {
		issue.Longitude = &lng.Float64
	}
	if assignedTo.Valid {
		issue.AssignedTo = &assignedTo.String
	}
	issue.Comments = []models.Comment{}
	return issue, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	if issue.Status == "" {
		issue.Status = models.IssueStatusPending
	}
	if issue.Zone == "" {
		issue.Zone = models.ZoneUnassigned
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if issue.Comments == nil {
		issue.Comments = []models.Comment{}
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO issues (`+issueColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.Title, issue.Description, issue.Category, issue.ImageURL,
		string(issue.Status), nullFloat(issue.Latitude), nullFloat(issue.Longitude),
		issue.CreatedBy, string(issue.Zone), nullString(issue.AssignedTo),
		issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

// GetIssue returns the issue with its comments, oldest comment first.
func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}

	comments, err := s.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}
	issue.Comments = comments
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conditions []string
	var args []any

	if filter.CreatedBy != "" {
		conditions = append(conditions, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.Zone != "" {
		conditions = append(conditions, "zone = ?")
		args = append(args, string(filter.Zone))
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.Unassigned {
		conditions = append(conditions, "assigned_to IS NULL")
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// UpdateIssue persists the mutable fields: status, zone, assignee, and the descriptive text.
func (s *SQLiteStore) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()
	result, err := s.q.ExecContext(ctx,
		`UPDATE issues SET title=?, description=?, category=?, image_url=?, status=?, zone=?, assigned_to=?, updated_at=?
		WHERE id=?`,
		issue.Title, issue.Description, issue.Category, issue.ImageURL,
		string(issue.Status), string(issue.Zone), nullString(issue.AssignedTo), issue.UpdatedAt,
		issue.ID,
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", issue.ID, ErrNotFound)
	}
	return nil
}

// DeleteIssue removes the issue; its comments go with it via ON DELETE CASCADE.
func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return nil
}

// UnassignIssues clears assigned_to on every issue bound to the official. Zones are untouched.
func (s *SQLiteStore) UnassignIssues(ctx context.Context, officialID string) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		"UPDATE issues SET assigned_to = NULL, updated_at = ? WHERE assigned_to = ?",
		time.Now().UTC(), officialID)
	if err != nil {
		return 0, fmt.Errorf("unassign issues: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// --- Comments ---

func (s *SQLiteStore) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO comments (id, issue_id, author_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.IssueID, c.AuthorID, c.Text, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, issueID string) ([]models.Comment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, issue_id, author_id, text, created_at FROM comments WHERE issue_id = ? ORDER BY created_at, id`,
		issueID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// --- Users ---

const userColumns = `id, name, email, password_hash, role, zone, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var role, zone string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &zone, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.Zone = models.Zone(zone)
	return u, nil
}

// CreateUser inserts a user. A duplicate email, or a second regional
// official for the same zone, returns ErrConflict.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	if u.Role == "" {
		u.Role = models.RoleCitizen
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), string(u.Zone), u.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("create user %s: %w", u.Email, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getUserWhere(ctx context.Context, what, where string, args ...any) (*models.User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUserWhere(ctx, id, "id = ?", id)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserWhere(ctx, email, "email = ?", email)
}

// GetUserByRoleAndZone returns the single user with the role responsible for zone.
// The partial unique index on users(zone) guarantees at most one regional official per zone.
func (s *SQLiteStore) GetUserByRoleAndZone(ctx context.Context, role models.Role, zone models.Zone) (*models.User, error) {
	return s.getUserWhere(ctx, string(role)+"/"+string(zone),
		"role = ? AND zone = ? ORDER BY created_at LIMIT 1", string(role), string(zone))
}

func (s *SQLiteStore) ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE (? = '' OR role = ?) ORDER BY zone, name`, string(role), string(role))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&count); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return count > 0, nil
}

// DeleteUser removes the account and its inbox. Issues the user reported are
// kept; issues assigned to them lose their assignee via ON DELETE SET NULL.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM notifications WHERE recipient_id = ?", id); err != nil {
		return fmt.Errorf("delete user notifications: %w", err)
	}
	result, err := s.q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Notifications ---

func (s *SQLiteStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = newULID()
	}
	n.CreatedAt = time.Now().UTC()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, message, read, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, n.Message, boolToInt(n.Read), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListNotifications returns the recipient's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, recipientID string) ([]*models.Notification, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, recipient_id, message, read, created_at FROM notifications
		WHERE recipient_id = ? ORDER BY created_at DESC, id DESC`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags a notification as read. Only the recipient may do so;
// another user's notification reports ErrNotFound.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ? AND recipient_id = ?", id, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}
