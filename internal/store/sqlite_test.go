package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/civic/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func createUser(t *testing.T, s Store, email string, role models.Role, zone models.Zone) *models.User {
	t.Helper()
	u := &models.User{Name: email, Email: email, Role: role, Zone: zone}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func fptr(f float64) *float64 { return &f }

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

// --- Users ---

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Name: "Asha", Email: "asha@example.com", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, models.RoleCitizen, u.Role, "role defaults to citizen")

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = s.GetUserByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	exists, err := s.EmailExists(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.EmailExists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), ErrNotFound)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	createUser(t, s, "dup@example.com", models.RoleCitizen, "")

	err := s.CreateUser(context.Background(), &models.User{Name: "x", Email: "dup@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateUser_OneOfficialPerZone(t *testing.T) {
	s := newTestStore(t)
	createUser(t, s, "east1@example.com", models.RoleRegionalAdmin, models.ZoneEast)

	err := s.CreateUser(context.Background(), &models.User{
		Name: "east2", Email: "east2@example.com", Role: models.RoleRegionalAdmin, Zone: models.ZoneEast,
	})
	assert.ErrorIs(t, err, ErrConflict)

	// Citizens carry no zone and are unaffected by the index.
	createUser(t, s, "c1@example.com", models.RoleCitizen, "")
	createUser(t, s, "c2@example.com", models.RoleCitizen, "")
}

func TestGetUserByRoleAndZone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	east := createUser(t, s, "east@example.com", models.RoleRegionalAdmin, models.ZoneEast)

	got, err := s.GetUserByRoleAndZone(ctx, models.RoleRegionalAdmin, models.ZoneEast)
	require.NoError(t, err)
	assert.Equal(t, east.ID, got.ID)

	_, err = s.GetUserByRoleAndZone(ctx, models.RoleRegionalAdmin, models.ZoneWest)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUsersByRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "w@example.com", models.RoleRegionalAdmin, models.ZoneWest)
	createUser(t, s, "e@example.com", models.RoleRegionalAdmin, models.ZoneEast)
	createUser(t, s, "c@example.com", models.RoleCitizen, "")

	officials, err := s.ListUsersByRole(ctx, models.RoleRegionalAdmin)
	require.NoError(t, err)
	require.Len(t, officials, 2)
	assert.Equal(t, models.ZoneEast, officials[0].Zone, "ordered by zone")

	admins, err := s.ListUsersByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Empty(t, admins)

	everyone, err := s.ListUsersByRole(ctx, "")
	require.NoError(t, err)
	assert.Len(t, everyone, 3)
}

// --- Issues ---

func TestIssueCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	citizen := createUser(t, s, "c@example.com", models.RoleCitizen, "")
	official := createUser(t, s, "o@example.com", models.RoleRegionalAdmin, models.ZoneCentral)

	issue := &models.Issue{
		Title:       "Pothole",
		Description: "Deep pothole near the bus stand",
		Category:    "Roads",
		Latitude:    fptr(11.0),
		Longitude:   fptr(77.0),
		CreatedBy:   citizen.ID,
		Zone:        models.ZoneCentral,
		AssignedTo:  &official.ID,
	}
	require.NoError(t, s.CreateIssue(ctx, issue))
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, models.IssueStatusPending, issue.Status)

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pothole", got.Title)
	assert.Equal(t, models.ZoneCentral, got.Zone)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 11.0, *got.Latitude, 1e-9)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, official.ID, *got.AssignedTo)
	assert.NotNil(t, got.Comments)
	assert.Empty(t, got.Comments)

	got.Status = models.IssueStatusResolved
	got.AssignedTo = nil
	require.NoError(t, s.UpdateIssue(ctx, got))

	got2, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusResolved, got2.Status)
	assert.Nil(t, got2.AssignedTo)

	require.NoError(t, s.DeleteIssue(ctx, issue.ID))
	_, err = s.GetIssue(ctx, issue.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteIssue(ctx, issue.ID), ErrNotFound)
}

func TestCreateIssue_DefaultsZone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	citizen := createUser(t, s, "c@example.com", models.RoleCitizen, "")

	issue := &models.Issue{Title: "t", Description: "d", Category: "c", CreatedBy: citizen.ID}
	require.NoError(t, s.CreateIssue(ctx, issue))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ZoneUnassigned, got.Zone)
	assert.Nil(t, got.Latitude)
	assert.Nil(t, got.Longitude)
}

func TestUpdateIssue_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateIssue(context.Background(), &models.Issue{ID: "missing", Status: models.IssueStatusPending, Zone: models.ZoneUnassigned})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIssues_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice@example.com", models.RoleCitizen, "")
	bob := createUser(t, s, "bob@example.com", models.RoleCitizen, "")
	east := createUser(t, s, "east@example.com", models.RoleRegionalAdmin, models.ZoneEast)

	mk := func(title string, by *models.User, zone models.Zone, assignee *string) *models.Issue {
		i := &models.Issue{Title: title, Description: "d", Category: "c", CreatedBy: by.ID, Zone: zone, AssignedTo: assignee}
		require.NoError(t, s.CreateIssue(ctx, i))
		return i
	}
	first := mk("first", alice, models.ZoneEast, &east.ID)
	mk("second", bob, models.ZoneWest, nil)
	third := mk("third", alice, models.ZoneUnassigned, nil)

	all, err := s.ListIssues(ctx, IssueListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[2].ID)

	mine, err := s.ListIssues(ctx, IssueListFilter{CreatedBy: alice.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	byZone, err := s.ListIssues(ctx, IssueListFilter{Zone: models.ZoneWest})
	require.NoError(t, err)
	require.Len(t, byZone, 1)
	assert.Equal(t, "second", byZone[0].Title)

	assigned, err := s.ListIssues(ctx, IssueListFilter{AssignedTo: east.ID})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, first.ID, assigned[0].ID)

	unassigned, err := s.ListIssues(ctx, IssueListFilter{Unassigned: true})
	require.NoError(t, err)
	assert.Len(t, unassigned, 2)

	pending, err := s.ListIssues(ctx, IssueListFilter{Status: models.IssueStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	none, err := s.ListIssues(ctx, IssueListFilter{Status: models.IssueStatusResolved})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnassignIssues_KeepsZone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	citizen := createUser(t, s, "c@example.com", models.RoleCitizen, "")
	east := createUser(t, s, "east@example.com", models.RoleRegionalAdmin, models.ZoneEast)
	west := createUser(t, s, "west@example.com", models.RoleRegionalAdmin, models.ZoneWest)

	a := &models.Issue{Title: "a", Description: "d", Category: "c", CreatedBy: citizen.ID, Zone: models.ZoneEast, AssignedTo: &east.ID}
	b := &models.Issue{Title: "b", Description: "d", Category: "c", CreatedBy: citizen.ID, Zone: models.ZoneWest, AssignedTo: &west.ID}
	require.NoError(t, s.CreateIssue(ctx, a))
	require.NoError(t, s.CreateIssue(ctx, b))

	n, err := s.UnassignIssues(ctx, east.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gotA, err := s.GetIssue(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gotA.AssignedTo)
	assert.Equal(t, models.ZoneEast, gotA.Zone)

	gotB, err := s.GetIssue(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, gotB.AssignedTo)
	assert.Equal(t, west.ID, *gotB.AssignedTo)
}

// --- Comments ---

func TestDeleteUser_KeepsReportedIssues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	reporter := createUser(t, s, "r@example.com", models.RoleRegionalAdmin, models.ZoneSouth)

	issue := &models.Issue{Title: "t", Description: "d", Category: "c", CreatedBy: reporter.ID, Zone: models.ZoneSouth}
	require.NoError(t, s.CreateIssue(ctx, issue))
	require.NoError(t, s.CreateNotification(ctx, &models.Notification{RecipientID: reporter.ID, Message: "m"}))

	require.NoError(t, s.DeleteUser(ctx, reporter.ID))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, reporter.ID, got.CreatedBy)

	inbox, err := s.ListNotifications(ctx, reporter.ID)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestComments_CascadeWithIssue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	citizen := createUser(t, s, "c@example.com", models.RoleCitizen, "")

	issue := &models.Issue{Title: "t", Description: "d", Category: "c", CreatedBy: citizen.ID}
	require.NoError(t, s.CreateIssue(ctx, issue))

	for _, text := range []string{"first", "second"} {
		require.NoError(t, s.CreateComment(ctx, &models.Comment{IssueID: issue.ID, AuthorID: citizen.ID, Text: text}))
	}

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "first", got.Comments[0].Text)
	assert.Equal(t, "second", got.Comments[1].Text)

	require.NoError(t, s.DeleteIssue(ctx, issue.ID))

	comments, err := s.ListComments(ctx, issue.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

// --- Notifications ---

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice@example.com", models.RoleCitizen, "")
	bob := createUser(t, s, "bob@example.com", models.RoleCitizen, "")

	n1 := &models.Notification{RecipientID: alice.ID, Message: "one"}
	n2 := &models.Notification{RecipientID: alice.ID, Message: "two"}
	require.NoError(t, s.CreateNotification(ctx, n1))
	require.NoError(t, s.CreateNotification(ctx, n2))

	list, err := s.ListNotifications(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "two", list[0].Message, "newest first")
	assert.False(t, list[0].Read)

	assert.ErrorIs(t, s.MarkNotificationRead(ctx, n1.ID, bob.ID), ErrNotFound)
	require.NoError(t, s.MarkNotificationRead(ctx, n1.ID, alice.ID))

	list, err = s.ListNotifications(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, list[1].Read)

	empty, err := s.ListNotifications(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// --- Transactions ---

func TestRunInTx_Commit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var id string
	err := s.RunInTx(ctx, func(tx Store) error {
		u := &models.User{Name: "t", Email: "tx@example.com"}
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		id = u.ID
		// Nested call reuses the transaction.
		return tx.RunInTx(ctx, func(inner Store) error {
			_, err := inner.GetUser(ctx, id)
			return err
		})
	})
	require.NoError(t, err)

	_, err = s.GetUser(ctx, id)
	assert.NoError(t, err)
}

func TestRunInTx_Rollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx Store) error {
		if err := tx.CreateUser(ctx, &models.User{Name: "t", Email: "rollback@example.com"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := s.EmailExists(ctx, "rollback@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}
