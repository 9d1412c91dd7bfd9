package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joescharf/civic/internal/accounts"
	"github.com/joescharf/civic/internal/auth"
	"github.com/joescharf/civic/internal/issues"
	"github.com/joescharf/civic/internal/metrics"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

const testPassword = "secret123"

type testEnv struct {
	router   http.Handler
	store    *store.SQLiteStore
	accounts *accounts.Service
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	hasher := auth.NewHasher(bcrypt.MinCost)
	m := metrics.New()
	as := accounts.NewService(s, hasher, nil, m)
	srv := NewServer(issues.NewService(s, nil, m), as, auth.NewAuthenticator(s, hasher), nil, m, nil)

	return &testEnv{router: srv.Router(), store: s, accounts: as}
}

func (e *testEnv) addUser(t *testing.T, email string, role models.Role, z models.Zone) *models.User {
	t.Helper()
	u, err := e.accounts.CreateUser(context.Background(), accounts.UserRequest{
		Name: email, Email: email, Password: testPassword, Role: role, Zone: z,
	}, models.OperatorActor())
	require.NoError(t, err)
	return u
}

func (e *testEnv) do(t *testing.T, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if email != "" {
		req.SetBasicAuth(email, testPassword)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthzAndMetrics(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRegisterAndMe(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"name": "Asha", "email": "asha@example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")

	w = env.do(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"name": "Asha", "email": "asha@example.com", "password": testPassword,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate_email", decode[errorBody](t, w).Error)

	w = env.do(t, "GET", "/api/v1/me", "asha@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.User](t, w)
	assert.Equal(t, models.RoleCitizen, me.Role)
}

func TestRegister_Validation(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, "POST", "/api/v1/auth/register", "", map[string]string{"email": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, "validation", body.Error)
	assert.Contains(t, body.Fields, "name")
	assert.Contains(t, body.Fields, "password")
}

func TestAuthentication(t *testing.T) {
	env := setupTestServer(t)
	env.addUser(t, "c@example.com", models.RoleCitizen, "")

	w := env.do(t, "GET", "/api/v1/issues", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest("GET", "/api/v1/issues", nil)
	req.SetBasicAuth("c@example.com", "wrong")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = env.do(t, "GET", "/api/v1/issues", "c@example.com", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	// Registration lowercases the email; login with the original casing works.
	reg := env.do(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"name": "Asha", "email": "Asha@Example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, reg.Code)
	w = env.do(t, "GET", "/api/v1/me", "Asha@Example.com", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClassifyZone(t *testing.T) {
	env := setupTestServer(t)
	env.addUser(t, "c@example.com", models.RoleCitizen, "")

	w := env.do(t, "GET", "/api/v1/zones/classify?lat=11.10&lng=77.0", "c@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ZoneNorth, decode[zoneInfo](t, w).Zone)

	w = env.do(t, "GET", "/api/v1/zones/classify", "c@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ZoneUnassigned, decode[zoneInfo](t, w).Zone)

	w = env.do(t, "GET", "/api/v1/zones/classify?lat=abc&lng=77", "c@example.com", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, "GET", "/api/v1/zones", "c@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]zoneInfo](t, w), 6)
}

func TestSuggestCategory(t *testing.T) {
	env := setupTestServer(t)
	env.addUser(t, "c@example.com", models.RoleCitizen, "")

	w := env.do(t, "POST", "/api/v1/categories/suggest", "c@example.com", map[string]string{"title": "Pothole on 5th street"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Roads & Potholes")

	w = env.do(t, "GET", "/api/v1/categories", "c@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[[]string](t, w), "Other")
}

func TestIssueFlow(t *testing.T) {
	env := setupTestServer(t)
	citizen := env.addUser(t, "c@example.com", models.RoleCitizen, "")
	west := env.addUser(t, "west@example.com", models.RoleRegionalAdmin, models.ZoneWest)
	env.addUser(t, "east@example.com", models.RoleRegionalAdmin, models.ZoneEast)
	env.addUser(t, "admin@example.com", models.RoleAdmin, "")

	// Create
	w := env.do(t, "POST", "/api/v1/issues", "c@example.com", map[string]any{
		"title": "Broken streetlight", "description": "Dark at night", "category": "Streetlights",
		"latitude": 11.0, "longitude": 76.90,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	issue := decode[models.Issue](t, w)
	assert.Equal(t, models.ZoneWest, issue.Zone)
	require.NotNil(t, issue.AssignedTo)
	assert.Equal(t, west.ID, *issue.AssignedTo)
	assert.Equal(t, citizen.ID, issue.CreatedBy)

	// Citizens cannot update status.
	w = env.do(t, "PUT", "/api/v1/issues/"+issue.ID+"/status", "c@example.com", map[string]string{"status": "RESOLVED"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The EAST official is denied, and the message names their zone.
	w = env.do(t, "PUT", "/api/v1/issues/"+issue.ID+"/status", "east@example.com", map[string]string{"status": "RESOLVED"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	denied := decode[errorBody](t, w)
	assert.Equal(t, "unauthorized", denied.Error)
	assert.Contains(t, denied.Message, "EAST")

	// Invalid status value.
	w = env.do(t, "PUT", "/api/v1/issues/"+issue.ID+"/status", "west@example.com", map[string]string{"status": "DONE"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// The WEST official succeeds.
	w = env.do(t, "PUT", "/api/v1/issues/"+issue.ID+"/status", "west@example.com", map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.IssueStatusInProgress, decode[models.Issue](t, w).Status)

	// The creator was notified once.
	w = env.do(t, "GET", "/api/v1/notifications", "c@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode[[]models.Notification](t, w)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "IN_PROGRESS")

	w = env.do(t, "POST", "/api/v1/notifications/"+notes[0].ID+"/read", "c@example.com", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Comment, then read the issue back.
	w = env.do(t, "POST", "/api/v1/issues/"+issue.ID+"/comments", "west@example.com", map[string]string{"text": "Crew dispatched"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, "GET", "/api/v1/issues/"+issue.ID, "c@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Issue](t, w)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "Crew dispatched", got.Comments[0].Text)

	// Mine
	w = env.do(t, "GET", "/api/v1/issues?mine=true", "west@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	// Delete is admin only.
	w = env.do(t, "DELETE", "/api/v1/issues/"+issue.ID, "west@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, "DELETE", "/api/v1/issues/"+issue.ID, "admin@example.com", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, "GET", "/api/v1/issues/"+issue.ID, "c@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminOfficials(t *testing.T) {
	env := setupTestServer(t)
	env.addUser(t, "admin@example.com", models.RoleAdmin, "")
	env.addUser(t, "c@example.com", models.RoleCitizen, "")

	w := env.do(t, "POST", "/api/v1/admin/officials", "admin@example.com", map[string]string{
		"name": "North Officer", "email": "north@example.com", "password": testPassword, "zone": "NORTH",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	official := decode[models.Official](t, w)
	assert.Equal(t, models.ZoneNorth, official.Zone)

	w = env.do(t, "POST", "/api/v1/admin/officials", "admin@example.com", map[string]string{
		"name": "Other", "email": "other@example.com", "password": testPassword, "zone": "NORTH",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "zone_taken", decode[errorBody](t, w).Error)

	w = env.do(t, "GET", "/api/v1/admin/officials", "c@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "GET", "/api/v1/admin/officials", "admin@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Official](t, w), 1)

	w = env.do(t, "DELETE", "/api/v1/admin/officials/"+official.ID, "admin@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unassignedIssues":0}`, w.Body.String())

	w = env.do(t, "DELETE", "/api/v1/admin/officials/"+official.ID, "admin@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminAssignAndUnassigned(t *testing.T) {
	env := setupTestServer(t)
	citizen := env.addUser(t, "c@example.com", models.RoleCitizen, "")
	env.addUser(t, "admin@example.com", models.RoleAdmin, "")
	south := env.addUser(t, "south@example.com", models.RoleRegionalAdmin, models.ZoneSouth)

	w := env.do(t, "POST", "/api/v1/issues", "c@example.com", map[string]any{
		"title": "Garbage", "description": "Not collected", "category": "Garbage & Waste",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	issue := decode[models.Issue](t, w)

	w = env.do(t, "GET", "/api/v1/admin/issues/unassigned", "admin@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Issue](t, w), 1)

	w = env.do(t, "PUT", "/api/v1/admin/issues/"+issue.ID+"/assign", "admin@example.com", map[string]string{"officialId": citizen.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_target", decode[errorBody](t, w).Error)

	w = env.do(t, "PUT", "/api/v1/admin/issues/"+issue.ID+"/assign", "admin@example.com", map[string]string{"officialId": south.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assigned := decode[models.Issue](t, w)
	assert.Equal(t, models.ZoneSouth, assigned.Zone)

	w = env.do(t, "GET", "/api/v1/regional/issues", "south@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Issue](t, w), 1)

	w = env.do(t, "GET", "/api/v1/regional/stats", "south@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.ZoneStats](t, w)
	assert.Equal(t, "SOUTH", stats.Zone)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Pending)

	w = env.do(t, "GET", "/api/v1/regional/stats", "c@example.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "GET", "/api/v1/admin/stats", "admin@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ZoneStats](t, w), len(models.Zones()))
}

func TestMalformedBody(t *testing.T) {
	env := setupTestServer(t)
	env.addUser(t, "c@example.com", models.RoleCitizen, "")

	req := httptest.NewRequest("POST", "/api/v1/issues", bytes.NewBufferString("{not json"))
	req.SetBasicAuth("c@example.com", testPassword)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation", decode[errorBody](t, w).Error)
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestServer(t)
	w := env.do(t, "OPTIONS", "/api/v1/issues", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}
