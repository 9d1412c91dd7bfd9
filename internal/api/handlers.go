package api

import (
	"net/http"
	"strconv"

	"github.com/joescharf/civic/internal/accounts"
	"github.com/joescharf/civic/internal/apperr"
	"github.com/joescharf/civic/internal/category"
	"github.com/joescharf/civic/internal/issues"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/zone"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Accounts ---

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req accounts.UserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	u, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, user *models.User) {
	writeJSON(w, http.StatusOK, user)
}

// --- Zones & categories ---

type zoneInfo struct {
	Zone        models.Zone `json:"zone"`
	Description string      `json:"description"`
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request, _ *models.User) {
	out := make([]zoneInfo, 0, len(models.Zones()))
	for _, z := range models.Zones() {
		out = append(out, zoneInfo{Zone: z, Description: zone.Describe(z)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) classifyZone(w http.ResponseWriter, r *http.Request, _ *models.User) {
	q := r.URL.Query()
	var v apperr.Validator
	lat := parseCoord(&v, "lat", q.Get("lat"))
	lng := parseCoord(&v, "lng", q.Get("lng"))
	if err := v.Err(); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	z := zone.Classify(lat, lng)
	writeJSON(w, http.StatusOK, zoneInfo{Zone: z, Description: zone.Describe(z)})
}

// parseCoord returns nil for an absent value.
func parseCoord(v *apperr.Validator, field, raw string) *float64 {
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		v.Add(field, "must be a number")
		return nil
	}
	return &f
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request, _ *models.User) {
	writeJSON(w, http.StatusOK, category.Categories())
}

func (s *Server) suggestCategory(w http.ResponseWriter, r *http.Request, _ *models.User) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var v apperr.Validator
	v.Require("title", req.Title, "title is required")
	if err := v.Err(); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.suggester.Suggest(r.Context(), req.Title, req.Description))
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request, user *models.User) {
	var (
		list []*models.Issue
		err  error
	)
	if r.URL.Query().Get("mine") == "true" {
		list, err = s.issues.ListMine(r.Context(), user.Actor())
	} else {
		list, err = s.issues.List(r.Context())
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req issues.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	issue, err := s.issues.Create(r.Context(), req, user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request, _ *models.User) {
	issue, err := s.issues.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	status, err := models.ParseIssueStatus(req.Status)
	if err != nil {
		var v apperr.Validator
		v.Add("status", "status must be PENDING, IN_PROGRESS or RESOLVED")
		s.writeAppError(w, r, v.Err())
		return
	}

	issue, err := s.issues.UpdateStatus(r.Context(), r.PathValue("id"), status, user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request, user *models.User) {
	if err := s.issues.Delete(r.Context(), r.PathValue("id"), user.Actor()); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	c, err := s.issues.AddComment(r.Context(), r.PathValue("id"), req.Text, user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// --- Notifications ---

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request, user *models.User) {
	list, err := s.issues.Notifications(r.Context(), user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request, user *models.User) {
	if err := s.issues.MarkNotificationRead(r.Context(), r.PathValue("id"), user.Actor()); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Admin ---

func (s *Server) listOfficials(w http.ResponseWriter, r *http.Request, user *models.User) {
	list, err := s.accounts.ListOfficials(r.Context(), user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (s *Server) createOfficial(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req accounts.UserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	o, err := s.accounts.CreateOfficial(r.Context(), req, user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) removeOfficial(w http.ResponseWriter, r *http.Request, user *models.User) {
	n, err := s.accounts.RemoveOfficial(r.Context(), r.PathValue("id"), user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unassignedIssues": n})
}

func (s *Server) statsByZone(w http.ResponseWriter, r *http.Request, user *models.User) {
	stats, err := s.issues.StatsByZone(r.Context(), user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) listUnassigned(w http.ResponseWriter, r *http.Request, user *models.User) {
	list, err := s.issues.ListUnassigned(r.Context(), user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (s *Server) assignIssue(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req struct {
		OfficialID string `json:"officialId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var v apperr.Validator
	v.Require("officialId", req.OfficialID, "officialId is required")
	if err := v.Err(); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	issue, err := s.issues.Assign(r.Context(), r.PathValue("id"), req.OfficialID, user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// --- Regional dashboard ---

func (s *Server) regionalIssues(w http.ResponseWriter, r *http.Request, user *models.User) {
	list, err := s.issues.ListForOfficial(r.Context(), user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (s *Server) regionalStats(w http.ResponseWriter, r *http.Request, user *models.User) {
	stats, err := s.issues.ZoneStats(r.Context(), user.Actor())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func emptyIfNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
