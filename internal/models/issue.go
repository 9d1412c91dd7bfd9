package models

import (
	"fmt"
	"strings"
	"time"
)

// IssueStatus represents the state of a civic issue.
type IssueStatus string

const (
	IssueStatusPending    IssueStatus = "PENDING"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
)

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusPending, IssueStatusInProgress, IssueStatusResolved:
		return true
	}
	return false
}

// ParseIssueStatus parses a status name case-insensitively.
// Dashes and spaces are accepted in place of underscores ("in-progress").
func ParseIssueStatus(s string) (IssueStatus, error) {
	norm := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToUpper(strings.TrimSpace(s)))
	st := IssueStatus(norm)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status: %q", s)
	}
	return st, nil
}

// Issue is a civic problem reported by a citizen.
type Issue struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	Status      IssueStatus `json:"status"`
	Latitude    *float64    `json:"latitude,omitempty"`
	Longitude   *float64    `json:"longitude,omitempty"`
	CreatedBy   string      `json:"createdBy"`
	Zone        Zone        `json:"zone"`
	AssignedTo  *string     `json:"assignedTo,omitempty"` // nil = unassigned
	Comments    []Comment   `json:"comments"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// IsAssignedTo reports whether the issue is bound to the given official.
func (i *Issue) IsAssignedTo(userID string) bool {
	return i.AssignedTo != nil && *i.AssignedTo == userID
}

// Comment is a note attached to an issue. Comments are deleted with their issue.
type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issueId"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// ZoneStats summarizes issue counts for a zone dashboard.
type ZoneStats struct {
	Zone        string `json:"zone"`
	Description string `json:"zoneDesc"`
	Total       int    `json:"total"`
	Pending     int    `json:"pending"`
	InProgress  int    `json:"inProgress"`
	Resolved    int    `json:"resolved"`
}

// Add counts issue into the summary.
func (s *ZoneStats) Add(issue *Issue) {
	s.Total++
	switch issue.Status {
	case IssueStatusPending:
		s.Pending++
	case IssueStatusInProgress:
		s.InProgress++
	case IssueStatusResolved:
		s.Resolved++
	}
}
