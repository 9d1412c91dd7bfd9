package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of actor roles.
type Role string

const (
	RoleCitizen       Role = "CITIZEN"
	RoleRegionalAdmin Role = "REGIONAL_ADMIN"
	RoleAdmin         Role = "ADMIN"
)

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleCitizen, RoleRegionalAdmin, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// User is a registered account: a citizen, a regional official, or an administrator.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Zone         Zone      `json:"zone,omitempty"` // only meaningful for REGIONAL_ADMIN
	CreatedAt    time.Time `json:"createdAt"`
}

// Actor returns the identity used for authorization decisions.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role, Zone: u.Zone}
}

// Actor is the caller of a core operation. It is always passed explicitly.
type Actor struct {
	ID   string
	Role Role
	Zone Zone
}

// OperatorActor is the identity used by the local CLI when no user is selected.
func OperatorActor() Actor {
	return Actor{ID: "operator", Role: RoleAdmin}
}

// Official is a regional official with counters for their zone.
type Official struct {
	User
	ZoneDescription string `json:"zoneDescription"`
	TotalIssues     int    `json:"totalIssues"`
	PendingIssues   int    `json:"pendingIssues"`
	ResolvedIssues  int    `json:"resolvedIssues"`
}
