package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	Title          string
	Affiliation    string
	Thumbnail      string
	Roles          []Role
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Role name as stored in roles table, always with "ROLE_" prefix
type Role string

const (
	RolePrefix = "ROLE_"

	RoleAdmin     Role = "ROLE_ADMIN"
	RoleUser      Role = "ROLE_USER"
	RoleEditor    Role = "ROLE_EDITOR"
	RoleModerator Role = "ROLE_MODERATOR"
)

// Roles created on first start
var DefaultRoles = []Role{RoleAdmin, RoleUser, RoleEditor, RoleModerator}

// NormalizeRole adds "ROLE_" prefix if missing
func NormalizeRole(name string) Role {
	if strings.HasPrefix(name, RolePrefix) {
		return Role(name)
	}
	return Role(RolePrefix + name)
}

// Authorities returns normalized role names without duplicates, first occurrence order kept
func Authorities[S ~string](roles []S) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		a := string(NormalizeRole(string(r)))
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}
