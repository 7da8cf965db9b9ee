package models

import (
	"slices"

	"github.com/google/uuid"
)

// Principal is the identity attached to an authenticated request
type Principal struct {
	UserID      uuid.UUID // uuid.Nil for synthetic or federated principals without local user
	Username    string
	Email       string
	Authorities []string
}

func (p Principal) HasRole(role Role) bool {
	return slices.Contains(p.Authorities, string(role))
}

func (p Principal) HasAnyRole(roles ...Role) bool {
	return slices.ContainsFunc(roles, p.HasRole)
}
