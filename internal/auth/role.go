// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth

import (
	"sync"

	"github.com/samber/oops"
)

// Role is the authorization role carried by a user and embedded in tokens.
type Role string

// Built-in roles.
const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// DefaultRole is assigned to users created through registration.
const DefaultRole = RoleAdmin

var (
	rolesMu sync.RWMutex
	roles   = map[Role]struct{}{
		RoleAdmin:  {},
		RoleEditor: {},
		RoleViewer: {},
	}
)

// RegisterRole adds a role to the set accepted by ParseRole.
// It is intended to be called during start-up, before tokens are verified.
func RegisterRole(r Role) error {
	if r == "" {
		return oops.Code("ROLE_INVALID").Errorf("role cannot be empty")
	}
	rolesMu.Lock()
	defer rolesMu.Unlock()
	roles[r] = struct{}{}
	return nil
}

// ParseRole returns the Role named by s, or an error if it is not registered.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", oops.Code("ROLE_INVALID").With("role", s).Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is a registered role.
func (r Role) Valid() bool {
	rolesMu.RLock()
	defer rolesMu.RUnlock()
	_, ok := roles[r]
	return ok
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}
