package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Permission represents an atomic named capability. Permissions are
// explicit entities (not free-form strings) so roles can share them and
// the registry can enforce name uniqueness.
type Permission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Role represents a named, reusable bundle of permissions.
// The permission set never contains duplicates; AddRolePermission is a
// no-op (returning false) when the permission is already present.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasPermission checks if the role grants a permission by name.
func (r *Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

// PermissionRef is a tagged reference to a permission, either by ID or by
// name. The wire format accepts a JSON number (ID) or string (name), so
// existing clients that post `"permissions": [1, "incidents:read"]` keep
// working without duck typing inside the registry.
type PermissionRef struct {
	id     int64
	name   string
	byName bool
}

// PermissionRefByID creates a reference to a permission by its ID.
func PermissionRefByID(id int64) PermissionRef {
	return PermissionRef{id: id}
}

// PermissionRefByName creates a reference to a permission by its unique name.
func PermissionRefByName(name string) PermissionRef {
	return PermissionRef{name: name, byName: true}
}

// ByName reports whether the reference resolves by name, returning the name.
func (r PermissionRef) ByName() (string, bool) {
	return r.name, r.byName
}

// ByID reports whether the reference resolves by ID, returning the ID.
func (r PermissionRef) ByID() (int64, bool) {
	return r.id, !r.byName
}

// String renders the reference for error messages and audit records.
func (r PermissionRef) String() string {
	if r.byName {
		return r.name
	}
	return strconv.FormatInt(r.id, 10)
}

// UnmarshalJSON accepts either a JSON number (permission ID) or a JSON
// string (permission name).
func (r *PermissionRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = PermissionRefByName(name)
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		*r = PermissionRefByID(id)
		return nil
	}
	return fmt.Errorf("permission reference must be a string name or numeric id, got %s", string(data))
}

// MarshalJSON emits the name for by-name refs and the number for by-ID refs.
func (r PermissionRef) MarshalJSON() ([]byte, error) {
	if r.byName {
		return json.Marshal(r.name)
	}
	return json.Marshal(r.id)
}

// User represents a user identity known to the platform.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // bcrypt hash, never returned in JSON
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// TOTP second factor
	TOTPSecret string `json:"-"`
	MFAEnabled bool   `json:"mfa_enabled,omitempty"`
}

// Built-in role names seeded on first startup.
const (
	RoleViewer  = "viewer"
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
)

// Default permission names. The catalogue is seeded at startup; further
// permissions are created through the registry at runtime.
const (
	PermReadIncidents       = "incidents:read"
	PermWriteIncidents      = "incidents:write"
	PermReadPlaybooks       = "playbooks:read"
	PermWritePlaybooks      = "playbooks:write"
	PermExecutePlaybooks    = "playbooks:execute"
	PermReadNotifications   = "notifications:read"
	PermWriteNotifications  = "notifications:write"
	PermReadRecommendations = "recommendations:read"
	PermReadRoles           = "roles:read"
	PermWriteRoles          = "roles:write"
	PermReadUsers           = "users:read"
	PermWriteUsers          = "users:write"
	PermAdminSystem         = "system:admin"
)

// DefaultPermissions returns the seed permission catalogue.
func DefaultPermissions() []string {
	return []string{
		PermReadIncidents,
		PermWriteIncidents,
		PermReadPlaybooks,
		PermWritePlaybooks,
		PermExecutePlaybooks,
		PermReadNotifications,
		PermWriteNotifications,
		PermReadRecommendations,
		PermReadRoles,
		PermWriteRoles,
		PermReadUsers,
		PermWriteUsers,
		PermAdminSystem,
	}
}

// DefaultRolePermissions returns the permission names granted to each
// built-in role.
func DefaultRolePermissions() map[string][]string {
	return map[string][]string{
		RoleViewer: {
			PermReadIncidents,
			PermReadPlaybooks,
			PermReadNotifications,
			PermReadRecommendations,
		},
		RoleAnalyst: {
			PermReadIncidents,
			PermWriteIncidents,
			PermReadPlaybooks,
			PermExecutePlaybooks,
			PermReadNotifications,
			PermWriteNotifications,
			PermReadRecommendations,
		},
		RoleAdmin: {
			PermReadIncidents,
			PermWriteIncidents,
			PermReadPlaybooks,
			PermWritePlaybooks,
			PermExecutePlaybooks,
			PermReadNotifications,
			PermWriteNotifications,
			PermReadRecommendations,
			PermReadRoles,
			PermWriteRoles,
			PermReadUsers,
			PermWriteUsers,
			PermAdminSystem,
		},
	}
}

// IsBuiltinRole reports whether the role name is one of the seeded roles.
func IsBuiltinRole(name string) bool {
	return name == RoleViewer || name == RoleAnalyst || name == RoleAdmin
}

// PermissionStorage defines permission registry persistence.
type PermissionStorage interface {
	CreatePermission(ctx context.Context, perm *Permission) error
	GetPermissionByID(ctx context.Context, id int64) (*Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// RoleStorage defines role persistence. CreateRole and UpdateRole persist
// the role together with its permission set in one transaction.
type RoleStorage interface {
	CreateRole(ctx context.Context, role *Role) error
	GetRoleByID(ctx context.Context, id int64) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, id int64) error

	// AddRolePermission links a permission to a role. Returns true when
	// the permission was newly added, false when it was already present.
	AddRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error)

	// CountAssignments returns how many users currently hold the role.
	CountAssignments(ctx context.Context, roleID int64) (int64, error)
}

// UserStorage defines user persistence and the user-role assignment
// relation. Assignments are a join owned by the authorization service,
// not by either entity.
type UserStorage interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUser(ctx context.Context, user *User) error

	// AssignRole links a role to a user. Returns true when the
	// assignment was newly created, false when it already existed
	// (idempotent, not an error).
	AssignRole(ctx context.Context, userID, roleID int64) (bool, error)

	// GetUserRoles returns all roles assigned to the user with their
	// permission sets loaded.
	GetUserRoles(ctx context.Context, userID int64) ([]Role, error)
}
