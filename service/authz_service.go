package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"aegis/audit"
	"aegis/metrics"
	"aegis/storage"

	"go.uber.org/zap"
)

// PermissionStorage defines permission storage operations needed by the
// authorization service. Defined here, in the consumer package.
type PermissionStorage interface {
	CreatePermission(ctx context.Context, perm *storage.Permission) error
	GetPermissionByID(ctx context.Context, id int64) (*storage.Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*storage.Permission, error)
	ListPermissions(ctx context.Context) ([]storage.Permission, error)
}

// RoleStorage defines role storage operations needed by the
// authorization service.
type RoleStorage interface {
	CreateRole(ctx context.Context, role *storage.Role) error
	GetRoleByID(ctx context.Context, id int64) (*storage.Role, error)
	GetRoleByName(ctx context.Context, name string) (*storage.Role, error)
	ListRoles(ctx context.Context) ([]storage.Role, error)
	UpdateRole(ctx context.Context, role *storage.Role) error
	DeleteRole(ctx context.Context, id int64) error
	AddRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error)
}

// UserRoleStorage defines the user-side operations needed for role
// assignment and permission evaluation.
type UserRoleStorage interface {
	GetUserByID(ctx context.Context, id int64) (*storage.User, error)
	AssignRole(ctx context.Context, userID, roleID int64) (bool, error)
	GetUserRoles(ctx context.Context, userID int64) ([]storage.Role, error)
}

// AuthzService implements the authorization model: permissions, roles,
// role assignment and permission checks. Checks fail closed: any error or
// unknown entity on the evaluation path results in denial.
type AuthzService struct {
	permStorage PermissionStorage
	roleStorage RoleStorage
	userStorage UserRoleStorage
	auditor     audit.Recorder
	logger      *zap.SugaredLogger
}

// NewAuthzService creates the authorization service. All dependencies are
// required.
func NewAuthzService(
	permStorage PermissionStorage,
	roleStorage RoleStorage,
	userStorage UserRoleStorage,
	auditor audit.Recorder,
	logger *zap.SugaredLogger,
) *AuthzService {
	if permStorage == nil || roleStorage == nil || userStorage == nil {
		panic("AuthzService requires permission, role and user storage")
	}
	if auditor == nil {
		panic("AuthzService requires an audit recorder")
	}
	if logger == nil {
		panic("AuthzService requires a logger")
	}
	return &AuthzService{
		permStorage: permStorage,
		roleStorage: roleStorage,
		userStorage: userStorage,
		auditor:     auditor,
		logger:      logger,
	}
}

// CreatePermission registers a new named permission.
func (s *AuthzService) CreatePermission(ctx context.Context, name string) (*storage.Permission, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: permission name is required", storage.ErrInvalidInput)
	}
	perm := &storage.Permission{Name: name}
	if err := s.permStorage.CreatePermission(ctx, perm); err != nil {
		return nil, err
	}
	s.logger.Infof("Created permission %q (id=%d)", perm.Name, perm.ID)
	return perm, nil
}

// ListPermissions returns all registered permissions.
func (s *AuthzService) ListPermissions(ctx context.Context) ([]storage.Permission, error) {
	return s.permStorage.ListPermissions(ctx)
}

// resolvePermissionRefs resolves every reference before anything is
// written. The first unresolvable reference aborts the whole operation.
func (s *AuthzService) resolvePermissionRefs(ctx context.Context, refs []storage.PermissionRef) ([]storage.Permission, error) {
	perms := make([]storage.Permission, 0, len(refs))
	for _, ref := range refs {
		var perm *storage.Permission
		var err error
		if name, ok := ref.ByName(); ok {
			perm, err = s.permStorage.GetPermissionByName(ctx, name)
			if errors.Is(err, storage.ErrPermissionNotFound) {
				return nil, fmt.Errorf("%w: %q", storage.ErrPermissionNotFound, name)
			}
		} else {
			id, _ := ref.ByID()
			perm, err = s.permStorage.GetPermissionByID(ctx, id)
			if errors.Is(err, storage.ErrPermissionNotFound) {
				return nil, fmt.Errorf("%w: id %d", storage.ErrPermissionNotFound, id)
			}
		}
		if err != nil {
			return nil, err
		}
		perms = append(perms, *perm)
	}
	return perms, nil
}

// CreateRole creates a role with an optional initial permission set. All
// permission references must resolve; if any does not, no role is
// created.
func (s *AuthzService) CreateRole(ctx context.Context, name, description string, refs []storage.PermissionRef) (*storage.Role, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", storage.ErrInvalidInput)
	}

	perms, err := s.resolvePermissionRefs(ctx, refs)
	if err != nil {
		return nil, err
	}

	role := &storage.Role{
		Name:        name,
		Description: description,
		Permissions: dedupePermissions(perms),
	}
	if err := s.roleStorage.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	s.logger.Infof("Created role %q (id=%d) with %d permissions", role.Name, role.ID, len(role.Permissions))
	return role, nil
}

// GetRole retrieves a role with its permission set.
func (s *AuthzService) GetRole(ctx context.Context, id int64) (*storage.Role, error) {
	return s.roleStorage.GetRoleByID(ctx, id)
}

// GetRoleByName retrieves a role by its unique name.
func (s *AuthzService) GetRoleByName(ctx context.Context, name string) (*storage.Role, error) {
	return s.roleStorage.GetRoleByName(ctx, name)
}

// ListRoles returns all roles with their permission sets.
func (s *AuthzService) ListRoles(ctx context.Context) ([]storage.Role, error) {
	return s.roleStorage.ListRoles(ctx)
}

// UpdateRole replaces a role's description and permission set. Built-in
// roles cannot be renamed. Permission references are resolved up front;
// any failure leaves the role untouched.
func (s *AuthzService) UpdateRole(ctx context.Context, id int64, name, description string, refs []storage.PermissionRef) (*storage.Role, error) {
	existing, err := s.roleStorage.GetRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if storage.IsBuiltinRole(existing.Name) && name != "" && name != existing.Name {
		return nil, fmt.Errorf("%w: %q cannot be renamed", storage.ErrBuiltinRole, existing.Name)
	}

	perms, err := s.resolvePermissionRefs(ctx, refs)
	if err != nil {
		return nil, err
	}

	if name != "" {
		existing.Name = name
	}
	existing.Description = description
	existing.Permissions = dedupePermissions(perms)

	if err := s.roleStorage.UpdateRole(ctx, existing); err != nil {
		return nil, err
	}

	s.logger.Infof("Updated role %q (id=%d), %d permissions", existing.Name, existing.ID, len(existing.Permissions))
	return existing, nil
}

// DeleteRole removes a role. Built-in roles and roles still assigned to
// users are refused by the storage layer.
func (s *AuthzService) DeleteRole(ctx context.Context, id int64) error {
	return s.roleStorage.DeleteRole(ctx, id)
}

// AddPermissionToRole grants a permission to a role. Returns true if the
// grant is new, false if the role already held the permission.
func (s *AuthzService) AddPermissionToRole(ctx context.Context, roleID int64, ref storage.PermissionRef) (bool, error) {
	perms, err := s.resolvePermissionRefs(ctx, []storage.PermissionRef{ref})
	if err != nil {
		return false, err
	}
	if _, err := s.roleStorage.GetRoleByID(ctx, roleID); err != nil {
		return false, err
	}

	added, err := s.roleStorage.AddRolePermission(ctx, roleID, perms[0].ID)
	if err != nil {
		return false, err
	}
	if added {
		s.logger.Infof("Granted permission %q to role %d", perms[0].Name, roleID)
	}
	return added, nil
}

// AssignRoleToUser assigns a role to a user. Idempotent: assigning an
// already-held role returns false with no error. Both entities must
// exist. Every invocation produces an audit record, including no-ops
// and failures.
func (s *AuthzService) AssignRoleToUser(ctx context.Context, userID, roleID int64) (bool, error) {
	user, err := s.userStorage.GetUserByID(ctx, userID)
	if err != nil {
		metrics.RoleAssignments.WithLabelValues("error").Inc()
		s.recordAssign(strconv.FormatInt(userID, 10), strconv.FormatInt(roleID, 10), audit.OutcomeFailure, err.Error())
		return false, err
	}
	role, err := s.roleStorage.GetRoleByID(ctx, roleID)
	if err != nil {
		metrics.RoleAssignments.WithLabelValues("error").Inc()
		s.recordAssign(user.Username, strconv.FormatInt(roleID, 10), audit.OutcomeFailure, err.Error())
		return false, err
	}

	assigned, err := s.userStorage.AssignRole(ctx, userID, roleID)
	if err != nil {
		metrics.RoleAssignments.WithLabelValues("error").Inc()
		s.recordAssign(user.Username, role.Name, audit.OutcomeFailure, err.Error())
		return false, err
	}

	if assigned {
		metrics.RoleAssignments.WithLabelValues("assigned").Inc()
		s.recordAssign(user.Username, role.Name, audit.OutcomeSuccess, fmt.Sprintf("user %d granted role %d", userID, roleID))
		s.logger.Infof("Assigned role %q to user %q", role.Name, user.Username)
		return true, nil
	}
	metrics.RoleAssignments.WithLabelValues("noop").Inc()
	s.recordAssign(user.Username, role.Name, audit.OutcomeSuccess, "already assigned")
	return false, nil
}

func (s *AuthzService) recordAssign(actor, target string, outcome audit.Outcome, detail string) {
	s.auditor.Record(audit.Entry{
		Actor:   actor,
		Action:  "role.assign",
		Target:  target,
		Outcome: outcome,
		Detail:  detail,
	})
}

// UserRoles returns the roles held by a user, permission sets included.
func (s *AuthzService) UserRoles(ctx context.Context, userID int64) ([]storage.Role, error) {
	if _, err := s.userStorage.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.userStorage.GetUserRoles(ctx, userID)
}

// CheckPermission evaluates whether a user holds a permission through any
// of their roles. The check fails closed: an unknown user, an inactive
// user, an empty role set or a storage error all yield a denial. Only a
// storage error is also surfaced to the caller.
func (s *AuthzService) CheckPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.PermissionCheckDuration.Observe(time.Since(start).Seconds())
	}()

	if permission == "" {
		metrics.PermissionChecks.WithLabelValues("denied").Inc()
		return false, fmt.Errorf("%w: permission name is required", storage.ErrInvalidInput)
	}

	user, err := s.userStorage.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		metrics.PermissionChecks.WithLabelValues("denied").Inc()
		s.recordCheck(strconv.FormatInt(userID, 10), permission, false, "unknown user")
		return false, nil
	}
	if err != nil {
		metrics.PermissionChecks.WithLabelValues("error").Inc()
		return false, err
	}
	if !user.Active {
		metrics.PermissionChecks.WithLabelValues("denied").Inc()
		s.recordCheck(user.Username, permission, false, "inactive user")
		return false, nil
	}

	roles, err := s.userStorage.GetUserRoles(ctx, userID)
	if err != nil {
		metrics.PermissionChecks.WithLabelValues("error").Inc()
		return false, err
	}

	for _, role := range roles {
		if role.HasPermission(permission) {
			metrics.PermissionChecks.WithLabelValues("allowed").Inc()
			s.recordCheck(user.Username, permission, true, "via role "+role.Name)
			return true, nil
		}
	}

	metrics.PermissionChecks.WithLabelValues("denied").Inc()
	s.recordCheck(user.Username, permission, false, "no role grants it")
	return false, nil
}

func (s *AuthzService) recordCheck(actor, permission string, allowed bool, detail string) {
	outcome := audit.OutcomeDenied
	if allowed {
		outcome = audit.OutcomeSuccess
	}
	s.auditor.Record(audit.Entry{
		Actor:   actor,
		Action:  "permission.check",
		Target:  permission,
		Outcome: outcome,
		Detail:  detail,
	})
}

func dedupePermissions(perms []storage.Permission) []storage.Permission {
	seen := make(map[int64]bool, len(perms))
	out := make([]storage.Permission, 0, len(perms))
	for _, p := range perms {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
