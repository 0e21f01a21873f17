package storage

import "errors"

// Storage error constants
var (
	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrRoleNotFound is returned when a role is not found
	ErrRoleNotFound = errors.New("role not found")

	// ErrPermissionNotFound is returned when a permission is not found
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrDuplicateRole is returned when a role with the same name already exists
	ErrDuplicateRole = errors.New("role already exists")

	// ErrDuplicatePermission is returned when a permission with the same name already exists
	ErrDuplicatePermission = errors.New("permission already exists")

	// ErrDuplicateUser is returned when a user with the same username already exists
	ErrDuplicateUser = errors.New("user already exists")

	// ErrRoleInUse is returned when deleting a role that is still assigned to users
	ErrRoleInUse = errors.New("role is assigned to one or more users")

	// ErrBuiltinRole is returned when mutating or deleting a built-in role
	ErrBuiltinRole = errors.New("built-in role cannot be modified")

	// ErrIncidentNotFound is returned when an incident is not found
	ErrIncidentNotFound = errors.New("incident not found")

	// ErrNotificationNotFound is returned when a notification is not found
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrPlaybookNotFound is returned when a playbook is not found
	ErrPlaybookNotFound = errors.New("playbook not found")

	// ErrPlaybookNameExists is returned when a playbook with the same name already exists
	ErrPlaybookNameExists = errors.New("playbook with this name already exists")

	// ErrExecutionNotFound is returned when a playbook execution is not found
	ErrExecutionNotFound = errors.New("playbook execution not found")

	// Generic storage errors

	// ErrNotFound is a generic "not found" error
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails before any write
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented is returned when a method is not implemented
	ErrNotImplemented = errors.New("not implemented")
)
