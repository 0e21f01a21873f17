package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"aegis/storage"

	"github.com/gorilla/mux"
)

type createPermissionRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// createPermissionHandler registers a new named permission.
func (a *API) createPermissionHandler(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Permission name is required", err, a.logger)
		return
	}

	perm, err := a.authz.CreatePermission(r.Context(), req.Name)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to create permission: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusCreated, "Permission created", map[string]interface{}{
		"permission": perm,
	})
}

// listPermissionsHandler returns the permission catalogue.
func (a *API) listPermissionsHandler(w http.ResponseWriter, r *http.Request) {
	perms, err := a.authz.ListPermissions(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list permissions", err, a.logger)
		return
	}
	if perms == nil {
		perms = []storage.Permission{}
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"permissions": perms,
	})
}

type roleRequest struct {
	Name        string                  `json:"name" validate:"required,min=1,max=50"`
	Description string                  `json:"description" validate:"max=500"`
	Permissions []storage.PermissionRef `json:"permissions"`
}

// createRoleHandler creates a role. Permissions may be referenced by
// name (string) or ID (number); any unresolvable reference fails the
// whole request and nothing is created.
func (a *API) createRoleHandler(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role definition", err, a.logger)
		return
	}

	role, err := a.authz.CreateRole(r.Context(), req.Name, req.Description, req.Permissions)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to create role: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusCreated, "Role created", map[string]interface{}{
		"role": role,
	})
}

// listRolesHandler returns all roles with their permission sets.
func (a *API) listRolesHandler(w http.ResponseWriter, r *http.Request) {
	roles, err := a.authz.ListRoles(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list roles", err, a.logger)
		return
	}
	if roles == nil {
		roles = []storage.Role{}
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"roles": roles,
	})
}

func rolePathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// getRoleHandler retrieves a single role.
func (a *API) getRoleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := rolePathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role ID", err, a.logger)
		return
	}

	role, err := a.authz.GetRole(r.Context(), id)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to get role", err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"role": role,
	})
}

// updateRoleHandler replaces a role's description and permission set.
func (a *API) updateRoleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := rolePathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role ID", err, a.logger)
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}

	role, err := a.authz.UpdateRole(r.Context(), id, req.Name, req.Description, req.Permissions)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to update role: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "Role updated", map[string]interface{}{
		"role": role,
	})
}

// deleteRoleHandler removes a role. Built-in roles and roles still
// assigned to users are refused.
func (a *API) deleteRoleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := rolePathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role ID", err, a.logger)
		return
	}

	if err := a.authz.DeleteRole(r.Context(), id); err != nil {
		writeError(w, errorStatus(err), "Failed to delete role: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "Role deleted", nil)
}

type addPermissionRequest struct {
	Permission storage.PermissionRef `json:"permission"`
}

// addRolePermissionHandler grants one permission to a role. The added
// field reports whether the grant was new.
func (a *API) addRolePermissionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := rolePathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role ID", err, a.logger)
		return
	}

	var req addPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}

	added, err := a.authz.AddPermissionToRole(r.Context(), id, req.Permission)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to add permission: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "Permission processed", map[string]interface{}{
		"added": added,
	})
}

type assignRoleRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

// assignRoleHandler assigns a role to a user. Assigning an already-held
// role succeeds with assigned=false.
func (a *API) assignRoleHandler(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "user_id and role_id are required", err, a.logger)
		return
	}

	assigned, err := a.authz.AssignRoleToUser(r.Context(), req.UserID, req.RoleID)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to assign role: "+err.Error(), err, a.logger)
		return
	}

	message := "Role assigned"
	if !assigned {
		message = "Role already assigned"
	}
	writeSuccess(w, http.StatusOK, message, map[string]interface{}{
		"assigned": assigned,
	})
}

// checkPermissionHandler evaluates whether a user holds a permission.
// An unknown user is not an error: the check simply reports denial.
func (a *API) checkPermissionHandler(w http.ResponseWriter, r *http.Request) {
	userIDParam := r.URL.Query().Get("user_id")
	permission := r.URL.Query().Get("permission")
	if userIDParam == "" || permission == "" {
		writeError(w, http.StatusBadRequest, "user_id and permission query parameters are required", nil, a.logger)
		return
	}
	userID, err := strconv.ParseInt(userIDParam, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "user_id must be an integer", err, a.logger)
		return
	}

	allowed, err := a.authz.CheckPermission(r.Context(), userID, permission)
	if err != nil {
		writeError(w, errorStatus(err), "Permission check failed", err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"user_id":    userID,
		"permission": permission,
		"allowed":    allowed,
	})
}

// userRolesHandler lists the roles held by a user.
func (a *API) userRolesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID", err, a.logger)
		return
	}

	roles, err := a.authz.UserRoles(r.Context(), id)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list user roles", err, a.logger)
		return
	}
	if roles == nil {
		roles = []storage.Role{}
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"roles": roles,
	})
}
