package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"aegis/storage"

	"github.com/go-playground/validator/v10"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

// dummyHash keeps login timing stable for unknown usernames.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=12,max=128"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// registerHandler creates a new user account with the default viewer
// role.
func (a *API) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid username or password format", err, a.logger)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.config.Auth.BcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process password", err, a.logger)
		return
	}

	user := &storage.User{
		Username: req.Username,
		Password: string(hash),
		Active:   true,
	}
	if err := a.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicateUser) {
			writeError(w, http.StatusConflict, "Username already taken", nil, a.logger)
			return
		}
		writeError(w, errorStatus(err), "Failed to create user", err, a.logger)
		return
	}

	// New accounts start as viewers. A missing viewer role means the
	// seed did not run; the account still exists, just with no access.
	if viewer, err := a.authz.GetRoleByName(r.Context(), storage.RoleViewer); err == nil {
		if _, err := a.users.AssignRole(r.Context(), user.ID, viewer.ID); err != nil {
			a.logger.Errorf("Failed to assign default role to user %d: %v", user.ID, err)
		}
	} else {
		a.logger.Warnf("Default role %q not found, user %d has no role", storage.RoleViewer, user.ID)
	}

	writeSuccess(w, http.StatusCreated, "User registered", map[string]interface{}{
		"user": user,
	})
}

// loginHandler authenticates a user and issues a JWT. Accounts with MFA
// enabled must supply a valid TOTP code.
func (a *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password are required", err, a.logger)
		return
	}

	user, err := a.users.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		// Burn a bcrypt comparison anyway so response timing does not
		// reveal whether the account exists.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil, a.logger)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		a.logger.Warnf("Failed login attempt for user %q", req.Username)
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil, a.logger)
		return
	}
	if !user.Active {
		writeError(w, http.StatusForbidden, "Account is inactive", nil, a.logger)
		return
	}
	if user.MFAEnabled {
		if req.TOTPCode == "" || !totp.Validate(req.TOTPCode, user.TOTPSecret) {
			writeError(w, http.StatusUnauthorized, "Invalid or missing TOTP code", nil, a.logger)
			return
		}
	}

	roles, err := a.users.GetUserRoles(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user roles", err, a.logger)
		return
	}
	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	token, err := generateJWT(user.ID, user.Username, roleNames, a.config)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err, a.logger)
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", map[string]interface{}{
		"token": token,
		"user":  user,
		"roles": roleNames,
	})
}

// logoutHandler revokes the presented token.
func (a *API) logoutHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := extractTokenFromRequest(r)
	claims, err := validateJWT(tokenString, a.config)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token", err, a.logger)
		return
	}
	a.revocations.Revoke(claims.ID, claims.ExpiresAt.Time)
	writeSuccess(w, http.StatusOK, "Logged out", nil)
}

// meHandler returns the authenticated user and their roles.
func (a *API) meHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil, a.logger)
		return
	}

	user, err := a.users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to load user", err, a.logger)
		return
	}
	roles, err := a.users.GetUserRoles(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user roles", err, a.logger)
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"user":  user,
		"roles": roles,
	})
}

// enableMFAHandler provisions a TOTP secret for the authenticated user
// and returns the otpauth URL for enrollment.
func (a *API) enableMFAHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil, a.logger)
		return
	}

	user, err := a.users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to load user", err, a.logger)
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "aegis",
		AccountName: user.Username,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate TOTP secret", err, a.logger)
		return
	}

	user.TOTPSecret = key.Secret()
	user.MFAEnabled = true
	if err := a.users.UpdateUser(r.Context(), user); err != nil {
		writeError(w, errorStatus(err), "Failed to enable MFA", err, a.logger)
		return
	}

	writeSuccess(w, http.StatusOK, "MFA enabled", map[string]interface{}{
		"otpauth_url": key.URL(),
	})
}
