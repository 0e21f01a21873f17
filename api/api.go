package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"aegis/config"
	"aegis/core"
	"aegis/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Authorizer defines the authorization operations the API depends on.
// Defined here, in the consumer package.
type Authorizer interface {
	CreatePermission(ctx context.Context, name string) (*storage.Permission, error)
	ListPermissions(ctx context.Context) ([]storage.Permission, error)
	CreateRole(ctx context.Context, name, description string, refs []storage.PermissionRef) (*storage.Role, error)
	GetRole(ctx context.Context, id int64) (*storage.Role, error)
	GetRoleByName(ctx context.Context, name string) (*storage.Role, error)
	ListRoles(ctx context.Context) ([]storage.Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string, refs []storage.PermissionRef) (*storage.Role, error)
	DeleteRole(ctx context.Context, id int64) error
	AddPermissionToRole(ctx context.Context, roleID int64, ref storage.PermissionRef) (bool, error)
	AssignRoleToUser(ctx context.Context, userID, roleID int64) (bool, error)
	UserRoles(ctx context.Context, userID int64) ([]storage.Role, error)
	CheckPermission(ctx context.Context, userID int64, permission string) (bool, error)
}

// UserStore defines the user operations needed by the auth handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user *storage.User) error
	GetUserByID(ctx context.Context, id int64) (*storage.User, error)
	GetUserByUsername(ctx context.Context, username string) (*storage.User, error)
	UpdateUser(ctx context.Context, user *storage.User) error
	AssignRole(ctx context.Context, userID, roleID int64) (bool, error)
	GetUserRoles(ctx context.Context, userID int64) ([]storage.Role, error)
}

// IncidentManager defines the incident operations the API depends on.
type IncidentManager interface {
	ValidatePayload(payload []byte) error
	CreateIncident(ctx context.Context, title, description, userID string, detectedAt time.Time) (*core.Incident, error)
	GetIncident(ctx context.Context, id string) (*core.Incident, error)
	ListIncidents(ctx context.Context, status core.IncidentStatus, limit, offset int) ([]core.Incident, error)
	TransitionIncident(ctx context.Context, id string, to core.IncidentStatus) (*core.Incident, error)
}

// NotificationManager defines the notification operations the API
// depends on.
type NotificationManager interface {
	CreateNotification(ctx context.Context, message, recipient string) (*core.Notification, error)
	GetNotification(ctx context.Context, id string) (*core.Notification, error)
	ListNotifications(ctx context.Context, recipient string, limit, offset int) ([]core.Notification, error)
	Send(ctx context.Context, id string) (*core.Notification, error)
}

// PlaybookManager defines the playbook operations the API depends on.
type PlaybookManager interface {
	CreatePlaybook(ctx context.Context, playbook *core.Playbook) (*core.Playbook, error)
	GetPlaybook(ctx context.Context, id string) (*core.Playbook, error)
	ListPlaybooks(ctx context.Context) ([]core.Playbook, error)
	UpdatePlaybook(ctx context.Context, id string, playbook *core.Playbook) (*core.Playbook, error)
	DeletePlaybook(ctx context.Context, id string) error
	Execute(ctx context.Context, playbookID, triggeredBy, incidentID string) (*core.PlaybookExecution, error)
	GetExecution(ctx context.Context, id string) (*core.PlaybookExecution, error)
	ListExecutions(ctx context.Context, playbookID string) ([]core.PlaybookExecution, error)
	ExportYAML(ctx context.Context, id string) ([]byte, error)
	ImportYAML(ctx context.Context, data []byte) (*core.Playbook, error)
}

// Recommender produces ranked recommendations for incidents.
type Recommender interface {
	Recommend(ctx context.Context, req *core.RecommendationRequest, incidents []core.Incident) (*core.Recommendation, error)
}

// API is the HTTP server.
type API struct {
	router         *mux.Router
	server         *http.Server
	authz          Authorizer
	users          UserStore
	incidents      IncidentManager
	notifications  NotificationManager
	playbooks      PlaybookManager
	recommender    Recommender
	config         *config.Config
	logger         *zap.SugaredLogger
	revocations    *revocationList
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
}

// NewAPI creates a new API server.
func NewAPI(
	authz Authorizer,
	users UserStore,
	incidents IncidentManager,
	notifications NotificationManager,
	playbooks PlaybookManager,
	recommender Recommender,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *API {
	a := &API{
		router:        mux.NewRouter(),
		authz:         authz,
		users:         users,
		incidents:     incidents,
		notifications: notifications,
		playbooks:     playbooks,
		recommender:   recommender,
		config:        cfg,
		logger:        logger,
		revocations:   newRevocationList(),
		rateLimiters:  make(map[string]*rateLimiterEntry),
		stopCh:        make(chan struct{}),
	}
	a.setupRoutes()
	go a.cleanupRateLimiters()
	return a
}

func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)
	a.router.Use(a.metricsMiddleware)

	a.router.HandleFunc("/health", a.healthHandler).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	a.router.HandleFunc("/api/auth/register", a.registerHandler).Methods("POST")
	a.router.HandleFunc("/api/auth/login", a.loginHandler).Methods("POST")

	authed := a.router.PathPrefix("/api").Subrouter()
	authed.Use(a.authMiddleware)

	authed.HandleFunc("/auth/logout", a.logoutHandler).Methods("POST")
	authed.HandleFunc("/auth/me", a.meHandler).Methods("GET")
	authed.HandleFunc("/auth/mfa/enable", a.enableMFAHandler).Methods("POST")

	authed.HandleFunc("/permissions", a.requirePermission(storage.PermWriteRoles, a.createPermissionHandler)).Methods("POST")
	authed.HandleFunc("/permissions", a.requirePermission(storage.PermReadRoles, a.listPermissionsHandler)).Methods("GET")

	authed.HandleFunc("/roles", a.requirePermission(storage.PermWriteRoles, a.createRoleHandler)).Methods("POST")
	authed.HandleFunc("/roles", a.requirePermission(storage.PermReadRoles, a.listRolesHandler)).Methods("GET")
	authed.HandleFunc("/roles/{id:[0-9]+}", a.requirePermission(storage.PermReadRoles, a.getRoleHandler)).Methods("GET")
	authed.HandleFunc("/roles/{id:[0-9]+}", a.requirePermission(storage.PermWriteRoles, a.updateRoleHandler)).Methods("PUT")
	authed.HandleFunc("/roles/{id:[0-9]+}", a.requirePermission(storage.PermWriteRoles, a.deleteRoleHandler)).Methods("DELETE")
	authed.HandleFunc("/roles/{id:[0-9]+}/permissions", a.requirePermission(storage.PermWriteRoles, a.addRolePermissionHandler)).Methods("POST")

	authed.HandleFunc("/assign-role", a.requirePermission(storage.PermWriteUsers, a.assignRoleHandler)).Methods("POST")
	authed.HandleFunc("/check-permission", a.requirePermission(storage.PermReadRoles, a.checkPermissionHandler)).Methods("GET")
	authed.HandleFunc("/users/{id:[0-9]+}/roles", a.requirePermission(storage.PermReadUsers, a.userRolesHandler)).Methods("GET")

	authed.HandleFunc("/incidents", a.requirePermission(storage.PermWriteIncidents, a.createIncidentHandler)).Methods("POST")
	authed.HandleFunc("/incidents", a.requirePermission(storage.PermReadIncidents, a.listIncidentsHandler)).Methods("GET")
	authed.HandleFunc("/incidents/{id}", a.requirePermission(storage.PermReadIncidents, a.getIncidentHandler)).Methods("GET")
	authed.HandleFunc("/incidents/{id}/status", a.requirePermission(storage.PermWriteIncidents, a.updateIncidentStatusHandler)).Methods("PUT")

	authed.HandleFunc("/notifications", a.requirePermission(storage.PermWriteNotifications, a.createNotificationHandler)).Methods("POST")
	authed.HandleFunc("/notifications", a.requirePermission(storage.PermReadNotifications, a.listNotificationsHandler)).Methods("GET")
	authed.HandleFunc("/notifications/{id}", a.requirePermission(storage.PermReadNotifications, a.getNotificationHandler)).Methods("GET")
	authed.HandleFunc("/notifications/{id}/send", a.requirePermission(storage.PermWriteNotifications, a.sendNotificationHandler)).Methods("POST")

	authed.HandleFunc("/recommendations", a.requirePermission(storage.PermReadRecommendations, a.recommendationsHandler)).Methods("POST")

	authed.HandleFunc("/playbooks", a.requirePermission(storage.PermWritePlaybooks, a.createPlaybookHandler)).Methods("POST")
	authed.HandleFunc("/playbooks", a.requirePermission(storage.PermReadPlaybooks, a.listPlaybooksHandler)).Methods("GET")
	authed.HandleFunc("/playbooks/import", a.requirePermission(storage.PermWritePlaybooks, a.importPlaybookHandler)).Methods("POST")
	authed.HandleFunc("/playbooks/{id}", a.requirePermission(storage.PermReadPlaybooks, a.getPlaybookHandler)).Methods("GET")
	authed.HandleFunc("/playbooks/{id}", a.requirePermission(storage.PermWritePlaybooks, a.updatePlaybookHandler)).Methods("PUT")
	authed.HandleFunc("/playbooks/{id}", a.requirePermission(storage.PermWritePlaybooks, a.deletePlaybookHandler)).Methods("DELETE")
	authed.HandleFunc("/playbooks/{id}/export", a.requirePermission(storage.PermReadPlaybooks, a.exportPlaybookHandler)).Methods("GET")
	authed.HandleFunc("/playbooks/{id}/execute", a.requirePermission(storage.PermExecutePlaybooks, a.executePlaybookHandler)).Methods("POST")
	authed.HandleFunc("/playbooks/{id}/executions", a.requirePermission(storage.PermReadPlaybooks, a.listExecutionsHandler)).Methods("GET")
}

func (a *API) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start starts the HTTP server.
func (a *API) Start() error {
	addr := fmt.Sprintf("%s:%d", a.config.API.Host, a.config.API.Port)
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	a.logger.Infof("API server listening on %s", addr)
	if a.config.API.TLS {
		return a.server.ListenAndServeTLS(a.config.API.CertFile, a.config.API.KeyFile)
	}
	return a.server.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (a *API) Stop(ctx context.Context) error {
	close(a.stopCh)
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Router exposes the router for tests.
func (a *API) Router() *mux.Router {
	return a.router
}
