package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"condor-raat/api/handlers"
	"condor-raat/config"
	"condor-raat/core/auth"
	"condor-raat/core/raat"
	"condor-raat/core/rbac"
	"condor-raat/core/store"
	"condor-raat/core/utils"
	"condor-raat/core/workers"
)

type Server struct {
	cfg      *config.AppConfig
	db       *sql.DB
	users    store.UsersStore
	sessions *auth.SessionManager
	policy   *rbac.Policy
	audits   store.AuditStore
	raatSvc  *raat.Service
	workers  *workers.Service
	logger   *utils.Logger

	loginLimiter *requestLimiter
}

type ServerDeps struct {
	Cfg      *config.AppConfig
	DB       *sql.DB
	Users    store.UsersStore
	Sessions *auth.SessionManager
	Policy   *rbac.Policy
	Audits   store.AuditStore
	RAAT     *raat.Service
	Workers  *workers.Service
	Logger   *utils.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		cfg:          deps.Cfg,
		db:           deps.DB,
		users:        deps.Users,
		sessions:     deps.Sessions,
		policy:       deps.Policy,
		audits:       deps.Audits,
		raatSvc:      deps.RAAT,
		workers:      deps.Workers,
		logger:       deps.Logger,
		loginLimiter: newLimiter(10, loginLimiterRefill),
	}
}

func (s *Server) Router() http.Handler {
	authH := handlers.NewAuthHandler(s.cfg, s.users, s.sessions, s.audits, s.logger)
	incidents := handlers.NewIncidentsHandler(s.raatSvc, s.logger)
	workersH := handlers.NewWorkersHandler(s.workers)
	audit := handlers.NewAuditHandler(s.audits)

	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.MethodFunc(http.MethodGet, "/api/health", s.handleHealth)

	r.Route("/api/auth", func(authRouter chi.Router) {
		authRouter.MethodFunc(http.MethodPost, "/login", s.loginRateLimit(authH.Login))
		authRouter.MethodFunc(http.MethodPost, "/logout", s.withSession(authH.Logout))
		authRouter.MethodFunc(http.MethodGet, "/me", s.withSession(authH.Me))
	})

	require := s.requirePermission
	r.Route("/api/raat", func(raatRouter chi.Router) {
		raatRouter.MethodFunc(http.MethodGet, "/incidents", s.withSession(require(rbac.PermRAATView)(incidents.List)))
		raatRouter.MethodFunc(http.MethodPost, "/incidents", s.withSession(require(rbac.PermRAATManage)(incidents.Create)))
		raatRouter.MethodFunc(http.MethodGet, "/incidents/{id:[0-9]+}", s.withSession(require(rbac.PermRAATView)(incidents.Get)))
		raatRouter.MethodFunc(http.MethodPut, "/incidents/{id:[0-9]+}", s.withSession(require(rbac.PermRAATManage)(incidents.Update)))
		raatRouter.MethodFunc(http.MethodPost, "/incidents/{id:[0-9]+}/close", s.withSession(require(rbac.PermRAATManage)(incidents.Close)))
		raatRouter.MethodFunc(http.MethodPost, "/incidents/{id:[0-9]+}/notification", s.withSession(require(rbac.PermRAATManage)(incidents.MarkNotificationSent)))
		raatRouter.MethodFunc(http.MethodGet, "/incidents/{id:[0-9]+}/attachments", s.withSession(require(rbac.PermRAATView)(incidents.ListAttachments)))
		raatRouter.MethodFunc(http.MethodPost, "/incidents/{id:[0-9]+}/attachments", s.withSession(require(rbac.PermRAATManage)(incidents.AddAttachment)))
		raatRouter.MethodFunc(http.MethodGet, "/attachments/{att_id:[0-9]+}/download", s.withSession(require(rbac.PermRAATView)(incidents.DownloadAttachment)))
		raatRouter.MethodFunc(http.MethodDelete, "/attachments/{att_id:[0-9]+}", s.withSession(require(rbac.PermAttachmentsManage)(incidents.DeleteAttachment)))
		raatRouter.MethodFunc(http.MethodGet, "/statistics", s.withSession(require(rbac.PermRAATView)(incidents.Statistics)))
	})

	r.Route("/api/workers", func(workersRouter chi.Router) {
		workersRouter.MethodFunc(http.MethodGet, "/", s.withSession(require(rbac.PermWorkersView)(workersH.List)))
		workersRouter.MethodFunc(http.MethodGet, "/{id:[0-9]+}", s.withSession(require(rbac.PermWorkersView)(workersH.Get)))
	})

	r.MethodFunc(http.MethodGet, "/api/audit", s.withSession(require(rbac.PermAuditView)(audit.List)))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "db": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
