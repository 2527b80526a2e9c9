package router

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "medical-record-access/docs"
	mem "medical-record-access/internal/adapters/storage/memory"
	pg "medical-record-access/internal/adapters/storage/postgres"
	"medical-record-access/internal/domain/audit"
	"medical-record-access/internal/domain/authz"
	"medical-record-access/internal/domain/grants"
	"medical-record-access/internal/domain/identity"
	"medical-record-access/internal/domain/records"
	"medical-record-access/internal/middleware"
	"medical-record-access/internal/platform/logger"
	"medical-record-access/internal/ports/auth"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Log logger.Logger // puede ser nil; se crea desde env
}

func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	var (
		actorsRepo  identity.Repository
		grantsRepo  grants.Repository
		recordsRepo records.Repository
		auditRepo   audit.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn("postgres unavailable, falling back to memory", map[string]any{"err": err.Error()})
			}
		}
	}

	if db != nil {
		if err := pg.RunMigrations(context.Background(), db, log); err != nil {
			log.Error("migrations failed", map[string]any{"err": err.Error()})
		}
		actorsRepo = pg.NewActorsRepo(db)
		grantsRepo = pg.NewGrantsRepo(db)
		recordsRepo = pg.NewRecordsRepo(db)
		auditRepo = pg.NewAuditRepo(db)
	} else {
		actorsRepo = mem.NewActorsRepo()
		grantsRepo = mem.NewGrantsRepo()
		recordsRepo = mem.NewRecordsRepo()
		auditRepo = mem.NewAuditRepo()
	}

	// Services por módulo
	identitySvc := identity.NewService(actorsRepo)
	auditSvc := audit.NewService(auditRepo, log)
	grantsSvc := grants.NewService(grantsRepo, identitySvc, auditSvc, log)
	recordsSvc := records.NewService(recordsRepo)

	// Toda decisión de acceso a registros pasa por el engine
	engine := authz.NewEngine(grantsSvc)

	// Rutas por módulo
	identity.RegisterRoutes(r, identitySvc)
	grants.RegisterRoutes(r, grantsSvc, identitySvc)
	records.RegisterRoutes(r, recordsSvc, identitySvc, engine, auditSvc)
	audit.RegisterRoutes(r, auditSvc, identitySvc)

	return r
}
