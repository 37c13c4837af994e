package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/db"
	"github.com/OFFIS-RIT/laddering/backend/internal/queue"
	mid "github.com/OFFIS-RIT/laddering/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/laddering/backend/internal/storage"
	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	rediscache "github.com/OFFIS-RIT/laddering/backend/pkg/cache/redis"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store/memory"
	pgstore "github.com/OFFIS-RIT/laddering/backend/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// New builds the HTTP server around app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)
	return e
}

// Init wires every backend from the environment and serves until SIGINT or
// SIGTERM.
func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &mid.App{
		Parallel:       int(util.GetEnvNumeric("EXTRACT_PARALLEL", 4)),
		MasterAPIKey:   util.GetEnvString("MASTER_API_KEY", ""),
		MasterUserRole: util.GetEnvString("MASTER_USER_ROLE", ""),
	}
	app.MasterUserID, _ = strconv.ParseInt(util.GetEnvString("MASTER_USER_ID", "0"), 10, 64)

	if authURL := util.GetEnvString("AUTH_URL", ""); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("[Server] Failed to load jwks keys", "err", err)
		}
		app.Keyfunc = k.Keyfunc
	} else {
		logger.Warn("[Server] AUTH_URL not set, only the master API key is accepted")
	}

	st, closeStore := openStore(ctx)
	defer closeStore()
	app.Store = st

	switch {
	case util.GetEnvString("RABBITMQ_HOST", "") == "":
		logger.Warn("[Server] RABBITMQ_HOST not set, exports are disabled")
	case !store.Shared(st):
		logger.Warn("[Server] DATABASE_URL not set, exports are disabled because the worker cannot see in-memory interviews")
	default:
		conn := queue.Init()
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("[Server] Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("[Server] Failed to declare queues", "err", err)
		}
		app.Queue = ch
	}

	if util.GetEnvString("AWS_BUCKET", "") != "" {
		bucket, err := storage.NewBucketFromEnv(ctx)
		if err != nil {
			logger.Fatal("[Server] Failed to create s3 client", "err", err)
		}
		app.Files = bucket
	}

	rdb, err := rediscache.NewClientFromEnv(ctx)
	if err != nil {
		logger.Warn("[Server] Redis unavailable, chain results are not cached", "err", err)
	}
	if rdb != nil {
		defer rdb.Close()
		ttl := time.Duration(util.GetEnvNumeric("CHAIN_CACHE_TTL_SECONDS", 3600)) * time.Second
		app.Cache = rediscache.NewResultCache(rdb, ttl)
	}

	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("[Server] Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("[Server] Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Server] Failed to shutdown server", "err", err)
	}
}

func openStore(ctx context.Context) (store.InterviewStorage, func()) {
	dsn := util.GetEnvString("DATABASE_URL", "")
	if dsn == "" {
		logger.Warn("[Server] DATABASE_URL not set, interview graphs are kept in memory")
		return memory.NewInterviewMemoryStorage(), func() {}
	}

	if err := db.Migrate(); err != nil {
		logger.Fatal("[Server] Failed to migrate database", "err", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal("[Server] Failed to connect to database", "err", err)
	}
	return pgstore.NewInterviewDBStorage(pool), pool.Close
}
