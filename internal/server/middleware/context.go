package middleware

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/queue"
	rediscache "github.com/OFFIS-RIT/laddering/backend/pkg/cache/redis"
	"github.com/OFFIS-RIT/laddering/backend/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// DownloadLinker presigns download links for stored export files.
type DownloadLinker interface {
	GenerateDownloadLink(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type App struct {
	Store   store.InterviewStorage
	Queue   queue.Channel
	Keyfunc jwt.Keyfunc
	Files   DownloadLinker
	Cache   *rediscache.ResultCache

	// Parallel bounds concurrent extractions of a batch request.
	Parallel int

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
