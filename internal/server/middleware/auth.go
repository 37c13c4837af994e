package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	PermissionInterviewRead   = "interview.read"
	PermissionInterviewWrite  = "interview.write"
	PermissionInterviewExport = "interview.export"
)

var allPermissions = []string{
	PermissionInterviewRead,
	PermissionInterviewWrite,
	PermissionInterviewExport,
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "Unauthorized")
		}

		ac := c.(*AppContext)
		app := ac.App

		// Master API Key bypass
		if app.MasterAPIKey != "" && app.MasterUserID != 0 && app.MasterUserRole != "" && token == app.MasterAPIKey {
			ac.User = &AppUser{
				UserID:      app.MasterUserID,
				Role:        app.MasterUserRole,
				Permissions: allPermissions,
			}
			return next(c)
		}

		if app.Keyfunc == nil {
			return unauthorized(c, "Unauthorized")
		}
		parsed, err := jwt.Parse(token, app.Keyfunc)
		if err != nil || !parsed.Valid {
			return unauthorized(c, "Unauthorized")
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Unauthorized")
		}

		var userID int64
		switch id := claims["id"].(type) {
		case string:
			userID, err = strconv.ParseInt(id, 10, 64)
			if err != nil {
				return unauthorized(c, "Invalid user ID")
			}
		case float64:
			userID = int64(id)
		default:
			return unauthorized(c, "Invalid user ID")
		}

		role := "user"
		if r, ok := claims["role"].(string); ok {
			role = r
		}

		var permissions []string
		if perms, ok := claims["permissions"].([]any); ok {
			for _, p := range perms {
				if s, ok := p.(string); ok {
					permissions = append(permissions, s)
				}
			}
		}
		if role == "admin" && len(permissions) == 0 {
			permissions = allPermissions
		}

		ac.User = &AppUser{
			UserID:      userID,
			Role:        role,
			Permissions: permissions,
		}
		return next(c)
	}
}
