package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

func HasPermission(user *AppUser, permission string) bool {
	if user == nil {
		return false
	}
	return slices.Contains(user.Permissions, permission)
}

func missingPermissions(user *AppUser, permissions []string) []string {
	var missing []string
	for _, p := range permissions {
		if !HasPermission(user, p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// RequirePermission rejects users that lack any of the given permissions.
func RequirePermission(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			if missing := missingPermissions(user, permissions); len(missing) > 0 {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "Forbidden: missing permission " + strings.Join(missing, ", "),
				})
			}
			return next(c)
		}
	}
}
