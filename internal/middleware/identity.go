package middleware

import "github.com/labstack/echo/v4"

// UserIDKey is the echo context key JWTAuth stores the caller's id under.
const UserIDKey = "user_id"

// CurrentUserID returns the authenticated user's id, or "" on public
// routes.
func CurrentUserID(c echo.Context) string {
	if s, ok := c.Get(UserIDKey).(string); ok {
		return s
	}
	return ""
}
