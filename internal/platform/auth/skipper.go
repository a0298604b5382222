package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths reachable without a bearer token: health
// checks and the account endpoints a doctor needs before holding a token.
var publicPaths = map[string]bool{
	"/health":                       true,
	"/health/db":                    true,
	"/api/auth/register":            true,
	"/api/auth/login":               true,
	"/api/auth/verify-email":        true,
	"/api/auth/resend-verification": true,
}

// AuthSkipper returns true for requests whose matched route should skip
// authentication. It is the Skipper passed to JWTMiddleware.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the given route path bypasses auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
