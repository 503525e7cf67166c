package auth

import (
	"github.com/labstack/echo/v4"
)

// Infrastructure endpoints reachable without credentials or a clinic context.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
	"/api/test":  true,
}

// AuthSkipper reports whether the matched route bypasses authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
