package api

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RouteSkipper skips the middleware for the registered route paths
func RouteSkipper(routes ...string) middleware.Skipper {
	skipped := mapset.NewThreadUnsafeSet(routes...)

	return func(ec echo.Context) bool {
		return skipped.Contains(ec.Path())
	}
}
