package api

import (
	"github.com/brpaz/echozap"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/errors"
)

const ReadinessRoute = "/ready"

func NewServer(handler *Handler, healthCheck *HealthCheck, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Skip logging for the readiness check
	skipper := RouteSkipper(ReadinessRoute)

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		logged := echozap.ZapLogger(logger)(next)
		return func(ec echo.Context) error {
			if skipper(ec) {
				return next(ec)
			}
			return logged(ec)
		}
	})

	e.HTTPErrorHandler = errors.CustomHTTPErrorHandler

	e.GET(ReadinessRoute, healthCheck.Ready)
	RegisterHandlers(e.Group("/v1"), handler)

	return e
}

func RegisterHandlers(g *echo.Group, h *Handler) {
	g.POST("/patients/:patientId/evaluations", h.Evaluate)
	g.GET("/patients/:patientId/alerts", h.ListPatientAlerts)
	g.POST("/patients/:patientId/symptoms", h.CreateSymptomReport)
	g.GET("/patients/:patientId/symptoms", h.ListSymptomReports)
	g.POST("/patients/:patientId/notes", h.CreateClinicalNote)
	g.GET("/patients/:patientId/notes", h.ListClinicalNotes)
	g.POST("/patients/:patientId/sync", h.SyncPatient)
	g.GET("/patients/:patientId/authorize", h.Authorize)
	g.GET("/patients/:patientId/session", h.GetSession)
	g.DELETE("/patients/:patientId/session", h.RevokeSession)
	g.GET("/patients/:patientId/report", h.GetPatientReport)

	g.GET("/alerts/:alertId", h.GetAlert)
	g.POST("/alerts/:alertId/resolve", h.ResolveAlert)

	g.GET("/clinicians/:clinicianId/alerts", h.ListActiveAlerts)
	g.GET("/clinicians/:clinicianId/dashboard", h.GetDashboard)

	g.GET("/oauth/callback", h.CompleteAuthorization)
}
