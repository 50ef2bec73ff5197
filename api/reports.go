package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetDashboard
// (GET /v1/clinicians/{clinicianId}/dashboard)
func (h *Handler) GetDashboard(ec echo.Context) error {
	w, err := window(ec, h.aggregation.DashboardWindow)
	if err != nil {
		return err
	}

	stats, err := h.aggregation.Dashboard(ec.Request().Context(), ec.Param("clinicianId"), w)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, stats)
}

// GetPatientReport
// (GET /v1/patients/{patientId}/report)
func (h *Handler) GetPatientReport(ec echo.Context) error {
	w, err := window(ec, h.aggregation.ReportWindow)
	if err != nil {
		return err
	}

	report, err := h.aggregation.PatientReport(ec.Request().Context(), ec.Param("patientId"), w)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, report)
}
