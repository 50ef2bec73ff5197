package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// CreateSymptomReport stores the report and evaluates the symptoms it carries
// (POST /v1/patients/{patientId}/symptoms)
func (h *Handler) CreateSymptomReport(ec echo.Context) error {
	ctx := ec.Request().Context()

	dto := SymptomReport{}
	if err := ec.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "error parsing parameters")
	}

	report, err := h.reports.Create(ctx, NewSymptomReport(ec.Param("patientId"), dto, time.Now()))
	if err != nil {
		return err
	}

	results, err := h.alerts.EvaluateSymptoms(ctx, *report)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusCreated, NewSymptomReportResponse(report, results))
}

// ListSymptomReports
// (GET /v1/patients/{patientId}/symptoms)
func (h *Handler) ListSymptomReports(ec echo.Context) error {
	w, err := window(ec, h.aggregation.ReportWindow)
	if err != nil {
		return err
	}

	list, err := h.reports.List(ec.Request().Context(), ec.Param("patientId"), w)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, list)
}
