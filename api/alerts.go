package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tidepool-org/cardiac/alerts"
)

// Evaluate
// (POST /v1/patients/{patientId}/evaluations)
func (h *Handler) Evaluate(ec echo.Context) error {
	ctx := ec.Request().Context()
	patientId := ec.Param("patientId")

	dto := EvaluationRequest{}
	if err := ec.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "error parsing parameters")
	}

	evaluation, err := NewEvaluation(patientId, dto)
	if err != nil {
		return err
	}

	var result *alerts.Result
	if dto.Tier != nil {
		result, err = h.alerts.Evaluate(ctx, evaluation)
	} else {
		result, err = h.alerts.EvaluateValue(ctx, patientId, dto.AlertType, *dto.Metric, *dto.Value)
	}
	if err != nil {
		return err
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	return ec.JSON(status, NewEvaluationResponse(result))
}

// ResolveAlert
// (POST /v1/alerts/{alertId}/resolve)
func (h *Handler) ResolveAlert(ec echo.Context) error {
	ctx := ec.Request().Context()

	dto := ResolutionRequest{}
	if err := ec.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "error parsing parameters")
	}

	alert, err := h.alerts.Resolve(ctx, ec.Param("alertId"), dto.ResolvedBy, dto.Notes)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, alert)
}

// GetAlert
// (GET /v1/alerts/{alertId})
func (h *Handler) GetAlert(ec echo.Context) error {
	alert, err := h.alerts.Get(ec.Request().Context(), ec.Param("alertId"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, alert)
}

// ListActiveAlerts
// (GET /v1/clinicians/{clinicianId}/alerts)
func (h *Handler) ListActiveAlerts(ec echo.Context) error {
	list, err := h.alerts.ListActive(ec.Request().Context(), ec.Param("clinicianId"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, list)
}

// ListPatientAlerts
// (GET /v1/patients/{patientId}/alerts)
func (h *Handler) ListPatientAlerts(ec echo.Context) error {
	w, err := window(ec, h.aggregation.ReportWindow)
	if err != nil {
		return err
	}

	list, err := h.alerts.ListByPatient(ec.Request().Context(), ec.Param("patientId"), w)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, list)
}
