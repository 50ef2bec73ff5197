package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SyncPatient fetches the provider data of the trailing days of the patient
// (POST /v1/patients/{patientId}/sync)
func (h *Handler) SyncPatient(ec echo.Context) error {
	days, err := intParam(ec, "days")
	if err != nil {
		return err
	}

	dayCount := h.pipeline.BackfillDays()
	if days != nil {
		dayCount = *days
	}

	report, err := h.pipeline.Sync(ec.Request().Context(), ec.Param("patientId"), dayCount)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, report)
}
