package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CreateClinicalNote
// (POST /v1/patients/{patientId}/notes)
func (h *Handler) CreateClinicalNote(ec echo.Context) error {
	ctx := ec.Request().Context()

	dto := ClinicalNote{}
	if err := ec.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "error parsing parameters")
	}

	if _, err := h.patients.Get(ctx, ec.Param("patientId")); err != nil {
		return err
	}

	note, err := h.notes.Create(ctx, NewClinicalNote(ec.Param("patientId"), dto))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusCreated, note)
}

// ListClinicalNotes returns the most recent notes of the patient, newest first
// (GET /v1/patients/{patientId}/notes)
func (h *Handler) ListClinicalNotes(ec echo.Context) error {
	limit, err := intParam(ec, "limit")
	if err != nil {
		return err
	}

	n := 0
	if limit != nil {
		n = *limit
	}

	list, err := h.notes.List(ec.Request().Context(), ec.Param("patientId"), n)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, list)
}
