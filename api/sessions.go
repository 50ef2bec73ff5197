package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tidepool-org/cardiac/sessions"
)

// Authorize returns the provider authorization url of the patient
// (GET /v1/patients/{patientId}/authorize)
func (h *Handler) Authorize(ec echo.Context) error {
	url, err := h.sessions.BeginAuthorization(ec.Request().Context(), ec.Param("patientId"))
	if err != nil {
		return err
	}

	if ec.QueryParam("redirect") == "true" {
		return ec.Redirect(http.StatusFound, url)
	}
	return ec.JSON(http.StatusOK, AuthorizationResponse{AuthorizationUrl: url})
}

// CompleteAuthorization
// (GET /v1/oauth/callback)
func (h *Handler) CompleteAuthorization(ec echo.Context) error {
	ctx := ec.Request().Context()
	params := sessions.CallbackParams{
		State:            ec.QueryParam("state"),
		Code:             ec.QueryParam("code"),
		Error:            ec.QueryParam("error"),
		ErrorDescription: ec.QueryParam("error_description"),
	}

	patientId, err := h.sessions.CompleteAuthorization(ctx, params)
	if err != nil {
		h.logger.Warnw("provider authorization failed", "patientId", patientId, "error", err)
		return err
	}

	return h.sessionResponse(ec, patientId)
}

// GetSession
// (GET /v1/patients/{patientId}/session)
func (h *Handler) GetSession(ec echo.Context) error {
	return h.sessionResponse(ec, ec.Param("patientId"))
}

// RevokeSession
// (DELETE /v1/patients/{patientId}/session)
func (h *Handler) RevokeSession(ec echo.Context) error {
	if err := h.sessions.Revoke(ec.Request().Context(), ec.Param("patientId")); err != nil {
		return err
	}

	return ec.NoContent(http.StatusNoContent)
}

func (h *Handler) sessionResponse(ec echo.Context, patientId string) error {
	state, err := h.sessions.State(ec.Request().Context(), patientId)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, SessionResponse{
		PatientId: patientId,
		State:     state,
	})
}
