package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/aggregation"
	"github.com/tidepool-org/cardiac/alerts"
	"github.com/tidepool-org/cardiac/errors"
	"github.com/tidepool-org/cardiac/ingestion"
	"github.com/tidepool-org/cardiac/notes"
	"github.com/tidepool-org/cardiac/patients"
	"github.com/tidepool-org/cardiac/sessions"
	"github.com/tidepool-org/cardiac/store"
	"github.com/tidepool-org/cardiac/symptoms"
)

var ErrInvalidParameter = fmt.Errorf("invalid parameter %w", errors.BadRequest)

type Handler struct {
	alerts      *alerts.Engine
	aggregation *aggregation.Service
	pipeline    *ingestion.Pipeline
	sessions    *sessions.Registry
	reports     symptoms.Repository
	notes       notes.Repository
	patients    patients.Repository
	logger      *zap.SugaredLogger
}

type Params struct {
	fx.In

	Alerts      *alerts.Engine
	Aggregation *aggregation.Service
	Pipeline    *ingestion.Pipeline
	Sessions    *sessions.Registry
	Reports     symptoms.Repository
	Notes       notes.Repository
	Patients    patients.Repository
	Logger      *zap.SugaredLogger
}

func NewHandler(p Params) *Handler {
	return &Handler{
		alerts:      p.Alerts,
		aggregation: p.Aggregation,
		pipeline:    p.Pipeline,
		sessions:    p.Sessions,
		reports:     p.Reports,
		notes:       p.Notes,
		patients:    p.Patients,
		logger:      p.Logger,
	}
}

// window parses the from/to or days query parameters. The trailing window of
// the default length is returned when none are set.
func window(ec echo.Context, trailing func(time.Duration) store.Window) (store.Window, error) {
	from := ec.QueryParam("from")
	to := ec.QueryParam("to")
	if from != "" || to != "" {
		w := trailing(0)
		if from != "" {
			t, err := time.Parse(time.RFC3339, from)
			if err != nil {
				return store.Window{}, fmt.Errorf("%w: from must be an RFC3339 timestamp", ErrInvalidParameter)
			}
			w.From = t
		}
		if to != "" {
			t, err := time.Parse(time.RFC3339, to)
			if err != nil {
				return store.Window{}, fmt.Errorf("%w: to must be an RFC3339 timestamp", ErrInvalidParameter)
			}
			w.To = t
		}
		return w, nil
	}

	days, err := intParam(ec, "days")
	if err != nil {
		return store.Window{}, err
	}
	if days == nil {
		return trailing(0), nil
	}
	if *days <= 0 {
		return store.Window{}, fmt.Errorf("%w: days must be positive", ErrInvalidParameter)
	}
	return trailing(time.Duration(*days) * 24 * time.Hour), nil
}

func intParam(ec echo.Context, name string) (*int, error) {
	raw := ec.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidParameter, name)
	}
	return &value, nil
}
