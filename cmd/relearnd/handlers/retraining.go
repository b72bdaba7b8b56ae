package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apierr "github.com/opsforge/relearn/pkg/api/types/errors"
	apiretrain "github.com/opsforge/relearn/pkg/api/types/retraining"
	"github.com/opsforge/relearn/pkg/domain"
	ktrig "github.com/opsforge/relearn/pkg/domain/trigger/db"
	"github.com/opsforge/relearn/pkg/pipeline/orchestrator"
)

func knownFamily(families []domain.ModelFamily, name string) bool {
	for _, f := range families {
		if f.Name == name {
			return true
		}
	}
	return false
}

// RequestRetrainingHandler queues a manual retraining request. The next
// trigger evaluation cycle picks it up.
func RequestRetrainingHandler(
	dbTrigger ktrig.Interface, families []domain.ModelFamily,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		req := apiretrain.Request{}
		if err := c.Bind(&req); err != nil {
			return apierr.BadRequest(`request body should be JSON {"family"?, "dryRun"?}`, err)
		}
		if req.Family != nil && !knownFamily(families, *req.Family) {
			return apierr.BadRequest(`"family" is not a configured model family`, nil)
		}

		ctx := c.Request().Context()
		queued, err := dbTrigger.RequestManual(ctx, req.Family, req.DryRun)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusAccepted, apiretrain.Accepted{
			RequestId: queued.Id,
			Status:    "accepted",
		})
	}
}

// RunRetrainingHandler runs the pipeline inline as a manual run and
// returns the full run result.
func RunRetrainingHandler(
	o *orchestrator.Orchestrator, families []domain.ModelFamily,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		req := apiretrain.Request{}
		if err := c.Bind(&req); err != nil {
			return apierr.BadRequest(`request body should be JSON {"family"?, "dryRun"?}`, err)
		}
		if req.Family != nil && !knownFamily(families, *req.Family) {
			return apierr.BadRequest(`"family" is not a configured model family`, nil)
		}

		decision := domain.TriggerDecision{
			Fire:    true,
			Reasons: []domain.TriggerReason{domain.ReasonManual},
			Manual: &domain.ManualRequest{
				Id:          uuid.NewString(),
				Family:      req.Family,
				DryRun:      req.DryRun,
				RequestedAt: time.Now(),
			},
		}

		ctx := c.Request().Context()
		result, err := o.TryRun(ctx, decision)
		if err != nil {
			if errors.Is(err, domain.ErrLockBusy) {
				return apierr.Conflict(
					"already-running",
					apierr.WithAdvice("another retraining run holds the pipeline lock. retry later."),
				)
			}
			if result != nil {
				// aborted runs still carry their result
				return c.JSON(http.StatusOK, apiretrain.ComposeRunDetail(*result))
			}
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, apiretrain.ComposeRunDetail(*result))
	}
}

// GetTriggerHandler exposes the state the trigger conditions see.
func GetTriggerHandler(dbTrigger ktrig.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		state, err := dbTrigger.Get(c.Request().Context())
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apiretrain.ComposeTriggerState(state))
	}
}
