package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/opsforge/relearn/pkg/api/types/errors"
	apifb "github.com/opsforge/relearn/pkg/api/types/feedback"
	kfb "github.com/opsforge/relearn/pkg/domain/feedback/db"
	"github.com/opsforge/relearn/pkg/utils/slices"
)

// RegisterFeedbackHandler is the feedback-collection boundary: it stores a
// new human correction record.
func RegisterFeedbackHandler(dbFeedback kfb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		spec := apifb.Spec{}
		if err := c.Bind(&spec); err != nil {
			return apierr.BadRequest("request body should be a JSON feedback spec", err)
		}
		domainSpec, err := spec.ToDomain()
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}

		registered, err := dbFeedback.Register(c.Request().Context(), domainSpec)
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}
		return c.JSON(http.StatusCreated, apifb.ComposeDetail(registered))
	}
}

// FindFeedbackHandler lists unconsumed feedback, the backlog of the next
// retraining run.
func FindFeedbackHandler(dbFeedback kfb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		if consumed := c.QueryParam("consumed"); consumed != "" && consumed != "false" {
			return apierr.BadRequest(`only "consumed=false" is supported`, nil)
		}

		found, err := dbFeedback.ListUnconsumed(c.Request().Context(), 0)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, slices.Map(found, apifb.ComposeDetail))
	}
}
