package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/opsforge/relearn/pkg/api/types/errors"
	apimodels "github.com/opsforge/relearn/pkg/api/types/models"
	"github.com/opsforge/relearn/pkg/domain"
	kreg "github.com/opsforge/relearn/pkg/domain/registry/db"
	"github.com/opsforge/relearn/pkg/utils/slices"
)

// GetActiveModelHandler returns the deployed version of a family.
func GetActiveModelHandler(dbRegistry kreg.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		family := c.Param("family")

		active, err := dbRegistry.GetActive(c.Request().Context(), family)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		if active == nil {
			return apierr.NotFound()
		}
		return c.JSON(http.StatusOK, apimodels.ComposeDetail(*active))
	}
}

// ModelHistoryHandler returns every version of a family, ascending by
// number.
func ModelHistoryHandler(dbRegistry kreg.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		family := c.Param("family")

		history, err := dbRegistry.History(c.Request().Context(), family)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, slices.Map(history, apimodels.ComposeDetail))
	}
}

// RollbackHandler demotes the deployed version and redeploys the most
// recently retired one.
func RollbackHandler(dbRegistry kreg.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		family := c.Param("family")

		deployed, err := dbRegistry.Rollback(c.Request().Context(), family)
		if err != nil {
			if errors.Is(err, domain.ErrNoRollbackTarget) {
				return apierr.NewErrorMessage(
					http.StatusNotFound,
					"no rollback target",
					apierr.WithAdvice("the family has no retired version to return to."),
					apierr.WithError(err),
				)
			}
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apimodels.ComposeDetail(deployed))
	}
}
