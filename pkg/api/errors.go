package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/soarcore/soarcore/pkg/store"
	"github.com/soarcore/soarcore/pkg/validator"
)

// mapStoreError maps a pkg/store sentinel error (or a *validator.Error)
// to an HTTP response, the way the teacher's mapServiceError does for
// its services-layer sentinels.
func mapStoreError(err error) *echo.HTTPError {
	var verr *validator.Error
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, verr.Result)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case errors.Is(err, store.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	case errors.Is(err, store.ErrNotCancellable):
		return echo.NewHTTPError(http.StatusConflict, "execution is not in a cancellable state")
	case errors.Is(err, store.ErrApprovalNotPending):
		return echo.NewHTTPError(http.StatusConflict, "approval is not pending")
	case errors.Is(err, store.ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, "entity was concurrently modified")
	}

	slog.Error("unexpected store error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
