// internal/api/errors.go
package api

import (
	"errors"
	"net/http"

	"property-tracker/internal/auth"
	apperrors "property-tracker/internal/common/errors"
	"property-tracker/internal/editsession"
	"property-tracker/internal/extraction"
	"property-tracker/internal/models"
	"property-tracker/internal/search"
	"property-tracker/internal/store"
)

var errBadRequest = errors.New("VALIDATION_FAILED")

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	a.errors.Write(w, r, toStandard(err))
}

// toStandard maps package sentinels onto the shared error taxonomy.
func toStandard(err error) error {
	if _, ok := apperrors.AsStandard(err); ok {
		return err
	}

	switch {
	case errors.Is(err, auth.ErrSessionExpired):
		return apperrors.NewSessionExpiredError()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apperrors.NewAuthenticationError(err.Error())
	case errors.Is(err, auth.ErrEmailInUse), errors.Is(err, store.ErrEmailInUse):
		return apperrors.NewEmailInUseError(err.Error())
	case errors.Is(err, auth.ErrSessionStoreFailed):
		return apperrors.NewDatabaseConnectionFailedError(err)

	case errors.Is(err, models.ErrUnknownField):
		return apperrors.NewUnknownFieldError(err.Error())
	case errors.Is(err, models.ErrInvalidValue),
		errors.Is(err, store.ErrNoFields),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, extraction.ErrInvalidURL),
		errors.Is(err, editsession.ErrUnsupportedKind),
		errors.Is(err, errBadRequest):
		return apperrors.NewValidationError(err.Error())

	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewResourceNotFoundError("Resource", err.Error())
	case errors.Is(err, editsession.ErrSessionNotFound):
		return apperrors.NewResourceNotFoundError("Edit session", err.Error())
	case errors.Is(err, extraction.ErrSlotNotFound):
		return apperrors.NewResourceNotFoundError("Extraction slot", err.Error())
	case errors.Is(err, extraction.ErrExtractionInProgress):
		return apperrors.NewExtractionInProgressError(err.Error())
	case errors.Is(err, editsession.ErrSessionClosing):
		return apperrors.NewEditSessionClosingError(err.Error())

	case errors.Is(err, search.ErrSearchDisabled):
		return apperrors.NewSearchDisabledError()
	case errors.Is(err, search.ErrSearchQueryFailed):
		return apperrors.NewSearchQueryFailedError(err)

	case errors.Is(err, store.ErrQueryFailed):
		return apperrors.NewQueryExecutionFailedError("query", err)
	case errors.Is(err, store.ErrInsertFailed):
		return apperrors.NewDatabaseInsertFailedError(err)
	case errors.Is(err, store.ErrUpdateFailed):
		return apperrors.NewDatabaseUpdateFailedError(err)
	case errors.Is(err, store.ErrDeleteFailed):
		return apperrors.NewDatabaseDeleteFailedError(err)
	}
	return err
}
