package query

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

func queryDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.RelayErrorInternal)
}

func queryValidationError(field string, message string) error {
	return goerrors.NewValidation("query: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.RelayErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}
