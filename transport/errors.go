package transport

import (
	goerrors "github.com/goliatone/go-errors"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.RelayErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return core.RelayErrorSignatureInvalid
	case goerrors.CategoryRateLimit:
		return core.RelayErrorRateLimited
	case goerrors.CategoryOperation, goerrors.CategoryExternal:
		return core.RelayErrorSendFailed
	default:
		return core.RelayErrorInternal
	}
}
