package utils

import (
	"errors"

	pkgError "github.com/AzielCF/az-admin/pkg/error"
)

// ResponseData is the envelope every admin endpoint answers with.
// Status is only used to pick the HTTP status code and is not serialized.
type ResponseData struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded hands err to the recovery middleware, which renders it.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}

// ErrorResponse maps err onto the envelope. Errors that are not a
// GenericError become a 500 with the error text as message.
func ErrorResponse(err error) ResponseData {
	var generic pkgError.GenericError
	if errors.As(err, &generic) {
		return ResponseData{
			Status:  generic.StatusCode(),
			Code:    generic.ErrCode(),
			Message: generic.Error(),
		}
	}
	return ResponseData{
		Status:  500,
		Code:    "INTERNAL_SERVER_ERROR",
		Message: err.Error(),
	}
}
