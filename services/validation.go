package services

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/yashrajoria/checkout-service/errors"
)

const msgNegativeItem = "Item price and quantity must not be negative"

// ValidateRequest runs the gin binding validator over a request DTO, so
// callers outside an HTTP handler get the same rules as ShouldBindJSON.
func ValidateRequest(req interface{}) error {
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return RequestError(err)
	}
	return nil
}

// RequestError maps a bind or validation failure onto InvalidRequest with the
// message the storefront expects.
func RequestError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "gte" && (fe.StructField() == "Price" || fe.StructField() == "Quantity") {
				return apperrors.ErrInvalidRequest.WithMessage(msgNegativeItem).Wrap(err)
			}
		}
	}
	return apperrors.ErrInvalidRequest.WithMessage(msgInvalidItems).Wrap(err)
}
