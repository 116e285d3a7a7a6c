package services

import (
	"errors"

	apperrors "github.com/yashrajoria/checkout-service/errors"
	"github.com/yashrajoria/checkout-service/repository"
)

const (
	msgInvalidItems   = "Invalid items array in request"
	msgOrderNotFound  = "Order not found"
	msgCancelPending  = "Can only cancel pending orders"
	msgAttachPending  = "Can only start checkout for pending orders"
	msgStorageFailure = "Failed to access order storage"
)

// storeError maps an order store error onto the application taxonomy.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.ErrNotFound.WithMessage(msgOrderNotFound)
	case errors.Is(err, repository.ErrStatusConflict):
		return apperrors.ErrInvalidState.Wrap(err)
	default:
		return apperrors.ErrStorageUnavailable.WithMessage(msgStorageFailure).Wrap(err)
	}
}
