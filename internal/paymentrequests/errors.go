package paymentrequests

import (
	"errors"

	"github.com/deliajin33/stablecoin/pkg/enums"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
)

// errDeadlinePassed vetoes a transition whose deadline elapsed while it was
// being applied.
var errDeadlinePassed = errors.New("payment request deadline passed")

func notFoundError() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "payment request not found")
}

// statusError explains why a request that left pending cannot be acted on.
func statusError(status enums.PaymentRequestStatus) error {
	switch status {
	case enums.PaymentRequestStatusPaid:
		return pkgerrors.New(pkgerrors.CodeAlreadySettled, "payment request already settled")
	case enums.PaymentRequestStatusExpired:
		return pkgerrors.New(pkgerrors.CodeRequestExpired, "payment request expired")
	case enums.PaymentRequestStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeRequestCancelled, "payment request cancelled")
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unexpected payment request status "+status.String())
	}
}

// translateStoreError maps low-level store signals onto caller-facing errors.
func translateStoreError(err error, action string) error {
	if err == nil {
		return nil
	}
	var conflict *ConflictError
	switch {
	case errors.Is(err, ErrNotFound):
		return notFoundError()
	case errors.As(err, &conflict):
		return statusError(conflict.Observed)
	case errors.Is(err, errDeadlinePassed):
		return statusError(enums.PaymentRequestStatusExpired)
	case pkgerrors.As(err) != nil:
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
	}
}

// rejectionReason labels settle rejections for metrics.
func rejectionReason(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation:
		return "validation"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeRequestExpired:
		return "expired"
	case pkgerrors.CodeAlreadySettled:
		return "already_settled"
	case pkgerrors.CodeRequestCancelled:
		return "cancelled"
	default:
		return "internal"
	}
}
