package wifi

import "errors"

var (
	ErrNotSupported     = errors.New("not supported")
	ErrNotFound         = errors.New("not found")
	ErrNotAvailable     = errors.New("not available")
	ErrOperationFailed  = errors.New("operation failed")
	ErrWirelessDisabled = errors.New("wireless is disabled")
	ErrRejected         = errors.New("request rejected")
	ErrTooLarge         = errors.New("payload too large")
	ErrInvalid          = errors.New("invalid value")
	ErrExists           = errors.New("already exists")
)
