package domain

import "errors"

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDeliveryFailed    = errors.New("notification delivery failed")
)
