package myerrors

import "errors"

var (
	ErrFieldIsEmpty     = errors.New("field is empty")
	ErrInvalidLocation  = errors.New("invalid location")
	ErrInvalidStatus    = errors.New("isActive must be active or inactive")
	ErrMobileRegistered = errors.New("mobile number already registered")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrBadCredentials   = errors.New("unknown mobile number or password")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrBusClosed        = errors.New("location bus closed")
	ErrDatabaseNotReady = errors.New("database is not initialized")
)
