package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUpstreamRead  = errors.New("upstream read failed")
	ErrTxFailed      = errors.New("transaction failed")
	ErrContextDone   = errors.New("context cancelled")
)
