package services

import "errors"

var (
	ErrEmptySubmission   = errors.New("empty submission")
	ErrInvalidModel      = errors.New("invalid model")
	ErrMissingField      = errors.New("required field missing")
	ErrInvalidOperation  = errors.New("invalid method called")
	ErrUnknownService    = errors.New("unknown service")
	ErrInvalidDefinition = errors.New("invalid service definition")
)
