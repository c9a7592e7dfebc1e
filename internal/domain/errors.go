package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrValidation       = errors.New("record failed validation")
	ErrUnverifiedSource = errors.New("unverified token source")
	ErrContextDone      = errors.New("context cancelled")
)
