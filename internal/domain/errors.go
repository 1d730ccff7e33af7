package domain

import "errors"

// Sentinel errors. Use errors.Is to check: errors.Is(err, domain.ErrInvalidGrade)
var (
	ErrInvalidGrade       = errors.New("invalid grade")
	ErrMalformedCardState = errors.New("malformed card state")
)
