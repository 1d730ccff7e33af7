package schedule

import "errors"

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid scheduling parameters")
