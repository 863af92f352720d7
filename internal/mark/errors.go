package mark

import "errors"

var (
	// ErrMalformed is returned by Rebuild for a mark that cannot be keyed.
	ErrMalformed = errors.New("malformed mark")
	// ErrInvalidKey is returned when a DateKey does not decode.
	ErrInvalidKey = errors.New("invalid date key")
)
