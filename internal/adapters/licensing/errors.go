package licensing

import "errors"

var (
	// ErrInvalidLicense reports a key the licensing source does not know.
	ErrInvalidLicense = errors.New("invalid license")
	// ErrResolverUnavailable reports a licensing source that could not answer.
	ErrResolverUnavailable = errors.New("license resolver unavailable")
)
