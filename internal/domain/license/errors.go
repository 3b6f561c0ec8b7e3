package license

import "errors"

var (
	ErrLicenseNotFound = errors.New("license not found")
	ErrEmailUnresolved = errors.New("customer email could not be resolved")
	ErrMalformedEvent  = errors.New("malformed billing event")
)
