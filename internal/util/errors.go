package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required file or directory was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid arguments or configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMalformedRecord indicates a metadata line with too few columns
	ErrMalformedRecord = errors.New("malformed metadata record")

	// ErrFilenameCollision indicates two source archives would write the
	// same filename into one merged stage directory
	ErrFilenameCollision = errors.New("filename collision")

	// ErrDestinationNotEmpty indicates a merge target that already has content
	ErrDestinationNotEmpty = errors.New("destination not empty")

	// ErrVerifyFailed indicates a copied file does not match its source
	ErrVerifyFailed = errors.New("verification failed")
)
