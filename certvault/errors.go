package certvault

import "errors"

var (
	// ErrInvalidPassword is returned when a password does not open a container
	// or a stored record. The message is deliberately generic.
	ErrInvalidPassword = errors.New("password incorrect or certificate corrupted")
	// ErrCorruptRecord indicates a stored record that cannot be decrypted into
	// a well-formed container even though its parameters are valid. It is not
	// retryable.
	ErrCorruptRecord = errors.New("certificate record is corrupt")
	// ErrMalformedInput indicates salt, IV or key check values of the wrong
	// length or encoding, or an empty container.
	ErrMalformedInput = errors.New("malformed certificate input")
	// ErrCertificateNotFound is returned when a record ID does not exist.
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrNotOwner is returned when a caller acts on another user's certificate.
	ErrNotOwner = errors.New("certificate belongs to another user")
)
