package signing

import "errors"

var (
	// ErrRequestNotFound indicates the referenced request or aggregate does not exist.
	ErrRequestNotFound = errors.New("signature request not found")
	// ErrRequestExpired indicates the request passed its expiry and accepts no further action.
	ErrRequestExpired = errors.New("request expired")
	// ErrAlreadySigned indicates the request was already signed.
	ErrAlreadySigned = errors.New("request already signed")
	// ErrAlreadyRejected indicates the request was already rejected.
	ErrAlreadyRejected = errors.New("request already rejected")
	// ErrAlreadyCancelled indicates the request or its aggregate was cancelled.
	ErrAlreadyCancelled = errors.New("request already cancelled")
	// ErrAlreadyCompleted indicates every signer of the aggregate has signed.
	ErrAlreadyCompleted = errors.New("multi-party request already completed")
	// ErrTooManySigners indicates more than MaxSigners signers were given.
	ErrTooManySigners = errors.New("too many signers")
	// ErrNoSigners indicates an aggregate was created without signers.
	ErrNoSigners = errors.New("at least one signer is required")
	// ErrDuplicateSigner indicates the same signer appears twice.
	ErrDuplicateSigner = errors.New("duplicate signer")
	// ErrRequesterCannotSign indicates the requester listed themselves as a signer.
	ErrRequesterCannotSign = errors.New("requester cannot be a signer")
	// ErrNotAuthorized indicates the caller may not act on the request.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidPosition indicates a stamp position outside the allowed range.
	ErrInvalidPosition = errors.New("invalid signature position")
	// ErrInvalidRequest indicates missing or inconsistent creation input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUserNotFound indicates a user id that the directory does not know.
	ErrUserNotFound = errors.New("user not found")
	// ErrSigningFailed wraps failures of the certificate or external signer step.
	// The request stays pending.
	ErrSigningFailed = errors.New("signing failed")
	// ErrDocumentChanged indicates the document bytes were replaced between
	// reading them for the signer and storing the signed result.
	ErrDocumentChanged = errors.New("document changed while signing")
	// ErrNotificationFailed is returned by dispatchers. The engine only logs it.
	ErrNotificationFailed = errors.New("notification failed")
)
