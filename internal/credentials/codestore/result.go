package codestore

import "errors"

// Errors for each non-success Result, returned by Result.Err so callers can
// match them with errors.Is.
var (
	ErrRecordNotFound    = errors.New("codestore: record not found")
	ErrRecordAlreadyUsed = errors.New("codestore: record already used")
	ErrRecordExpired     = errors.New("codestore: record expired")
	ErrSecretMismatch    = errors.New("codestore: secret mismatch")

	// ErrInvalidTTL rejects an Issue with a zero or negative lifetime.
	ErrInvalidTTL = errors.New("codestore: ttl must be positive")
)

// Result classifies a consume attempt. Only Success mutates the record into
// its terminal state.
type Result int

const (
	Success Result = iota + 1
	NotFound
	AlreadyUsed
	Expired
	Mismatch
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	case AlreadyUsed:
		return "already_used"
	case Expired:
		return "expired"
	case Mismatch:
		return "mismatch"
	}
	return "unknown"
}

// Err maps a non-success result to its sentinel. Success yields nil.
func (r Result) Err() error {
	switch r {
	case Success:
		return nil
	case NotFound:
		return ErrRecordNotFound
	case AlreadyUsed:
		return ErrRecordAlreadyUsed
	case Expired:
		return ErrRecordExpired
	case Mismatch:
		return ErrSecretMismatch
	}
	return errors.New("codestore: unknown result")
}
