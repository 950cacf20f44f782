package provider

import "errors"

// Errors returned by provider modules, wrapped with the backend's detail.
// Match engines treat all of them as an item failure; only the transient
// ones are retried.
var (
	ErrRateLimit      = errors.New("provider rate limited")
	ErrProviderDown   = errors.New("provider unavailable")
	ErrAuthentication = errors.New("provider authentication failed")

	// ErrContextLength means the resume plus posting did not fit the model's
	// context window. Retrying the same prompt cannot help.
	ErrContextLength = errors.New("context length exceeded")
)

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}
