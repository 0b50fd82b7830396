package transcribe

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error taxonomy for transcription backends. Callers branch on these with
// errors.Is to decide between retrying, failing fast, and degrading.
var (
	// ErrRateLimited indicates a transient throughput limit; the call is
	// worth retrying with backoff.
	ErrRateLimited = errors.New("transcribe: rate limited")

	// ErrQuotaExceeded indicates the account quota is exhausted. Retrying
	// cannot help; the condition must surface to the operator.
	ErrQuotaExceeded = errors.New("transcribe: quota exceeded")

	// ErrPermission indicates an authentication or authorization failure.
	ErrPermission = errors.New("transcribe: permission denied")

	// ErrNotSupported is returned for operations a backend does not
	// implement, such as LookupText on backends without server-side
	// reference extraction.
	ErrNotSupported = errors.New("transcribe: operation not supported")
)

// Retryable reports whether err is worth retrying. Quota and permission
// failures are terminal; rate limits and generic transport errors are not.
func Retryable(err error) bool {
	if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrPermission) || errors.Is(err, ErrNotSupported) {
		return false
	}
	return true
}

// ClassifyStatus maps an HTTP response status and body to the taxonomy.
// Returns nil for success statuses.
func ClassifyStatus(status int, body string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		if strings.Contains(strings.ToLower(body), "quota") {
			return ErrQuotaExceeded
		}
		return ErrRateLimited
	case status == http.StatusPaymentRequired:
		return ErrQuotaExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrPermission
	default:
		return fmt.Errorf("transcribe: unexpected status %d %s", status, http.StatusText(status))
	}
}
