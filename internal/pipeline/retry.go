package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/dgallion1/hansardgest/internal/extract"
	"github.com/dgallion1/hansardgest/internal/source"
)

// IsRetryable checks if an error is worth retrying. Engine failures are
// properties of the document and never are.
func IsRetryable(err error) bool {
	if err == nil || extract.IsDocumentFailure(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *source.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.RateLimited() || statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// rateLimitDelay is the minimum pause after ParlInfo refuses a request.
const rateLimitDelay = 20 * time.Second

// RetryDelay returns how long to wait before retrying after err.
func RetryDelay(err error, attempt int) time.Duration {
	var statusErr *source.StatusError
	if errors.As(err, &statusErr) && statusErr.RateLimited() {
		return rateLimitDelay + time.Duration(rand.Int64N(int64(10*time.Second)))
	}
	return Backoff(attempt)
}

const MaxRetries = 3
