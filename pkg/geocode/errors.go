package geocode

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// ErrNoProviders means the registry came up empty: zero enabled services,
// so resolution can make no progress at all. This is the only fatal
// configuration condition the resolver surfaces.
var ErrNoProviders = errors.New("geocode: no providers enabled")

// RateLimitedError is distinct from a generic network failure: the
// provider is fine, the caller is just over its request budget. The
// orchestrator skips the provider for the current address instead of
// retrying in-loop.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("geocode: %s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("geocode: %s rate limited", e.Provider)
}

// IsRateLimited reports whether err (or anything in its chain) is a
// RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// isTransportError classifies network-level failures so the orchestrator
// can log them as provider unavailability rather than parse problems.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"tls handshake timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
