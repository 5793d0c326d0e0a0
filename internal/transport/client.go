package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oshokin/code-winstaller/internal/domain/installer"
)

// userAgentTransport sets a fixed User-Agent on every outgoing request.
type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)

	return t.next.RoundTrip(req)
}

// NewClient returns an http.Client that identifies itself with userAgent.
// It has no overall timeout; callers bound each operation with a Deadline
// or a context.
func NewClient(userAgent string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // Stdlib default.

	return &http.Client{
		Transport: &userAgentTransport{
			next:      transport,
			userAgent: userAgent,
		},
	}
}

// CheckStatus returns an ErrNetwork-wrapped error for non-2xx responses.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s %s: %s: %w", resp.Request.Method, resp.Request.URL, resp.Status, installer.ErrNetwork)
	}

	return nil
}

// Deadline cancels a request context if an operation outlives its budget.
type Deadline struct {
	timer *time.Timer
}

// Arm schedules cancel to run after d. A non-positive d disables the deadline.
func Arm(d time.Duration, cancel context.CancelFunc) *Deadline {
	if d <= 0 {
		return &Deadline{}
	}

	return &Deadline{timer: time.AfterFunc(d, cancel)}
}

// Disarm stops the deadline and reports whether it had already expired.
func (d *Deadline) Disarm() bool {
	if d.timer == nil {
		return false
	}

	return !d.timer.Stop()
}
