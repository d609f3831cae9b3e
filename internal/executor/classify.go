package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
)

// classifyStatus maps a non-2xx response, or a 2xx response carrying a
// CAPTCHA page, to a ScrapeError. It returns nil for usable responses.
func (e *Executor) classifyStatus(status int, body []byte) *ScrapeError {
	switch {
	case status == http.StatusTooManyRequests:
		return newScrapeError(domain.FailureRateLimited, CodeRateLimited, status, "rate limited by site", nil)
	case status == http.StatusForbidden:
		if e.hasCaptcha(body) {
			return newScrapeError(domain.FailureBlocked, CodeCaptchaDetected, status, "captcha challenge served", nil)
		}
		return newScrapeError(domain.FailureBlocked, CodeBlocked, status, "access forbidden", nil)
	case e.retryableStatuses[status]:
		return newScrapeError(domain.FailureTransient, CodeServerError, status, fmt.Sprintf("http status %d", status), nil)
	case status == http.StatusNotFound || status == http.StatusGone:
		return newScrapeError(domain.FailureStructural, CodePageNotFound, status, "page not found", nil)
	case status < 200 || status >= 300:
		return newScrapeError(domain.FailureStructural, CodeHTTPError, status, fmt.Sprintf("unexpected http status %d", status), nil)
	case e.hasCaptcha(body):
		return newScrapeError(domain.FailureBlocked, CodeCaptchaDetected, status, "captcha challenge served", nil)
	}
	return nil
}

func (e *Executor) hasCaptcha(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, marker := range e.captchaMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// classifyTransport maps a transport error to a transient failure.
func classifyTransport(err error) *ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newScrapeError(domain.FailureTransient, CodeTimeout, 0, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newScrapeError(domain.FailureTransient, CodeTimeout, 0, "request timed out", err)
	}
	return newScrapeError(domain.FailureTransient, CodeNetworkError, 0, "network error", err)
}

// isRetryable limits retries to transient failures other than an open
// circuit, which fails fast until its cool-down ends.
func isRetryable(err error) bool {
	se, ok := AsScrapeError(err)
	return ok && se.Kind == domain.FailureTransient && se.Code != CodeCircuitOpen
}

// countsAgainstBreaker reports whether err reflects an unhealthy site or
// network. Structural failures mean the site answered.
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, errLocalWait) {
		return false
	}
	se, ok := AsScrapeError(err)
	if !ok {
		return true
	}
	return se.Kind != domain.FailureStructural
}
