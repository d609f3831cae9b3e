package executor

import (
	"errors"
	"fmt"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
)

// Error codes carried on failed outcomes.
const (
	CodeRateLimited      = "RATE_LIMITED"
	CodeBlocked          = "BLOCKED"
	CodeCaptchaDetected  = "CAPTCHA_DETECTED"
	CodePageNotFound     = "PAGE_NOT_FOUND"
	CodeHTTPError        = "HTTP_ERROR"
	CodeServerError      = "SERVER_ERROR"
	CodeNetworkError     = "NETWORK_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeCircuitOpen      = "CIRCUIT_OPEN"
	CodePriceNotFound    = "PRICE_NOT_FOUND"
	CodePriceUnparseable = "PRICE_UNPARSEABLE"
	CodeSellerMismatch   = "SELLER_MISMATCH"
	CodeParseError       = "PARSE_ERROR"
	CodeInvalidCommand   = "INVALID_COMMAND"
)

// ScrapeError is a classified scrape failure.
type ScrapeError struct {
	Kind       domain.FailureKind
	Code       string
	HTTPStatus int
	Message    string
	Err        error
}

func (e *ScrapeError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (%s, http %d): %s", e.Code, e.Kind, e.HTTPStatus, msg)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Kind, msg)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

func newScrapeError(kind domain.FailureKind, code string, status int, msg string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, Code: code, HTTPStatus: status, Message: msg, Err: err}
}

// AsScrapeError extracts a ScrapeError from err.
func AsScrapeError(err error) (*ScrapeError, bool) {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
