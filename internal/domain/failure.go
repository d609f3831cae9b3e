package domain

// FailureKind classifies why a scrape attempt or a downstream stage failed.
// It drives retry, schedule backoff and throttle escalation; raw provider
// codes and messages travel alongside it only for diagnostics.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureTransient         FailureKind = "TRANSIENT"
	FailureRateLimited       FailureKind = "RATE_LIMITED"
	FailureBlocked           FailureKind = "BLOCKED"
	FailureStructural        FailureKind = "STRUCTURAL"
	FailureValidationFailure FailureKind = "VALIDATION_FAILURE"
)

// Retryable reports whether the executor may retry the attempt in place.
func (k FailureKind) Retryable() bool {
	return k == FailureTransient
}

// EscalatesThrottle reports whether the failure should push the domain's
// next allowed request further out.
func (k FailureKind) EscalatesThrottle() bool {
	return k == FailureRateLimited || k == FailureBlocked
}

// Valid reports whether k is a known kind, including FailureNone.
func (k FailureKind) Valid() bool {
	switch k {
	case FailureNone, FailureTransient, FailureRateLimited, FailureBlocked,
		FailureStructural, FailureValidationFailure:
		return true
	default:
		return false
	}
}
