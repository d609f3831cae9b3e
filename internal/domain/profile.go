package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errMissingHost = errors.New("missing host")

// Identity is one rotating request identity for a domain.
type Identity struct {
	UserAgent string            `json:"userAgent"         yaml:"user_agent"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers"`
}

// Identities is a JSONB-backed rotation list.
type Identities []Identity

// Scan implements sql.Scanner.
func (ids *Identities) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*ids = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type %T for Identities", value)
	}
	if len(data) == 0 {
		*ids = nil
		return nil
	}
	return json.Unmarshal(data, ids)
}

// Value implements driver.Valuer.
func (ids Identities) Value() (driver.Value, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]Identity(ids))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// DomainProfile is the per-domain politeness state.
//
// NextAllowedAt is always at least LastRequestAt + MinDelay and never moves
// backwards except through explicit reconfiguration.
type DomainProfile struct {
	Domain            string     `db:"domain"`
	Identities        Identities `db:"identities"`
	MinDelayMs        int64      `db:"min_delay_ms"`
	MaxDelayMs        int64      `db:"max_delay_ms"`
	LastRequestAt     *time.Time `db:"last_request_at"`
	NextAllowedAt     time.Time  `db:"next_allowed_at"`
	LastIdentityIndex int        `db:"last_identity_index"`
	PenaltyStrikes    int        `db:"penalty_strikes"`
	Reservations      int64      `db:"reservations"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// MinDelay returns the minimum politeness delay.
func (p *DomainProfile) MinDelay() time.Duration {
	return time.Duration(p.MinDelayMs) * time.Millisecond
}

// MaxDelay returns the maximum politeness delay.
func (p *DomainProfile) MaxDelay() time.Duration {
	return time.Duration(p.MaxDelayMs) * time.Millisecond
}
