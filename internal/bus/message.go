package bus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrMalformed marks a message that can never be processed.
var ErrMalformed = errors.New("malformed message")

// permanentError wraps errors that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so the consumer parks the message in the dead-letter
// stream instead of leaving it pending.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Message is a stream entry delivered to a handler.
type Message struct {
	ID      string
	Stream  string
	Type    string
	Payload []byte
}

func parseMessage(stream string, msg redis.XMessage) (Message, error) {
	out := Message{ID: msg.ID, Stream: stream}

	if t, ok := msg.Values[FieldType].(string); ok {
		out.Type = t
	}
	payload, ok := msg.Values[FieldPayload].(string)
	if !ok {
		return out, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	out.Payload = []byte(payload)
	return out, nil
}

// Decode unmarshals the payload into T. Failures are permanent.
func Decode[T any](msg Message) (T, error) {
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, Permanent(fmt.Errorf("%w: decode %s: %w", ErrMalformed, msg.Type, err))
	}
	return v, nil
}
