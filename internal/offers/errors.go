package offers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid offer type state")
	ErrUnsupportedPolicy   = errors.New("unsupported expiration policy")
	ErrUpstream            = errors.New("valuation service failure")
	ErrDecode              = errors.New("malformed valuation response")
	ErrCancelled           = errors.New("cancelled")
	ErrPersistence         = errors.New("persistence failure")
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
)

// UpstreamError reports a failed call to the valuation service. StatusCode is
// zero when no response was received.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: unexpected status code: %d", ErrUpstream, e.StatusCode)
	}
	return fmt.Sprintf("%v: %v", ErrUpstream, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes every UpstreamError match ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Cancelled returns an ErrCancelled failure that also wraps ctx's cause.
func Cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateEntity(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(msgs, ", "))
}
