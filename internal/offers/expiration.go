package offers

import (
	"fmt"
	"time"
)

// ResolveExpiration computes the expiry date of an offer of type t assigned
// on reference. Only the calendar date of reference is used.
func ResolveExpiration(t *OfferType, reference time.Time) (time.Time, error) {
	if t.DaysValid < 0 {
		return time.Time{}, fmt.Errorf("%w: offer type %q has negative days valid %d", ErrInvalidState, t.Name, t.DaysValid)
	}

	switch t.ExpirationType {
	case ExpirationAssignment:
		return Day(reference).AddDate(0, 0, t.DaysValid), nil
	case ExpirationFixed:
		if t.BeginDate == nil {
			return time.Time{}, fmt.Errorf("%w: offer type %q has fixed expiration but no begin date", ErrInvalidState, t.Name)
		}
		return Day(*t.BeginDate).AddDate(0, 0, t.DaysValid), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedPolicy, t.ExpirationType)
	}
}
