package offers

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("offernexus/offers")

// Engine assigns offers to members. It mutates members in memory only;
// persisting the result is up to the caller.
type Engine struct {
	// Now returns the current time. The assignment date is its calendar day
	// in Now's own location, so with time.Now it is the local day. Dates are
	// carried as midnight UTC of that day.
	Now func() time.Time
}

// NewEngine returns an engine using the system clock.
func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

// AssignOffer creates an offer of offerType for member, valued by calculator,
// and appends it to the member.
// PRE: member and offerType are loaded
// POST: on success the member holds one more offer and one more active offer
// INVARIANT: on failure the member is not modified
func (e *Engine) AssignOffer(ctx context.Context, member *Member, offerType *OfferType, calculator ValueCalculator) (*Offer, error) {
	ctx, span := tracer.Start(ctx, "offers.engine.assign",
		trace.WithAttributes(
			attribute.String("member.id", member.ID.String()),
			attribute.String("offer_type.name", offerType.Name),
			attribute.String("offer_type.expiration", string(offerType.ExpirationType)),
		),
	)
	defer span.End()

	dateExpiring, err := ResolveExpiration(offerType, e.now())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	value, err := calculator.ComputeValue(ctx, member, offerType)
	if err == nil && ctx.Err() != nil {
		err = Cancelled(ctx)
	}
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
			err = Cancelled(ctx)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	offer := newOffer(member, offerType, dateExpiring, value)
	member.appendOffer(offer)

	span.SetAttributes(
		attribute.String("offer.id", offer.ID.String()),
		attribute.Int("offer.value", value),
	)
	return offer, nil
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
