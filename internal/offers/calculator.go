package offers

import "context"

// ValueCalculator computes the monetary value of an offer for a member.
// Implementations must return a Cancelled failure when ctx is done before
// the value is known.
type ValueCalculator interface {
	ComputeValue(ctx context.Context, member *Member, offerType *OfferType) (int, error)
}

// ValueCalculatorFunc adapts a function to ValueCalculator.
type ValueCalculatorFunc func(ctx context.Context, member *Member, offerType *OfferType) (int, error)

func (f ValueCalculatorFunc) ComputeValue(ctx context.Context, member *Member, offerType *OfferType) (int, error) {
	return f(ctx, member, offerType)
}

// FlatRateCalculator values every offer at the same amount.
type FlatRateCalculator struct {
	Value int
}

func (c FlatRateCalculator) ComputeValue(ctx context.Context, _ *Member, _ *OfferType) (int, error) {
	if ctx.Err() != nil {
		return 0, Cancelled(ctx)
	}
	return c.Value, nil
}
