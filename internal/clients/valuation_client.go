// internal/clients/valuation_client.go
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"offernexus/internal/offers"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("offernexus/clients")

// ValuationClient computes offer values by calling the valuation service.
// It implements offers.ValueCalculator and never retries.
type ValuationClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ValuationOption configures a ValuationClient.
type ValuationOption func(*ValuationClient)

// WithHTTPClient sets the client used for requests. Its Timeout bounds each call.
func WithHTTPClient(c *http.Client) ValuationOption {
	return func(vc *ValuationClient) { vc.httpClient = c }
}

// WithRateLimit caps outgoing calls at r per second with the given burst.
func WithRateLimit(r float64, burst int) ValuationOption {
	return func(vc *ValuationClient) {
		if r > 0 {
			vc.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
		}
	}
}

func NewValuationClient(baseURL string, opts ...ValuationOption) *ValuationClient {
	c := &ValuationClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComputeValue asks the valuation service for the value of offerType for member.
func (c *ValuationClient) ComputeValue(ctx context.Context, member *offers.Member, offerType *offers.OfferType) (int, error) {
	ctx, span := tracer.Start(ctx, "valuation.compute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("offer_type.name", offerType.Name)),
	)
	defer span.End()

	value, err := c.computeValue(ctx, member, offerType)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("offer.value", value))
	return value, nil
}

func (c *ValuationClient) computeValue(ctx context.Context, member *offers.Member, offerType *offers.OfferType) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return 0, offers.Cancelled(ctx)
			}
			return 0, &offers.UpstreamError{Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	query := url.Values{}
	query.Set("email", member.Email)
	query.Set("offerType", offerType.Name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/calculate-offer-value?%s", c.baseURL, query.Encode()), nil)
	if err != nil {
		return 0, &offers.UpstreamError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, offers.Cancelled(ctx)
		}
		return 0, &offers.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &offers.UpstreamError{StatusCode: resp.StatusCode}
	}

	dec := json.NewDecoder(resp.Body)
	var value int
	if err := dec.Decode(&value); err != nil {
		if ctx.Err() != nil {
			return 0, offers.Cancelled(ctx)
		}
		return 0, fmt.Errorf("%w: %w", offers.ErrDecode, err)
	}
	// The body must hold exactly one JSON integer.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if ctx.Err() != nil {
			return 0, offers.Cancelled(ctx)
		}
		return 0, fmt.Errorf("%w: unexpected data after value %d", offers.ErrDecode, value)
	}

	return value, nil
}
