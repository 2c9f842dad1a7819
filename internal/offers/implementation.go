// internal/offers/implementation.go
package offers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface.
type service struct {
	store      Store
	calculator ValueCalculator
	engine     *Engine
	locks      *memberLocks
	logger     *slog.Logger
	assigned   metric.Int64Counter
	failures   metric.Int64Counter
}

// NewService creates a new offers service instance. Offers are valued by
// calculator and persisted through store.
func NewService(store Store, calculator ValueCalculator, engine *Engine, logger *slog.Logger) Service {
	if engine == nil {
		engine = NewEngine()
	}
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter("offernexus/offers")
	assigned, err := meter.Int64Counter("offers.assigned",
		metric.WithDescription("Offers assigned and committed"))
	if err != nil {
		otel.Handle(err)
	}
	failures, err := meter.Int64Counter("offers.assign_failures",
		metric.WithDescription("Offer assignments that failed, by reason"))
	if err != nil {
		otel.Handle(err)
	}

	return &service{
		store:      store,
		calculator: calculator,
		engine:     engine,
		locks:      newMemberLocks(),
		logger:     logger,
		assigned:   assigned,
		failures:   failures,
	}
}

// AssignOffer loads the member and offer type, assigns a new offer and
// commits the offer together with the member's updated state.
func (s *service) AssignOffer(ctx context.Context, memberID, offerTypeID uuid.UUID) (*Offer, error) {
	ctx, span := tracer.Start(ctx, "offers.assign",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("offer_type.id", offerTypeID.String()),
		),
	)
	defer span.End()

	logger := s.logger.With("member_id", memberID, "offer_type_id", offerTypeID)

	offer, err := s.assignOffer(ctx, memberID, offerTypeID)
	if err != nil {
		reason := failureReason(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("failure.reason", reason))
		if s.failures != nil {
			s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		}
		logger.WarnContext(ctx, "offer assignment failed", "reason", reason, "error", err)
		return nil, err
	}

	if s.assigned != nil {
		s.assigned.Add(ctx, 1, metric.WithAttributes(attribute.String("offer_type", offer.Type.Name)))
	}
	logger.InfoContext(ctx, "offer assigned",
		"offer_id", offer.ID,
		"value", offer.Value,
		"date_expiring", offer.DateExpiring.Format(time.DateOnly),
	)
	return offer, nil
}

func (s *service) assignOffer(ctx context.Context, memberID, offerTypeID uuid.UUID) (*Offer, error) {
	unlock, err := s.locks.lock(ctx, memberID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	repo := s.store.Repository()

	member, err := repo.FindMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, memberID)
	}

	offerType, err := repo.FindOfferType(ctx, offerTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer type: %w", err)
	}
	if offerType == nil {
		return nil, fmt.Errorf("%w: offer type %s", ErrNotFound, offerTypeID)
	}

	offer, err := s.engine.AssignOffer(ctx, member, offerType, s.calculator)
	if err != nil {
		return nil, err
	}

	repo.AddOffer(offer)
	if err := repo.SaveChanges(ctx); err != nil {
		member.dropOffer(offer)
		return nil, fmt.Errorf("failed to save offer: %w", err)
	}

	return offer, nil
}

// GetMember retrieves a member and its offers by ID.
func (s *service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	member, err := s.store.Repository().FindMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, id)
	}
	return member, nil
}

// RegisterMember creates a new member with no offers.
func (s *service) RegisterMember(ctx context.Context, firstName, lastName, email string) (*Member, error) {
	member, err := NewMember(firstName, lastName, email)
	if err != nil {
		return nil, err
	}

	repo := s.store.Repository()
	repo.AddMember(member)
	if err := repo.SaveChanges(ctx); err != nil {
		return nil, fmt.Errorf("failed to save member: %w", err)
	}

	s.logger.InfoContext(ctx, "member registered", "member_id", member.ID)
	return member, nil
}

// DefineOfferType creates a new offer type.
func (s *service) DefineOfferType(ctx context.Context, name string, expirationType ExpirationType, daysValid int, beginDate *time.Time) (*OfferType, error) {
	offerType, err := NewOfferType(name, expirationType, daysValid, beginDate)
	if err != nil {
		return nil, err
	}

	repo := s.store.Repository()
	repo.AddOfferType(offerType)
	if err := repo.SaveChanges(ctx); err != nil {
		return nil, fmt.Errorf("failed to save offer type: %w", err)
	}

	s.logger.InfoContext(ctx, "offer type defined", "offer_type_id", offerType.ID, "name", offerType.Name)
	return offerType, nil
}

// failureReason names the error's category for logs and metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrUnsupportedPolicy):
		return "unsupported_policy"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "unknown"
	}
}
