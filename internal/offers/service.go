// internal/offers/service.go
package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service defines the interface for the offers service.
type Service interface {
	AssignOffer(ctx context.Context, memberID, offerTypeID uuid.UUID) (*Offer, error)
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	RegisterMember(ctx context.Context, firstName, lastName, email string) (*Member, error)
	DefineOfferType(ctx context.Context, name string, expirationType ExpirationType, daysValid int, beginDate *time.Time) (*OfferType, error)
}

// Repository is a unit of work over members, offer types and offers.
// Find methods return nil, nil when the entity does not exist. Added
// entities are written by SaveChanges in a single transaction.
type Repository interface {
	FindMember(ctx context.Context, id uuid.UUID) (*Member, error)
	FindOfferType(ctx context.Context, id uuid.UUID) (*OfferType, error)
	AddMember(member *Member)
	AddOfferType(offerType *OfferType)
	AddOffer(offer *Offer)
	SaveChanges(ctx context.Context) error
}

// Store opens repositories. Each call returns an independent unit of work.
type Store interface {
	Repository() Repository
}
