// internal/offers/domain.go
package offers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExpirationType selects the policy used to compute an offer's expiry date.
type ExpirationType string

const (
	// ExpirationAssignment offers expire DaysValid days after the day they are assigned.
	ExpirationAssignment ExpirationType = "assignment"
	// ExpirationFixed offers expire DaysValid days after the offer type's BeginDate.
	ExpirationFixed ExpirationType = "fixed"
)

// Member represents a member that offers are assigned to.
//
// The offer sequence and the active offer count are only changed together by
// the assignment engine.
type Member struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name" validate:"required"`
	LastName  string    `json:"last_name" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Version   int       `json:"version"`

	offers       []*Offer
	activeOffers int
}

// NewMember validates the member's names and email and returns a member with
// a fresh ID and no offers.
func NewMember(firstName, lastName, email string) (*Member, error) {
	m := &Member{
		ID:        uuid.New(),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     strings.TrimSpace(email),
	}
	if err := validateEntity(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RestoreMember rebuilds a persisted member. It does not validate.
func RestoreMember(id uuid.UUID, firstName, lastName, email string, version int, offers []*Offer, activeOffers int) *Member {
	return &Member{
		ID:           id,
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Version:      version,
		offers:       offers,
		activeOffers: activeOffers,
	}
}

// Offers returns the member's offers in assignment order.
func (m *Member) Offers() []*Offer {
	out := make([]*Offer, len(m.offers))
	copy(out, m.offers)
	return out
}

// NumberOfActiveOffers returns the number of offers currently considered active.
func (m *Member) NumberOfActiveOffers() int {
	return m.activeOffers
}

func (m *Member) appendOffer(o *Offer) {
	m.offers = append(m.offers, o)
	m.activeOffers++
}

// dropOffer reverts appendOffer for the most recently appended offer.
func (m *Member) dropOffer(o *Offer) {
	n := len(m.offers)
	if n == 0 || m.offers[n-1] != o {
		return
	}
	m.offers[n-1] = nil
	m.offers = m.offers[:n-1]
	m.activeOffers--
}

type memberView struct {
	ID                   uuid.UUID `json:"id"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	Email                string    `json:"email"`
	Version              int       `json:"version"`
	Offers               []*Offer  `json:"offers"`
	NumberOfActiveOffers int       `json:"number_of_active_offers"`
}

// MarshalJSON includes the offer sequence and the active offer count.
func (m *Member) MarshalJSON() ([]byte, error) {
	return json.Marshal(memberView{
		ID:                   m.ID,
		FirstName:            m.FirstName,
		LastName:             m.LastName,
		Email:                m.Email,
		Version:              m.Version,
		Offers:               m.Offers(),
		NumberOfActiveOffers: m.activeOffers,
	})
}

// OfferType is the template an offer is created from.
type OfferType struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name" validate:"required"`
	ExpirationType ExpirationType `json:"expiration_type" validate:"oneof=assignment fixed"`
	DaysValid      int            `json:"days_valid" validate:"gte=0"`
	BeginDate      *time.Time     `json:"begin_date,omitempty" validate:"required_if=ExpirationType fixed"`
}

// NewOfferType validates and returns an offer type with a fresh ID.
// BeginDate is truncated to its calendar day.
func NewOfferType(name string, expirationType ExpirationType, daysValid int, beginDate *time.Time) (*OfferType, error) {
	t := &OfferType{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(name),
		ExpirationType: expirationType,
		DaysValid:      daysValid,
	}
	if beginDate != nil {
		day := Day(*beginDate)
		t.BeginDate = &day
	}
	if err := validateEntity(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Offer is a value and expiry granted to a member from an offer type.
type Offer struct {
	ID           uuid.UUID  `json:"id"`
	MemberID     uuid.UUID  `json:"member_id"`
	Type         *OfferType `json:"offer_type"`
	DateExpiring time.Time  `json:"date_expiring"`
	Value        int        `json:"value"`
}

func newOffer(member *Member, offerType *OfferType, dateExpiring time.Time, value int) *Offer {
	return &Offer{
		ID:           uuid.New(),
		MemberID:     member.ID,
		Type:         offerType,
		DateExpiring: dateExpiring,
		Value:        value,
	}
}

// RestoreOffer rebuilds a persisted offer.
func RestoreOffer(id, memberID uuid.UUID, offerType *OfferType, dateExpiring time.Time, value int) *Offer {
	return &Offer{
		ID:           id,
		MemberID:     memberID,
		Type:         offerType,
		DateExpiring: dateExpiring,
		Value:        value,
	}
}

// Day returns midnight UTC of t's calendar date as seen in t's location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// OfferAssignedEvent is recorded when an offer is committed for a member.
type OfferAssignedEvent struct {
	OfferID      uuid.UUID `json:"offer_id"`
	MemberID     uuid.UUID `json:"member_id"`
	OfferTypeID  uuid.UUID `json:"offer_type_id"`
	DateExpiring string    `json:"date_expiring"`
	Value        int       `json:"value"`
}
