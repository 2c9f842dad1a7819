package offers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMember(t *testing.T) {
	m, err := NewMember("  Ada ", "Lovelace", " ada@example.com ")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, "Ada", m.FirstName)
	assert.Equal(t, "ada@example.com", m.Email)
	assert.Zero(t, m.NumberOfActiveOffers())
	assert.Empty(t, m.Offers())
}

func TestNewMemberValidation(t *testing.T) {
	tests := []struct {
		name               string
		first, last, email string
		wantField          string
	}{
		{name: "missing first name", first: " ", last: "Lovelace", email: "a@x.com", wantField: "FirstName"},
		{name: "missing last name", first: "Ada", last: "", email: "a@x.com", wantField: "LastName"},
		{name: "missing email", first: "Ada", last: "Lovelace", email: "", wantField: "Email"},
		{name: "malformed email", first: "Ada", last: "Lovelace", email: "not-an-email", wantField: "Email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMember(tt.first, tt.last, tt.email)
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.wantField)
			assert.Nil(t, m)
		})
	}
}

func TestNewOfferType(t *testing.T) {
	begin := time.Date(2024, time.January, 1, 15, 4, 5, 0, time.UTC)

	ot, err := NewOfferType(" NEWYEAR ", ExpirationFixed, 10, &begin)
	require.NoError(t, err)
	assert.Equal(t, "NEWYEAR", ot.Name)
	require.NotNil(t, ot.BeginDate)
	assert.Equal(t, date(2024, time.January, 1), *ot.BeginDate)

	ot, err = NewOfferType("WELCOME10", ExpirationAssignment, 0, nil)
	require.NoError(t, err)
	assert.Nil(t, ot.BeginDate)
}

func TestNewOfferTypeValidation(t *testing.T) {
	begin := date(2024, time.January, 1)

	tests := []struct {
		name           string
		offerName      string
		expirationType ExpirationType
		daysValid      int
		beginDate      *time.Time
	}{
		{name: "missing name", expirationType: ExpirationAssignment, daysValid: 1},
		{name: "unknown policy", offerName: "P", expirationType: "rolling", daysValid: 1},
		{name: "negative days", offerName: "P", expirationType: ExpirationAssignment, daysValid: -3},
		{name: "fixed without begin date", offerName: "P", expirationType: ExpirationFixed, daysValid: 1},
		{name: "negative days with begin date", offerName: "P", expirationType: ExpirationFixed, daysValid: -1, beginDate: &begin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOfferType(tt.offerName, tt.expirationType, tt.daysValid, tt.beginDate)
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestMemberDropOffer(t *testing.T) {
	m := newTestMember(t)
	ot := &OfferType{Name: "P", ExpirationType: ExpirationAssignment}
	first := newOffer(m, ot, date(2026, time.January, 1), 1)
	second := newOffer(m, ot, date(2026, time.January, 2), 2)
	m.appendOffer(first)
	m.appendOffer(second)

	m.dropOffer(first)
	assert.Equal(t, 2, m.NumberOfActiveOffers(), "only the last offer can be dropped")

	m.dropOffer(second)
	assert.Equal(t, 1, m.NumberOfActiveOffers())
	assert.Equal(t, []*Offer{first}, m.Offers())
}

func TestMemberOffersReturnsCopy(t *testing.T) {
	m := newTestMember(t)
	m.appendOffer(newOffer(m, &OfferType{Name: "P"}, date(2026, time.January, 1), 1))

	offers := m.Offers()
	offers[0] = nil
	assert.NotNil(t, m.Offers()[0])
}

func TestMemberMarshalJSON(t *testing.T) {
	m := newTestMember(t)
	ot := &OfferType{ID: uuid.New(), Name: "WELCOME10", ExpirationType: ExpirationAssignment, DaysValid: 30}
	m.appendOffer(newOffer(m, ot, date(2026, time.November, 15), 500))

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var got struct {
		ID                   uuid.UUID `json:"id"`
		Email                string    `json:"email"`
		NumberOfActiveOffers int       `json:"number_of_active_offers"`
		Offers               []struct {
			Value     int       `json:"value"`
			OfferType OfferType `json:"offer_type"`
		} `json:"offers"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, 1, got.NumberOfActiveOffers)
	require.Len(t, got.Offers, 1)
	assert.Equal(t, 500, got.Offers[0].Value)
	assert.Equal(t, "WELCOME10", got.Offers[0].OfferType.Name)
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2026, time.March, 9, 23, 30, 0, 0, loc)
	assert.Equal(t, date(2026, time.March, 9), Day(in))
}
