package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"offernexus/internal/offers"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type memberRow struct {
	ID           uuid.UUID `db:"id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Email        string    `db:"email"`
	ActiveOffers int       `db:"number_of_active_offers"`
	Version      int       `db:"version"`
}

type offerTypeRow struct {
	ID             uuid.UUID      `db:"offer_type_id"`
	Name           string         `db:"name"`
	ExpirationType string         `db:"expiration_type"`
	DaysValid      int            `db:"days_valid"`
	BeginDate      sql.NullString `db:"begin_date"`
}

type offerRow struct {
	ID           uuid.UUID `db:"id"`
	DateExpiring string    `db:"date_expiring"`
	Value        int       `db:"value"`
	offerTypeRow
}

// session tracks loaded and added entities for one unit of work.
type session struct {
	store      *Store
	members    map[uuid.UUID]*offers.Member
	offerTypes map[uuid.UUID]*offers.OfferType

	newMembers    []*offers.Member
	newOfferTypes []*offers.OfferType
	newOffers     []*offers.Offer
}

func newSession(s *Store) *session {
	return &session{
		store:      s,
		members:    make(map[uuid.UUID]*offers.Member),
		offerTypes: make(map[uuid.UUID]*offers.OfferType),
	}
}

// FindMember loads a member with its offers in assignment order.
func (s *session) FindMember(ctx context.Context, id uuid.UUID) (*offers.Member, error) {
	if m, ok := s.members[id]; ok {
		return m, nil
	}

	ctx, span := s.store.tracer.Start(ctx, "store.find_member",
		trace.WithAttributes(attribute.String("member.id", id.String())),
	)
	defer span.End()

	db := s.store.db
	var row memberRow
	err := db.GetContext(ctx, &row, db.Rebind(`
		SELECT id, first_name, last_name, email, number_of_active_offers, version
		FROM members
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, failure(ctx, "query member", err)
	}

	var rows []offerRow
	err = db.SelectContext(ctx, &rows, db.Rebind(`
		SELECT o.id, o.date_expiring, o.value,
		       t.id AS offer_type_id, t.name, t.expiration_type, t.days_valid, t.begin_date
		FROM offers o
		JOIN offer_types t ON t.id = o.offer_type_id
		WHERE o.member_id = ?
		ORDER BY o.position ASC
	`), id)
	if err != nil {
		return nil, failure(ctx, "query offers", err)
	}

	assigned := make([]*offers.Offer, 0, len(rows))
	for _, r := range rows {
		t, err := s.trackOfferType(r.offerTypeRow)
		if err != nil {
			return nil, fmt.Errorf("%w: offer %s: %w", offers.ErrPersistence, r.ID, err)
		}
		dateExpiring, err := time.Parse(time.DateOnly, r.DateExpiring)
		if err != nil {
			return nil, fmt.Errorf("%w: offer %s: %w", offers.ErrPersistence, r.ID, err)
		}
		assigned = append(assigned, offers.RestoreOffer(r.ID, id, t, dateExpiring, r.Value))
	}

	m := offers.RestoreMember(row.ID, row.FirstName, row.LastName, row.Email, row.Version, assigned, row.ActiveOffers)
	s.members[id] = m
	span.SetAttributes(attribute.Int("offers.loaded", len(assigned)))
	return m, nil
}

// FindOfferType loads an offer type.
func (s *session) FindOfferType(ctx context.Context, id uuid.UUID) (*offers.OfferType, error) {
	if t, ok := s.offerTypes[id]; ok {
		return t, nil
	}

	db := s.store.db
	var row offerTypeRow
	err := db.GetContext(ctx, &row, db.Rebind(`
		SELECT id AS offer_type_id, name, expiration_type, days_valid, begin_date
		FROM offer_types
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, failure(ctx, "query offer type", err)
	}

	t, err := s.trackOfferType(row)
	if err != nil {
		return nil, fmt.Errorf("%w: offer type %s: %w", offers.ErrPersistence, id, err)
	}
	return t, nil
}

func (s *session) trackOfferType(row offerTypeRow) (*offers.OfferType, error) {
	if t, ok := s.offerTypes[row.ID]; ok {
		return t, nil
	}
	t := &offers.OfferType{
		ID:             row.ID,
		Name:           row.Name,
		ExpirationType: offers.ExpirationType(row.ExpirationType),
		DaysValid:      row.DaysValid,
	}
	if row.BeginDate.Valid {
		d, err := time.Parse(time.DateOnly, row.BeginDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse begin date: %w", err)
		}
		t.BeginDate = &d
	}
	s.offerTypes[row.ID] = t
	return t, nil
}

func (s *session) AddMember(member *offers.Member) {
	s.newMembers = append(s.newMembers, member)
}

func (s *session) AddOfferType(offerType *offers.OfferType) {
	s.newOfferTypes = append(s.newOfferTypes, offerType)
}

func (s *session) AddOffer(offer *offers.Offer) {
	s.newOffers = append(s.newOffers, offer)
}

// SaveChanges writes every added entity and the affected members' offer
// counts in one transaction. A member changed concurrently since it was
// loaded fails the whole transaction with offers.ErrConcurrencyConflict.
func (s *session) SaveChanges(ctx context.Context) error {
	if len(s.newMembers) == 0 && len(s.newOfferTypes) == 0 && len(s.newOffers) == 0 {
		return nil
	}

	ctx, span := s.store.tracer.Start(ctx, "store.save_changes",
		trace.WithAttributes(
			attribute.Int("members.added", len(s.newMembers)),
			attribute.Int("offer_types.added", len(s.newOfferTypes)),
			attribute.Int("offers.added", len(s.newOffers)),
		),
	)
	defer span.End()

	versions, err := s.commit(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for m, v := range versions {
		m.Version = v
	}
	for _, m := range s.newMembers {
		s.members[m.ID] = m
	}
	for _, t := range s.newOfferTypes {
		s.offerTypes[t.ID] = t
	}
	s.newMembers, s.newOfferTypes, s.newOffers = nil, nil, nil
	return nil
}

func (s *session) commit(ctx context.Context) (map[*offers.Member]int, error) {
	tx, err := s.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, failure(ctx, "begin transaction", err)
	}
	defer tx.Rollback()

	for _, m := range s.newMembers {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO members (id, first_name, last_name, email, number_of_active_offers, version)
			VALUES (?, ?, ?, ?, 0, 0)
		`), m.ID, m.FirstName, m.LastName, m.Email)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: email %q is already registered", offers.ErrInvalidArgument, m.Email)
			}
			return nil, failure(ctx, "insert member", err)
		}
	}

	for _, t := range s.newOfferTypes {
		var beginDate sql.NullString
		if t.BeginDate != nil {
			beginDate = sql.NullString{String: t.BeginDate.Format(time.DateOnly), Valid: true}
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO offer_types (id, name, expiration_type, days_valid, begin_date)
			VALUES (?, ?, ?, ?, ?)
		`), t.ID, t.Name, string(t.ExpirationType), t.DaysValid, beginDate)
		if err != nil {
			return nil, failure(ctx, "insert offer type", err)
		}
	}

	versions := make(map[*offers.Member]int)
	for _, group := range s.offersByMember() {
		m, err := s.owner(group[0].MemberID)
		if err != nil {
			return nil, err
		}
		version, err := s.writeOffers(ctx, tx, m, group)
		if err != nil {
			return nil, err
		}
		versions[m] = version
	}

	if err := tx.Commit(); err != nil {
		return nil, failure(ctx, "commit transaction", err)
	}
	return versions, nil
}

// writeOffers inserts a member's new offers, bumps the member's version from
// the loaded one and appends one event per offer.
func (s *session) writeOffers(ctx context.Context, tx *sqlx.Tx, m *offers.Member, added []*offers.Offer) (int, error) {
	expectedVersion := m.Version
	newVersion := expectedVersion + len(added)
	base := len(m.Offers()) - len(added)

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE members
		SET number_of_active_offers = ?, version = ?
		WHERE id = ? AND version = ?
	`), m.NumberOfActiveOffers(), newVersion, m.ID, expectedVersion)
	if err != nil {
		return 0, failure(ctx, "update member", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, failure(ctx, "update member", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: member %s: %w", offers.ErrPersistence, m.ID, offers.ErrConcurrencyConflict)
	}

	events := make([]event, 0, len(added))
	for i, o := range added {
		dateExpiring := o.DateExpiring.Format(time.DateOnly)
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO offers (id, member_id, offer_type_id, position, date_expiring, value)
			VALUES (?, ?, ?, ?, ?, ?)
		`), o.ID, m.ID, o.Type.ID, base+i, dateExpiring, o.Value)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("%w: offer %s: %w", offers.ErrPersistence, o.ID, offers.ErrConcurrencyConflict)
			}
			return 0, failure(ctx, "insert offer", err)
		}

		events = append(events, event{
			Type: "OfferAssigned",
			Data: offers.OfferAssignedEvent{
				OfferID:      o.ID,
				MemberID:     m.ID,
				OfferTypeID:  o.Type.ID,
				DateExpiring: dateExpiring,
				Value:        o.Value,
			},
		})
	}

	if err := s.store.appendEvents(ctx, tx, m.ID, "member", expectedVersion, events); err != nil {
		return 0, err
	}
	return newVersion, nil
}

// offersByMember groups added offers by member, in order of first appearance.
func (s *session) offersByMember() [][]*offers.Offer {
	index := make(map[uuid.UUID]int)
	var groups [][]*offers.Offer
	for _, o := range s.newOffers {
		i, ok := index[o.MemberID]
		if !ok {
			i = len(groups)
			index[o.MemberID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], o)
	}
	return groups
}

func (s *session) owner(id uuid.UUID) (*offers.Member, error) {
	if m, ok := s.members[id]; ok {
		return m, nil
	}
	for _, m := range s.newMembers {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: offer for member %s that was not loaded in this unit of work", offers.ErrPersistence, id)
}
