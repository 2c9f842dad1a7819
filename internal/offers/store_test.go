package offers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memberRecord struct {
	firstName, lastName, email string
	version                    int
	offers                     []*Offer
	activeOffers               int
}

// memStore is an in-memory Store. Every repository gets its own copies of
// the members it loads, like a database-backed store.
type memStore struct {
	mu         sync.Mutex
	members    map[uuid.UUID]memberRecord
	offerTypes map[uuid.UUID]*OfferType
	saveErr    error
	saves      int
}

func newMemStore() *memStore {
	return &memStore{
		members:    make(map[uuid.UUID]memberRecord),
		offerTypes: make(map[uuid.UUID]*OfferType),
	}
}

func (s *memStore) Repository() Repository {
	return &memRepository{store: s}
}

func (s *memStore) seedMember(t *testing.T, email string) uuid.UUID {
	t.Helper()
	m, err := NewMember("Ada", "Lovelace", email)
	require.NoError(t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = memberRecord{firstName: m.FirstName, lastName: m.LastName, email: m.Email}
	return m.ID
}

func (s *memStore) seedOfferType(ot *OfferType) uuid.UUID {
	if ot.ID == uuid.Nil {
		ot.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offerTypes[ot.ID] = ot
	return ot.ID
}

func (s *memStore) record(id uuid.UUID) memberRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[id]
}

func (s *memStore) failSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

type memRepository struct {
	store      *memStore
	loaded     []*Member
	newMembers []*Member
	newTypes   []*OfferType
	newOffers  []*Offer
}

func (r *memRepository) FindMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	if ctx.Err() != nil {
		return nil, Cancelled(ctx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.members[id]
	if !ok {
		return nil, nil
	}
	offers := append([]*Offer(nil), rec.offers...)
	m := RestoreMember(id, rec.firstName, rec.lastName, rec.email, rec.version, offers, rec.activeOffers)
	r.loaded = append(r.loaded, m)
	return m, nil
}

func (r *memRepository) FindOfferType(ctx context.Context, id uuid.UUID) (*OfferType, error) {
	if ctx.Err() != nil {
		return nil, Cancelled(ctx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.offerTypes[id], nil
}

func (r *memRepository) AddMember(m *Member) { r.newMembers = append(r.newMembers, m) }
func (r *memRepository) AddOfferType(t *OfferType) { r.newTypes = append(r.newTypes, t) }
func (r *memRepository) AddOffer(o *Offer) { r.newOffers = append(r.newOffers, o) }

func (r *memRepository) SaveChanges(ctx context.Context) error {
	if ctx.Err() != nil {
		return Cancelled(ctx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.saveErr != nil {
		return r.store.saveErr
	}

	added := make(map[uuid.UUID]int)
	for _, o := range r.newOffers {
		added[o.MemberID]++
	}
	for _, m := range r.loaded {
		if added[m.ID] == 0 {
			continue
		}
		if r.store.members[m.ID].version != m.Version {
			return fmt.Errorf("%w: %w", ErrPersistence, ErrConcurrencyConflict)
		}
	}

	for _, m := range r.newMembers {
		r.store.members[m.ID] = memberRecord{firstName: m.FirstName, lastName: m.LastName, email: m.Email}
	}
	for _, t := range r.newTypes {
		r.store.offerTypes[t.ID] = t
	}
	for _, m := range r.loaded {
		if added[m.ID] == 0 {
			continue
		}
		rec := r.store.members[m.ID]
		rec.offers = m.Offers()
		rec.activeOffers = m.NumberOfActiveOffers()
		rec.version += added[m.ID]
		r.store.members[m.ID] = rec
		m.Version = rec.version
	}
	r.store.saves++
	r.newMembers, r.newTypes, r.newOffers = nil, nil, nil
	return nil
}
