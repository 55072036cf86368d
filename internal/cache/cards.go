package cache

import (
	"context"
	"io"
	"time"

	"cardledger/internal/core"
	"cardledger/internal/ledger"
)

// Store is the store being wrapped.
type Store interface {
	ledger.Store
	Ping(ctx context.Context) error
	io.Closer
}

type cardKey struct {
	ownerID int64
	id      int64
}

// CardStore serves GetCard from an LRU and forwards everything else. Card
// writes made through it invalidate the cached copy; writes made by other
// processes become visible once the TTL runs out.
type CardStore struct {
	Store
	cards *LRU[cardKey, core.CreditCard]
}

func NewCardStore(inner Store, size int, ttl time.Duration) *CardStore {
	return &CardStore{
		Store: inner,
		cards: NewLRU[cardKey, core.CreditCard](size, ttl),
	}
}

func (s *CardStore) GetCard(ctx context.Context, ownerID, id int64) (core.CreditCard, error) {
	key := cardKey{ownerID: ownerID, id: id}
	if c, ok := s.cards.Get(key); ok {
		return c, nil
	}
	c, err := s.Store.GetCard(ctx, ownerID, id)
	if err != nil {
		return core.CreditCard{}, err
	}
	s.cards.Set(key, c)
	return c, nil
}

func (s *CardStore) UpdateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	s.cards.Delete(cardKey{ownerID: c.OwnerID, id: c.ID})
	updated, err := s.Store.UpdateCard(ctx, c)
	if err != nil {
		return core.CreditCard{}, err
	}
	s.cards.Set(cardKey{ownerID: updated.OwnerID, id: updated.ID}, updated)
	return updated, nil
}

func (s *CardStore) DeleteCard(ctx context.Context, ownerID, id int64) error {
	s.cards.Delete(cardKey{ownerID: ownerID, id: id})
	return s.Store.DeleteCard(ctx, ownerID, id)
}

// Sweep drops expired cards. Expired items are also dropped lazily on read.
func (s *CardStore) Sweep() int {
	return s.cards.CleanExpired()
}
