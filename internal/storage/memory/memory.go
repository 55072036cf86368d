// Package memory is a process-local store for development and tests. Data is
// lost on exit.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"cardledger/internal/core"
)

type Store struct {
	mu       sync.Mutex
	cards    map[int64]core.CreditCard
	entries  map[int64]core.InstallmentEntry
	nextCard int64
	nextItem int64
}

func New() *Store {
	return &Store{
		cards:   map[int64]core.CreditCard{},
		entries: map[int64]core.InstallmentEntry{},
	}
}

func (s *Store) CreateCard(_ context.Context, c core.CreditCard) (core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCard++
	c.ID = s.nextCard
	s.cards[c.ID] = c
	return c, nil
}

func (s *Store) GetCard(_ context.Context, ownerID, id int64) (core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.card(ownerID, id)
}

func (s *Store) card(ownerID, id int64) (core.CreditCard, error) {
	c, ok := s.cards[id]
	if !ok || c.OwnerID != ownerID {
		return core.CreditCard{}, &core.NotFoundError{Resource: "credit card", ID: id}
	}
	return c, nil
}

func (s *Store) ListCards(_ context.Context, ownerID int64) ([]core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.CreditCard{}
	for _, c := range s.cards {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b core.CreditCard) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) UpdateCard(_ context.Context, c core.CreditCard) (core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.card(c.OwnerID, c.ID); err != nil {
		return core.CreditCard{}, err
	}
	s.cards[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCard(_ context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.card(ownerID, id); err != nil {
		return err
	}
	delete(s.cards, id)
	for eid, e := range s.entries {
		if e.CardID == id {
			delete(s.entries, eid)
		}
	}
	return nil
}

// CreateEntries assigns ids under one lock, so a batch is never seen half
// written.
func (s *Store) CreateEntries(_ context.Context, entries []core.InstallmentEntry) ([]core.InstallmentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, err := s.card(e.OwnerID, e.CardID); err != nil {
			return nil, err
		}
	}
	out := make([]core.InstallmentEntry, len(entries))
	for i, e := range entries {
		s.nextItem++
		e.ID = s.nextItem
		s.entries[e.ID] = e
		out[i] = e
	}
	return out, nil
}

func (s *Store) GetEntry(_ context.Context, ownerID, id int64) (core.InstallmentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(ownerID, id)
}

func (s *Store) entry(ownerID, id int64) (core.InstallmentEntry, error) {
	e, ok := s.entries[id]
	if !ok || e.OwnerID != ownerID {
		return core.InstallmentEntry{}, &core.NotFoundError{Resource: "credit card expense", ID: id}
	}
	return e, nil
}

func (s *Store) ListEntries(_ context.Context, f core.EntryFilter) ([]core.InstallmentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.InstallmentEntry{}
	for _, e := range s.entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b core.InstallmentEntry) int {
		if n := b.PurchaseDate.Compare(a.PurchaseDate.Time); n != 0 {
			return n
		}
		if n := strings.Compare(a.Description, b.Description); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) UpdateEntry(_ context.Context, e core.InstallmentEntry) (core.InstallmentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.entry(e.OwnerID, e.ID); err != nil {
		return core.InstallmentEntry{}, err
	}
	s.entries[e.ID] = e
	return e, nil
}

func (s *Store) TogglePaid(_ context.Context, ownerID, id int64) (core.InstallmentEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(ownerID, id)
	if err != nil {
		return core.InstallmentEntry{}, err
	}
	e.Paid = !e.Paid
	s.entries[id] = e
	return e, nil
}

func (s *Store) DeleteEntry(_ context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.entry(ownerID, id); err != nil {
		return err
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) SumInstallments(_ context.Context, f core.EntryFilter) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, e := range s.entries {
		if f.Matches(e) {
			total = total.Add(e.InstallmentAmount)
		}
	}
	return total, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
