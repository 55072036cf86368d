package ledger

import (
	"context"
	"fmt"
	"strings"

	"cardledger/internal/amqp"
	"cardledger/internal/core"
)

func (in CardInput) card(ownerID int64) core.CreditCard {
	return core.CreditCard{
		OwnerID:    ownerID,
		Name:       strings.TrimSpace(in.Name),
		Limit:      in.Limit,
		ClosingDay: in.ClosingDay,
		DueDay:     in.DueDay,
	}
}

func (l *Ledger) CreateCard(ctx context.Context, ownerID int64, in CardInput) (core.CreditCard, error) {
	c := in.card(ownerID)
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, fmt.Errorf("create card: %w", err)
	}
	c.CreatedAt = l.now().UTC()

	created, err := l.store.CreateCard(ctx, c)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("create card: %w", err)
	}
	return created, nil
}

// UpdateCard replaces the owner-editable fields of a card. Existing entries
// are kept; changing the closing day moves them between invoice periods on
// the next read.
func (l *Ledger) UpdateCard(ctx context.Context, ownerID, id int64, in CardInput) (core.CreditCard, error) {
	existing, err := l.store.GetCard(ctx, ownerID, id)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("update card: %w", err)
	}

	c := in.card(ownerID)
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, fmt.Errorf("update card: %w", err)
	}
	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt

	updated, err := l.store.UpdateCard(ctx, c)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("update card: %w", err)
	}
	return updated, nil
}

// DeleteCard removes a card together with all of its entries.
func (l *Ledger) DeleteCard(ctx context.Context, ownerID, id int64) error {
	if err := l.store.DeleteCard(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	l.publish(ctx, amqp.NewLedgerEvent(amqp.EventCardDeleted, ownerID, id))
	return nil
}
