package ledger

import (
	"context"

	"cardledger/internal/amqp"
	"cardledger/internal/core"
)

// Store is the persistence the ledger drives. Every method is scoped to an
// owner; records of other owners surface as *core.NotFoundError. Failures of
// the backing store surface as *core.PersistenceError.
type Store interface {
	CreateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error)
	GetCard(ctx context.Context, ownerID, id int64) (core.CreditCard, error)
	// ListCards orders by name.
	ListCards(ctx context.Context, ownerID int64) ([]core.CreditCard, error)
	UpdateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error)
	// DeleteCard also removes the card's entries.
	DeleteCard(ctx context.Context, ownerID, id int64) error

	// CreateEntries writes all entries or none and returns them with ids.
	CreateEntries(ctx context.Context, entries []core.InstallmentEntry) ([]core.InstallmentEntry, error)
	GetEntry(ctx context.Context, ownerID, id int64) (core.InstallmentEntry, error)
	// ListEntries orders by purchase date descending, then description.
	ListEntries(ctx context.Context, f core.EntryFilter) ([]core.InstallmentEntry, error)
	UpdateEntry(ctx context.Context, e core.InstallmentEntry) (core.InstallmentEntry, error)
	TogglePaid(ctx context.Context, ownerID, id int64) (core.InstallmentEntry, error)
	DeleteEntry(ctx context.Context, ownerID, id int64) error
	// SumInstallments adds up InstallmentAmount over the matching entries.
	SumInstallments(ctx context.Context, f core.EntryFilter) (core.Money, error)
}

// Publisher receives an event after every successful mutation.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}
