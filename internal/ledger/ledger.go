// Package ledger expands card purchases into monthly installment entries and
// computes card balances from them at read time.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cardledger/internal/amqp"
	"cardledger/internal/core"
)

const defaultSummaryConcurrency = 4

type Options struct {
	// SummaryConcurrency bounds how many card summaries are computed at once.
	SummaryConcurrency int
}

type Ledger struct {
	store  Store
	events Publisher
	opts   Options
	now    func() time.Time
}

// New returns a ledger over store. events may be nil.
func New(store Store, events Publisher, opts Options) *Ledger {
	if opts.SummaryConcurrency <= 0 {
		opts.SummaryConcurrency = defaultSummaryConcurrency
	}
	return &Ledger{
		store:  store,
		events: events,
		opts:   opts,
		now:    time.Now,
	}
}

// CreateInstallments writes one entry per installment, each dated one month
// after the previous one. Every entry bills the same installment amount.
func (l *Ledger) CreateInstallments(ctx context.Context, s NewInstallmentSeries, ownerID int64) ([]core.InstallmentEntry, error) {
	if s.Installments < 1 {
		return nil, &core.ValidationError{Field: "installments", Err: core.ErrInvalidInstallment}
	}
	tmpl := core.InstallmentEntry{
		CardID:            s.CardID,
		OwnerID:           ownerID,
		Description:       s.Description,
		Amount:            s.Amount,
		InstallmentAmount: s.InstallmentAmount,
		PurchaseDate:      s.PurchaseDate,
		Installments:      s.Installments,
		Category:          s.Category,
	}
	entries, err := l.expand(ctx, tmpl, 1)
	if err != nil {
		return nil, fmt.Errorf("create installments: %w", err)
	}
	return entries, nil
}

// CreateRemainingInstallments writes entries StartInstallment..TotalInstallments
// of a series whose first installment fell on OriginalPurchaseDate.
func (l *Ledger) CreateRemainingInstallments(ctx context.Context, s ExistingInstallmentSeries, ownerID int64) ([]core.InstallmentEntry, error) {
	if s.TotalInstallments < 1 {
		return nil, &core.ValidationError{Field: "totalInstallments", Err: core.ErrInvalidInstallment}
	}
	if s.StartInstallment < 1 || s.StartInstallment > s.TotalInstallments {
		return nil, &core.ValidationError{Field: "currentInstallment", Err: core.ErrInvalidInstallment}
	}
	tmpl := core.InstallmentEntry{
		CardID:            s.CardID,
		OwnerID:           ownerID,
		Description:       s.Description,
		Amount:            s.TotalAmount,
		InstallmentAmount: s.InstallmentAmount,
		PurchaseDate:      s.OriginalPurchaseDate,
		Installments:      s.TotalInstallments,
		Category:          s.Category,
	}
	entries, err := l.expand(ctx, tmpl, s.StartInstallment)
	if err != nil {
		return nil, fmt.Errorf("create remaining installments: %w", err)
	}
	return entries, nil
}

// expand validates tmpl, checks card ownership and writes indices
// start..tmpl.Installments in one batch.
func (l *Ledger) expand(ctx context.Context, tmpl core.InstallmentEntry, start int) ([]core.InstallmentEntry, error) {
	switch {
	case tmpl.Installments == 1:
		tmpl.InstallmentAmount = tmpl.Amount
	case tmpl.InstallmentAmount.Cents == 0 && tmpl.Amount.Cents > 0:
		tmpl.InstallmentAmount = tmpl.Amount.Split(tmpl.Installments)
	}
	tmpl.InstallmentIndex = start
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	if _, err := l.store.GetCard(ctx, tmpl.OwnerID, tmpl.CardID); err != nil {
		return nil, err
	}

	tmpl.SeriesID = uuid.NewString()
	tmpl.CreatedAt = l.now().UTC()

	// chained: each date is one month after the previous, possibly clamped, one
	date := tmpl.PurchaseDate.AddMonths(start - 1)
	entries := make([]core.InstallmentEntry, 0, tmpl.Installments-start+1)
	for i := start; i <= tmpl.Installments; i++ {
		e := tmpl
		e.InstallmentIndex = i
		e.PurchaseDate = date
		entries = append(entries, e)
		date = date.AddMonth()
	}

	created, err := l.store.CreateEntries(ctx, entries)
	if err != nil {
		return nil, err
	}

	ev := amqp.NewLedgerEvent(amqp.EventInstallmentsCreated, tmpl.OwnerID, tmpl.CardID, entryIDs(created)...)
	ev.SeriesID = tmpl.SeriesID
	l.publish(ctx, ev)

	return created, nil
}

// CreateEntry writes a single entry, deriving its installment amount.
func (l *Ledger) CreateEntry(ctx context.Context, in NewEntry, ownerID int64) (core.InstallmentEntry, error) {
	e := core.InstallmentEntry{
		CardID:           in.CardID,
		OwnerID:          ownerID,
		Description:      in.Description,
		Amount:           in.Amount,
		PurchaseDate:     in.PurchaseDate,
		Installments:     max(in.Installments, 1),
		InstallmentIndex: max(in.InstallmentIndex, 1),
		Category:         in.Category,
	}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return core.InstallmentEntry{}, fmt.Errorf("create entry: %w", err)
	}
	if _, err := l.store.GetCard(ctx, ownerID, e.CardID); err != nil {
		return core.InstallmentEntry{}, fmt.Errorf("create entry: %w", err)
	}

	e.SeriesID = uuid.NewString()
	e.CreatedAt = l.now().UTC()

	created, err := l.store.CreateEntries(ctx, []core.InstallmentEntry{e})
	if err != nil {
		return core.InstallmentEntry{}, fmt.Errorf("create entry: %w", err)
	}
	e = created[0]

	ev := amqp.NewLedgerEvent(amqp.EventEntryCreated, ownerID, e.CardID, e.ID)
	ev.SeriesID = e.SeriesID
	l.publish(ctx, ev)

	return e, nil
}

// UpdateEntry replaces the editable fields of one entry and recomputes its
// installment amount. Siblings in the same series are not touched.
func (l *Ledger) UpdateEntry(ctx context.Context, ownerID, id int64, u EntryUpdate) (core.InstallmentEntry, error) {
	if u.Installments < 1 {
		return core.InstallmentEntry{}, fmt.Errorf("update entry: %w",
			&core.ValidationError{Field: "installments", Err: core.ErrInvalidInstallment})
	}

	e, err := l.store.GetEntry(ctx, ownerID, id)
	if err != nil {
		return core.InstallmentEntry{}, fmt.Errorf("update entry: %w", err)
	}

	e.Description = u.Description
	e.Amount = u.Amount
	e.PurchaseDate = u.PurchaseDate
	e.Installments = u.Installments
	e.InstallmentIndex = u.InstallmentIndex
	e.Category = u.Category
	e.Normalize()
	if err := e.Validate(); err != nil {
		return core.InstallmentEntry{}, fmt.Errorf("update entry: %w", err)
	}

	updated, err := l.store.UpdateEntry(ctx, e)
	if err != nil {
		return core.InstallmentEntry{}, fmt.Errorf("update entry: %w", err)
	}

	l.publish(ctx, amqp.NewLedgerEvent(amqp.EventEntryUpdated, ownerID, updated.CardID, updated.ID))
	return updated, nil
}

// TogglePaid flips the paid flag of one entry.
func (l *Ledger) TogglePaid(ctx context.Context, ownerID, id int64) (core.InstallmentEntry, error) {
	e, err := l.store.TogglePaid(ctx, ownerID, id)
	if err != nil {
		return core.InstallmentEntry{}, fmt.Errorf("toggle paid: %w", err)
	}
	l.publish(ctx, amqp.NewLedgerEvent(amqp.EventEntryPaidToggled, ownerID, e.CardID, e.ID))
	return e, nil
}

// DeleteEntry removes one entry. Siblings in the same series remain.
func (l *Ledger) DeleteEntry(ctx context.Context, ownerID, id int64) error {
	e, err := l.store.GetEntry(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if err := l.store.DeleteEntry(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	l.publish(ctx, amqp.NewLedgerEvent(amqp.EventEntryDeleted, ownerID, e.CardID, e.ID))
	return nil
}

func (l *Ledger) GetEntry(ctx context.Context, ownerID, id int64) (core.InstallmentEntry, error) {
	e, err := l.store.GetEntry(ctx, ownerID, id)
	if err != nil {
		return core.InstallmentEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns the owner's entries, newest purchase first.
func (l *Ledger) ListEntries(ctx context.Context, ownerID int64, q EntryQuery) ([]core.InstallmentEntry, error) {
	f := core.EntryFilter{
		OwnerID:  ownerID,
		Category: q.Category,
		Paid:     q.Paid,
	}
	if q.Month != nil {
		f.From, f.To = q.Month.First(), q.Month.Last()
	}
	entries, err := l.store.ListEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ListCardEntries returns the entries of one card.
func (l *Ledger) ListCardEntries(ctx context.Context, ownerID, cardID int64, q CardEntryQuery) ([]core.InstallmentEntry, error) {
	card, err := l.store.GetCard(ctx, ownerID, cardID)
	if err != nil {
		return nil, fmt.Errorf("list card entries: %w", err)
	}

	f := core.EntryFilter{OwnerID: ownerID, CardID: card.ID}
	switch {
	case q.ActiveOnly:
		month := core.MonthOf(l.now())
		if q.Month != nil {
			month = *q.Month
		}
		unpaid := false
		f.From, f.To = core.InvoicePeriod(card.ClosingDay, month.First().Time).Days()
		f.Paid = &unpaid
	case q.Month != nil:
		f.From, f.To = q.Month.First(), q.Month.Last()
	}

	entries, err := l.store.ListEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list card entries: %w", err)
	}
	return entries, nil
}

func entryIDs(entries []core.InstallmentEntry) []int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
