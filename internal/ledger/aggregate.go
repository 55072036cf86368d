package ledger

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"cardledger/internal/core"
)

// CurrentCycleDebt sums the unpaid installments of a card whose purchase date
// falls in the invoice period containing reference.
func (l *Ledger) CurrentCycleDebt(ctx context.Context, ownerID, cardID int64, reference time.Time) (core.Money, error) {
	card, err := l.store.GetCard(ctx, ownerID, cardID)
	if err != nil {
		return core.Money{}, fmt.Errorf("current cycle debt: %w", err)
	}
	debt, err := l.cycleDebt(ctx, card, core.InvoicePeriod(card.ClosingDay, reference))
	if err != nil {
		return core.Money{}, fmt.Errorf("current cycle debt: %w", err)
	}
	return debt, nil
}

// OutstandingConsumption sums every unpaid installment of a card, whatever
// its cycle.
func (l *Ledger) OutstandingConsumption(ctx context.Context, ownerID, cardID int64) (core.Money, error) {
	card, err := l.store.GetCard(ctx, ownerID, cardID)
	if err != nil {
		return core.Money{}, fmt.Errorf("outstanding consumption: %w", err)
	}
	total, err := l.outstanding(ctx, card)
	if err != nil {
		return core.Money{}, fmt.Errorf("outstanding consumption: %w", err)
	}
	return total, nil
}

// CardSummary returns a card with both aggregates for the invoice period
// containing reference.
func (l *Ledger) CardSummary(ctx context.Context, ownerID, cardID int64, reference time.Time) (core.CardSummary, error) {
	card, err := l.store.GetCard(ctx, ownerID, cardID)
	if err != nil {
		return core.CardSummary{}, fmt.Errorf("card summary: %w", err)
	}
	s, err := l.summarize(ctx, card, reference)
	if err != nil {
		return core.CardSummary{}, fmt.Errorf("card summary: %w", err)
	}
	return s, nil
}

// ListCardSummaries summarizes every card of the owner, ordered by name.
func (l *Ledger) ListCardSummaries(ctx context.Context, ownerID int64, reference time.Time) ([]core.CardSummary, error) {
	cards, err := l.store.ListCards(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	out := make([]core.CardSummary, len(cards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.SummaryConcurrency)
	for i, card := range cards {
		i, card := i, card
		g.Go(func() error {
			s, err := l.summarize(gctx, card, reference)
			if err != nil {
				return fmt.Errorf("card %d: %w", card.ID, err)
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return out, nil
}

func (l *Ledger) summarize(ctx context.Context, card core.CreditCard, reference time.Time) (core.CardSummary, error) {
	period := core.InvoicePeriod(card.ClosingDay, reference)
	debt, err := l.cycleDebt(ctx, card, period)
	if err != nil {
		return core.CardSummary{}, err
	}
	total, err := l.outstanding(ctx, card)
	if err != nil {
		return core.CardSummary{}, err
	}
	return core.CardSummary{
		CreditCard:       card,
		Period:           period,
		CurrentDebt:      debt,
		TotalConsumption: total,
		AvailableLimit:   card.Limit.Sub(total),
	}, nil
}

func (l *Ledger) cycleDebt(ctx context.Context, card core.CreditCard, period core.Period) (core.Money, error) {
	unpaid := false
	from, to := period.Days()
	return l.store.SumInstallments(ctx, core.EntryFilter{
		OwnerID: card.OwnerID,
		CardID:  card.ID,
		From:    from,
		To:      to,
		Paid:    &unpaid,
	})
}

func (l *Ledger) outstanding(ctx context.Context, card core.CreditCard) (core.Money, error) {
	unpaid := false
	return l.store.SumInstallments(ctx, core.EntryFilter{
		OwnerID: card.OwnerID,
		CardID:  card.ID,
		Paid:    &unpaid,
	})
}
