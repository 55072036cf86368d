// Package worker consumes ledger events and keeps an eye on card balances.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cardledger/internal/amqp"
	"cardledger/internal/core"
	"cardledger/internal/log"
)

// Summarizer computes a card's balance for the invoice period containing
// reference.
type Summarizer interface {
	CardSummary(ctx context.Context, ownerID, cardID int64, reference time.Time) (core.CardSummary, error)
}

type cardKey struct {
	ownerID int64
	cardID  int64
}

// Stats counts what the worker has processed since it started.
type Stats struct {
	Processed int64
	Skipped   int64
	OverLimit int64
}

// BalanceWorker recomputes a card's balance whenever its ledger changes and
// warns when outstanding consumption exceeds the card limit.
type BalanceWorker struct {
	ledger Summarizer
	now    func() time.Time

	mu      sync.Mutex
	tracked map[cardKey]struct{}
	stats   Stats
}

func NewBalanceWorker(ledger Summarizer) *BalanceWorker {
	return &BalanceWorker{
		ledger:  ledger,
		now:     time.Now,
		tracked: make(map[cardKey]struct{}),
	}
}

// HandleLedgerEvent processes a single ledger event from AMQP. A returned
// error requeues the message.
func (w *BalanceWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, ev.Type,
		log.FieldOwnerID, ev.OwnerID,
		log.FieldCardID, ev.CardID,
		log.FieldEntryIDs, ev.EntryIDs)

	key := cardKey{ownerID: ev.OwnerID, cardID: ev.CardID}

	if ev.Type == amqp.EventCardDeleted {
		w.mu.Lock()
		delete(w.tracked, key)
		w.stats.Skipped++
		w.mu.Unlock()
		return nil
	}

	if err := w.check(ctx, key); err != nil {
		return fmt.Errorf("handle %s event: %w", ev.Type, err)
	}
	return nil
}

// RecheckTracked re-evaluates every card seen since startup. This picks up
// period rollovers that no event announces.
func (w *BalanceWorker) RecheckTracked(ctx context.Context) error {
	w.mu.Lock()
	keys := make([]cardKey, 0, len(w.tracked))
	for k := range w.tracked {
		keys = append(keys, k)
	}
	w.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Rechecking tracked cards", "count", len(keys))

	failed := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.check(ctx, k); err != nil {
			slog.ErrorContext(ctx, "Failed to recheck card",
				log.FieldOwnerID, k.ownerID,
				log.FieldCardID, k.cardID,
				log.FieldError, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("recheck tracked cards: %d of %d failed", failed, len(keys))
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (w *BalanceWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *BalanceWorker) check(ctx context.Context, key cardKey) error {
	summary, err := w.ledger.CardSummary(ctx, key.ownerID, key.cardID, w.now())
	if core.IsNotFound(err) {
		// The card went away after the event was published.
		slog.WarnContext(ctx, "Card no longer exists, dropping it",
			log.FieldOwnerID, key.ownerID,
			log.FieldCardID, key.cardID)
		w.mu.Lock()
		delete(w.tracked, key)
		w.stats.Skipped++
		w.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}

	over := summary.AvailableLimit.Cents < 0

	w.mu.Lock()
	w.tracked[key] = struct{}{}
	w.stats.Processed++
	if over {
		w.stats.OverLimit++
	}
	w.mu.Unlock()

	attrs := []any{
		log.FieldOwnerID, key.ownerID,
		log.FieldCardID, key.cardID,
		log.FieldMonthRef, core.MonthOf(summary.Period.End).String(),
		"current_debt", summary.CurrentDebt.String(),
		"total_consumption", summary.TotalConsumption.String(),
		"available_limit", summary.AvailableLimit.String(),
		"period_start", core.DateOf(summary.Period.Start).String(),
		"period_end", core.DateOf(summary.Period.End).String(),
	}
	if over {
		slog.WarnContext(ctx, "Card is over its limit", attrs...)
		return nil
	}
	slog.InfoContext(ctx, "Card balance updated", attrs...)
	return nil
}
