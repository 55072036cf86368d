package ledger

import (
	"context"
	"log/slog"

	"cardledger/internal/amqp"
)

// publish is best effort: the mutation is already committed, so a failure is
// only logged.
func (l *Ledger) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if l.events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping ledger event", "type", ev.Type)
		return
	}
	if err := l.events.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type,
			"card_id", ev.CardID,
			"entry_ids", ev.EntryIDs,
			"error", err)
	}
}
