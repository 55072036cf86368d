package ledger

import (
	"context"
	"testing"

	"cardledger/internal/amqp"
	"cardledger/internal/core"
)

func TestCreateCard_Validation(t *testing.T) {
	l, _, _ := newTestLedger(t)
	valid := CardInput{Name: "Visa", Limit: core.Money{Cents: 500000}, ClosingDay: 5, DueDay: 12}

	tests := []struct {
		name   string
		mutate func(*CardInput)
		field  string
	}{
		{"valid", func(*CardInput) {}, ""},
		{"blank name", func(c *CardInput) { c.Name = " " }, "name"},
		{"zero limit", func(c *CardInput) { c.Limit = core.Money{} }, "limit"},
		{"closing day 0", func(c *CardInput) { c.ClosingDay = 0 }, "closingDay"},
		{"closing day 32", func(c *CardInput) { c.ClosingDay = 32 }, "closingDay"},
		{"due day 32", func(c *CardInput) { c.DueDay = 32 }, "dueDay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			c, err := l.CreateCard(context.Background(), owner, in)
			if got := validationField(err); got != tt.field {
				t.Fatalf("CreateCard() field = %q, want %q (err %v)", got, tt.field, err)
			}
			if tt.field == "" && (c.ID == 0 || c.OwnerID != owner || c.CreatedAt.IsZero()) {
				t.Errorf("CreateCard() = %+v", c)
			}
		})
	}
}

func TestUpdateCard(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)

	got, err := l.UpdateCard(ctx, owner, card.ID, CardInput{Name: "Visa Gold", Limit: core.Money{Cents: 200000}, ClosingDay: 25, DueDay: 5})
	if err != nil {
		t.Fatalf("UpdateCard() error = %v", err)
	}
	if got.Name != "Visa Gold" || got.ClosingDay != 25 || !got.CreatedAt.Equal(card.CreatedAt) {
		t.Errorf("UpdateCard() = %+v", got)
	}

	if _, err := l.UpdateCard(ctx, 2, card.ID, CardInput{Name: "x", Limit: core.Money{Cents: 1}, ClosingDay: 1, DueDay: 1}); !core.IsNotFound(err) {
		t.Errorf("UpdateCard(other owner) error = %v, want not found", err)
	}
}

func TestDeleteCard(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)
	l.CreateInstallments(ctx, NewInstallmentSeries{
		Description: "Tablet", Amount: core.Money{Cents: 20000}, PurchaseDate: core.NewDate(2024, 2, 1),
		Installments: 2, CardID: card.ID,
	}, owner)

	if err := l.DeleteCard(ctx, owner, card.ID); err != nil {
		t.Fatalf("DeleteCard() error = %v", err)
	}
	if list, _ := l.ListEntries(ctx, owner, EntryQuery{}); len(list) != 0 {
		t.Errorf("entries after DeleteCard = %d, want 0", len(list))
	}
	if ev := rec.last(); ev.Type != amqp.EventCardDeleted || ev.CardID != card.ID {
		t.Errorf("event = %+v, want card.deleted", ev)
	}
	if err := l.DeleteCard(ctx, owner, card.ID); !core.IsNotFound(err) {
		t.Errorf("second DeleteCard() error = %v, want not found", err)
	}
}
