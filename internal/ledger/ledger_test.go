package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cardledger/internal/amqp"
	"cardledger/internal/core"
	"cardledger/internal/storage/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (r *recorder) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) last() *amqp.LedgerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

const owner = int64(1)

func newTestLedger(t *testing.T) (*Ledger, *memory.Store, *recorder) {
	t.Helper()
	store := memory.New()
	rec := &recorder{}
	l := New(store, rec, Options{})
	l.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return l, store, rec
}

func mustCard(t *testing.T, l *Ledger, name string, closingDay int) core.CreditCard {
	t.Helper()
	c, err := l.CreateCard(context.Background(), owner, CardInput{
		Name: name, Limit: core.Money{Cents: 100000}, ClosingDay: closingDay, DueDay: 20,
	})
	if err != nil {
		t.Fatalf("CreateCard(%q) error = %v", name, err)
	}
	return c
}

func validationField(err error) string {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

func TestCreateInstallments(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)

	entries, err := l.CreateInstallments(ctx, NewInstallmentSeries{
		Description:       "Laptop",
		Amount:            core.Money{Cents: 10000},
		InstallmentAmount: core.Money{Cents: 3333},
		PurchaseDate:      core.NewDate(2024, 1, 31),
		Installments:      3,
		Category:          "tech",
		CardID:            card.ID,
	}, owner)
	if err != nil {
		t.Fatalf("CreateInstallments() error = %v", err)
	}

	wantDates := []string{"2024-01-31", "2024-02-29", "2024-03-29"}
	if len(entries) != len(wantDates) {
		t.Fatalf("CreateInstallments() returned %d entries, want %d", len(entries), len(wantDates))
	}
	for i, e := range entries {
		if e.InstallmentIndex != i+1 {
			t.Errorf("entry %d index = %d, want %d", i, e.InstallmentIndex, i+1)
		}
		if got := e.PurchaseDate.String(); got != wantDates[i] {
			t.Errorf("entry %d date = %s, want %s", i, got, wantDates[i])
		}
		if e.InstallmentAmount.Cents != 3333 || e.Amount.Cents != 10000 {
			t.Errorf("entry %d amounts = %v/%v, want 33.33/100.00", i, e.InstallmentAmount, e.Amount)
		}
		if e.Paid || e.Installments != 3 || e.OwnerID != owner || e.ID == 0 {
			t.Errorf("entry %d = %+v", i, e)
		}
		if e.SeriesID == "" || e.SeriesID != entries[0].SeriesID {
			t.Errorf("entry %d series = %q, want shared non-empty id", i, e.SeriesID)
		}
	}

	ev := rec.last()
	if ev == nil || ev.Type != amqp.EventInstallmentsCreated || len(ev.EntryIDs) != 3 || ev.SeriesID != entries[0].SeriesID {
		t.Errorf("published event = %+v, want installments.created with 3 ids", ev)
	}
}

func TestCreateInstallments_DerivesMissingInstallmentAmount(t *testing.T) {
	l, _, _ := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)

	entries, err := l.CreateInstallments(context.Background(), NewInstallmentSeries{
		Description:  "Phone",
		Amount:       core.Money{Cents: 10000},
		PurchaseDate: core.NewDate(2024, 1, 10),
		Installments: 3,
		CardID:       card.ID,
	}, owner)
	if err != nil {
		t.Fatalf("CreateInstallments() error = %v", err)
	}
	for _, e := range entries {
		if e.InstallmentAmount.Cents != 3333 {
			t.Errorf("InstallmentAmount = %v, want 33.33", e.InstallmentAmount)
		}
	}
}

func TestCreateInstallments_Rejects(t *testing.T) {
	ctx := context.Background()
	l, store, rec := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)
	foreign, _ := store.CreateCard(ctx, core.CreditCard{OwnerID: 2, Name: "Theirs", Limit: core.Money{Cents: 1}, ClosingDay: 1, DueDay: 1})

	valid := NewInstallmentSeries{
		Description:       "TV",
		Amount:            core.Money{Cents: 90000},
		InstallmentAmount: core.Money{Cents: 30000},
		PurchaseDate:      core.NewDate(2024, 1, 10),
		Installments:      3,
		CardID:            card.ID,
	}

	tests := []struct {
		name     string
		mutate   func(*NewInstallmentSeries)
		field    string
		notFound bool
	}{
		{"blank description", func(s *NewInstallmentSeries) { s.Description = "  " }, "description", false},
		{"zero amount", func(s *NewInstallmentSeries) { s.Amount = core.Money{} }, "amount", false},
		{"negative amount", func(s *NewInstallmentSeries) { s.Amount = core.Money{Cents: -5} }, "amount", false},
		{"negative installment amount", func(s *NewInstallmentSeries) { s.InstallmentAmount = core.Money{Cents: -1} }, "installmentAmount", false},
		{"zero installments", func(s *NewInstallmentSeries) { s.Installments = 0 }, "installments", false},
		{"negative installments", func(s *NewInstallmentSeries) { s.Installments = -2 }, "installments", false},
		{"missing date", func(s *NewInstallmentSeries) { s.PurchaseDate = core.Date{} }, "purchaseDate", false},
		{"unknown card", func(s *NewInstallmentSeries) { s.CardID = 999 }, "", true},
		{"card of another owner", func(s *NewInstallmentSeries) { s.CardID = foreign.ID }, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			_, err := l.CreateInstallments(ctx, s, owner)
			if err == nil {
				t.Fatal("CreateInstallments() error = nil, want error")
			}
			if tt.notFound {
				if !errors.Is(err, core.ErrNotFound) || core.IsValidation(err) {
					t.Errorf("CreateInstallments() error = %v, want not found", err)
				}
			} else if got := validationField(err); got != tt.field {
				t.Errorf("CreateInstallments() field = %q, want %q (err %v)", got, tt.field, err)
			}
		})
	}

	if list, _ := l.ListEntries(ctx, owner, EntryQuery{}); len(list) != 0 {
		t.Errorf("entries after rejected series = %d, want 0", len(list))
	}
	if len(rec.events) != 0 {
		t.Errorf("events after rejected series = %d, want 0", len(rec.events))
	}
}

type failingStore struct {
	*memory.Store
}

func (f failingStore) CreateEntries(context.Context, []core.InstallmentEntry) ([]core.InstallmentEntry, error) {
	return nil, &core.PersistenceError{Op: "insert entries", Err: errors.New("disk full")}
}

func TestCreateInstallments_PersistenceError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	card, _ := store.CreateCard(ctx, core.CreditCard{OwnerID: owner, Name: "Visa", Limit: core.Money{Cents: 1}, ClosingDay: 5, DueDay: 5})
	l := New(failingStore{store}, nil, Options{})

	_, err := l.CreateInstallments(ctx, NewInstallmentSeries{
		Description: "Sofa", Amount: core.Money{Cents: 500}, PurchaseDate: core.NewDate(2024, 5, 1),
		Installments: 2, CardID: card.ID,
	}, owner)

	var pe *core.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("CreateInstallments() error = %v, want *core.PersistenceError", err)
	}
	if list, _ := store.ListEntries(ctx, core.EntryFilter{OwnerID: owner}); len(list) != 0 {
		t.Errorf("entries after failed write = %d, want 0", len(list))
	}
}

func TestCreateRemainingInstallments(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)

	entries, err := l.CreateRemainingInstallments(ctx, ExistingInstallmentSeries{
		Description:          "Fridge",
		OriginalPurchaseDate: core.NewDate(2024, 1, 15),
		TotalAmount:          core.Money{Cents: 60000},
		InstallmentAmount:    core.Money{Cents: 10000},
		TotalInstallments:    6,
		StartInstallment:     4,
		CardID:               card.ID,
	}, owner)
	if err != nil {
		t.Fatalf("CreateRemainingInstallments() error = %v", err)
	}

	wantDates := []string{"2024-04-15", "2024-05-15", "2024-06-15"}
	if len(entries) != 3 {
		t.Fatalf("CreateRemainingInstallments() returned %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.InstallmentIndex != i+4 {
			t.Errorf("entry %d index = %d, want %d", i, e.InstallmentIndex, i+4)
		}
		if e.PurchaseDate.String() != wantDates[i] {
			t.Errorf("entry %d date = %s, want %s", i, e.PurchaseDate, wantDates[i])
		}
		if e.Installments != 6 || e.Amount.Cents != 60000 || e.InstallmentAmount.Cents != 10000 {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
}

func TestSingleInstallmentSeriesBillsFullAmount(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)

	series, err := l.CreateInstallments(ctx, NewInstallmentSeries{
		Description:       "Headphones",
		Amount:            core.Money{Cents: 10000},
		InstallmentAmount: core.Money{Cents: 3333},
		PurchaseDate:      core.NewDate(2024, 3, 1),
		Installments:      1,
		CardID:            card.ID,
	}, owner)
	if err != nil {
		t.Fatalf("CreateInstallments() error = %v", err)
	}
	remaining, err := l.CreateRemainingInstallments(ctx, ExistingInstallmentSeries{
		Description:          "Chair",
		OriginalPurchaseDate: core.NewDate(2024, 3, 2),
		TotalAmount:          core.Money{Cents: 5000},
		InstallmentAmount:    core.Money{Cents: 1000},
		TotalInstallments:    1,
		StartInstallment:     1,
		CardID:               card.ID,
	}, owner)
	if err != nil {
		t.Fatalf("CreateRemainingInstallments() error = %v", err)
	}

	for _, e := range append(series, remaining...) {
		if e.Installments != 1 || e.InstallmentIndex != 1 || e.InstallmentAmount != e.Amount {
			t.Errorf("entry %q = %d/%d amount %v installment %v, want 1/1 with installment == amount",
				e.Description, e.InstallmentIndex, e.Installments, e.Amount, e.InstallmentAmount)
		}
	}

	debt, err := l.OutstandingConsumption(ctx, owner, card.ID)
	if err != nil {
		t.Fatalf("OutstandingConsumption() error = %v", err)
	}
	if debt.Cents != 15000 {
		t.Errorf("OutstandingConsumption() = %v, want 150.00", debt)
	}
}

func TestCreateRemainingInstallments_StartOutOfRange(t *testing.T) {
	l, _, _ := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)

	for _, start := range []int{0, -1, 7} {
		_, err := l.CreateRemainingInstallments(context.Background(), ExistingInstallmentSeries{
			Description:          "Fridge",
			OriginalPurchaseDate: core.NewDate(2024, 1, 15),
			TotalAmount:          core.Money{Cents: 60000},
			InstallmentAmount:    core.Money{Cents: 10000},
			TotalInstallments:    6,
			StartInstallment:     start,
			CardID:               card.ID,
		}, owner)
		if got := validationField(err); got != "currentInstallment" {
			t.Errorf("start %d: field = %q, want currentInstallment (err %v)", start, got, err)
		}
	}
}

func TestCreateEntry_Normalization(t *testing.T) {
	l, _, _ := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)

	tests := []struct {
		name                 string
		in                   NewEntry
		wantIndex, wantCount int
		wantInstallment      int64
		wantField            string
	}{
		{
			name:            "single installment forces index 1",
			in:              NewEntry{Amount: core.Money{Cents: 15000}, Installments: 1, InstallmentIndex: 3},
			wantIndex:       1,
			wantCount:       1,
			wantInstallment: 15000,
		},
		{
			name:            "defaults",
			in:              NewEntry{Amount: core.Money{Cents: 1234}},
			wantIndex:       1,
			wantCount:       1,
			wantInstallment: 1234,
		},
		{
			name:            "split",
			in:              NewEntry{Amount: core.Money{Cents: 10000}, Installments: 4, InstallmentIndex: 2},
			wantIndex:       2,
			wantCount:       4,
			wantInstallment: 2500,
		},
		{
			name:      "index past count",
			in:        NewEntry{Amount: core.Money{Cents: 10000}, Installments: 4, InstallmentIndex: 5},
			wantField: "currentInstallment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.Description = "Coffee"
			in.PurchaseDate = core.NewDate(2024, 3, 1)
			in.CardID = card.ID

			e, err := l.CreateEntry(context.Background(), in, owner)
			if tt.wantField != "" {
				if got := validationField(err); got != tt.wantField {
					t.Errorf("CreateEntry() field = %q, want %q (err %v)", got, tt.wantField, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateEntry() error = %v", err)
			}
			if e.InstallmentIndex != tt.wantIndex || e.Installments != tt.wantCount || e.InstallmentAmount.Cents != tt.wantInstallment {
				t.Errorf("CreateEntry() = index %d count %d installment %d, want %d %d %d",
					e.InstallmentIndex, e.Installments, e.InstallmentAmount.Cents,
					tt.wantIndex, tt.wantCount, tt.wantInstallment)
			}
		})
	}
}

func TestUpdateEntry(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)
	series, err := l.CreateInstallments(ctx, NewInstallmentSeries{
		Description: "Bike", Amount: core.Money{Cents: 30000}, PurchaseDate: core.NewDate(2024, 1, 5),
		Installments: 3, CardID: card.ID,
	}, owner)
	if err != nil {
		t.Fatalf("CreateInstallments() error = %v", err)
	}
	target := series[1]

	t.Run("collapse to single installment", func(t *testing.T) {
		got, err := l.UpdateEntry(ctx, owner, target.ID, EntryUpdate{
			Description: "Bike", Amount: core.Money{Cents: 30000}, PurchaseDate: target.PurchaseDate,
			Installments: 1, InstallmentIndex: 2,
		})
		if err != nil {
			t.Fatalf("UpdateEntry() error = %v", err)
		}
		if got.InstallmentIndex != 1 || got.InstallmentAmount.Cents != 30000 {
			t.Errorf("UpdateEntry() = index %d amount %v, want 1 and 300.00", got.InstallmentIndex, got.InstallmentAmount)
		}
		if got.SeriesID != target.SeriesID || got.CardID != card.ID {
			t.Errorf("UpdateEntry() changed series or card: %+v", got)
		}
		if ev := rec.last(); ev.Type != amqp.EventEntryUpdated {
			t.Errorf("event = %s, want entry.updated", ev.Type)
		}
	})

	t.Run("recompute rounds half to even", func(t *testing.T) {
		got, err := l.UpdateEntry(ctx, owner, target.ID, EntryUpdate{
			Description: "Bike", Amount: core.Money{Cents: 10001}, PurchaseDate: target.PurchaseDate,
			Installments: 2, InstallmentIndex: 2,
		})
		if err != nil {
			t.Fatalf("UpdateEntry() error = %v", err)
		}
		if got.InstallmentAmount.Cents != 5000 {
			t.Errorf("InstallmentAmount = %d cents, want 5000", got.InstallmentAmount.Cents)
		}
	})

	t.Run("index past count", func(t *testing.T) {
		_, err := l.UpdateEntry(ctx, owner, target.ID, EntryUpdate{
			Description: "Bike", Amount: core.Money{Cents: 100}, PurchaseDate: target.PurchaseDate,
			Installments: 3, InstallmentIndex: 4,
		})
		if got := validationField(err); got != "currentInstallment" {
			t.Errorf("UpdateEntry() field = %q, want currentInstallment", got)
		}
	})

	t.Run("siblings untouched", func(t *testing.T) {
		for _, sib := range []core.InstallmentEntry{series[0], series[2]} {
			got, err := l.GetEntry(ctx, owner, sib.ID)
			if err != nil {
				t.Fatalf("GetEntry() error = %v", err)
			}
			if got.InstallmentAmount != sib.InstallmentAmount || got.Installments != 3 {
				t.Errorf("sibling %d changed: %+v", sib.ID, got)
			}
		}
	})

	t.Run("other owner", func(t *testing.T) {
		_, err := l.UpdateEntry(ctx, 2, target.ID, EntryUpdate{
			Description: "x", Amount: core.Money{Cents: 1}, PurchaseDate: target.PurchaseDate, Installments: 1,
		})
		if !core.IsNotFound(err) {
			t.Errorf("UpdateEntry() error = %v, want not found", err)
		}
	})
}

func TestDeleteEntry_KeepsSiblings(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)
	series, _ := l.CreateInstallments(ctx, NewInstallmentSeries{
		Description: "Desk", Amount: core.Money{Cents: 9000}, PurchaseDate: core.NewDate(2024, 1, 5),
		Installments: 3, CardID: card.ID,
	}, owner)

	if err := l.DeleteEntry(ctx, owner, series[1].ID); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	if _, err := l.GetEntry(ctx, owner, series[1].ID); !core.IsNotFound(err) {
		t.Errorf("GetEntry(deleted) error = %v, want not found", err)
	}
	list, _ := l.ListCardEntries(ctx, owner, card.ID, CardEntryQuery{})
	if len(list) != 2 {
		t.Errorf("remaining entries = %d, want 2", len(list))
	}
	if ev := rec.last(); ev.Type != amqp.EventEntryDeleted || ev.CardID != card.ID {
		t.Errorf("event = %+v, want entry.deleted for card %d", ev, card.ID)
	}
	if err := l.DeleteEntry(ctx, owner, series[1].ID); !core.IsNotFound(err) {
		t.Errorf("second DeleteEntry() error = %v, want not found", err)
	}
}

func TestListEntries(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	card := mustCard(t, l, "Visa", 10)
	add := func(desc, category string, date core.Date) core.InstallmentEntry {
		e, err := l.CreateEntry(ctx, NewEntry{
			Description: desc, Amount: core.Money{Cents: 100}, PurchaseDate: date, Category: category, CardID: card.ID,
		}, owner)
		if err != nil {
			t.Fatalf("CreateEntry() error = %v", err)
		}
		return e
	}
	add("b", "food", core.NewDate(2024, 3, 2))
	a := add("a", "food", core.NewDate(2024, 3, 2))
	add("c", "fuel", core.NewDate(2024, 3, 31))
	add("d", "food", core.NewDate(2024, 4, 1))
	l.TogglePaid(ctx, owner, a.ID)

	march := core.MonthRef{Year: 2024, Month: 3}
	paid := true

	tests := []struct {
		name string
		q    EntryQuery
		want []string
	}{
		{"all", EntryQuery{}, []string{"d", "c", "a", "b"}},
		{"month", EntryQuery{Month: &march}, []string{"c", "a", "b"}},
		{"category", EntryQuery{Category: "food"}, []string{"d", "a", "b"}},
		{"paid", EntryQuery{Paid: &paid}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := l.ListEntries(ctx, owner, tt.q)
			if err != nil {
				t.Fatalf("ListEntries() error = %v", err)
			}
			var got []string
			for _, e := range list {
				got = append(got, e.Description)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListEntries() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ListEntries() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	l, _, rec := newTestLedger(t)
	rec.err = errors.New("broker down")
	card := mustCard(t, l, "Visa", 10)

	_, err := l.CreateEntry(context.Background(), NewEntry{
		Description: "Gas", Amount: core.Money{Cents: 500}, PurchaseDate: core.NewDate(2024, 3, 1), CardID: card.ID,
	}, owner)
	if err != nil {
		t.Fatalf("CreateEntry() error = %v, want nil when publishing fails", err)
	}
}
