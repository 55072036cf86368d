package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cardledger/internal/core"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the statements shared by both dialects. They are written
// with ? placeholders and rebound for Postgres.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func New(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, dialect: q.dialect}
}

func (q *Queries) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const cardColumns = `id, owner_id, name, limit_cents, closing_day, due_day, created_at`

const insertCard = `-- name: InsertCard :one
INSERT INTO credit_cards (owner_id, name, limit_cents, closing_day, due_day, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) InsertCard(ctx context.Context, c core.CreditCard) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, q.dialect.rebind(insertCard),
		c.OwnerID, c.Name, c.Limit.Cents, c.ClosingDay, c.DueDay, formatTime(c.CreatedAt),
	).Scan(&id)
	return id, err
}

const getCard = `-- name: GetCard :one
SELECT ` + cardColumns + ` FROM credit_cards WHERE id = ? AND owner_id = ?`

func (q *Queries) GetCard(ctx context.Context, ownerID, id int64) (core.CreditCard, error) {
	return scanCard(q.db.QueryRowContext(ctx, q.dialect.rebind(getCard), id, ownerID))
}

const listCards = `-- name: ListCards :many
SELECT ` + cardColumns + ` FROM credit_cards WHERE owner_id = ? ORDER BY name, id`

func (q *Queries) ListCards(ctx context.Context, ownerID int64) ([]core.CreditCard, error) {
	rows, err := q.db.QueryContext(ctx, q.dialect.rebind(listCards), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []core.CreditCard{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const updateCard = `-- name: UpdateCard :execrows
UPDATE credit_cards SET name = ?, limit_cents = ?, closing_day = ?, due_day = ?
WHERE id = ? AND owner_id = ?`

func (q *Queries) UpdateCard(ctx context.Context, c core.CreditCard) (int64, error) {
	return q.exec(ctx, updateCard, c.Name, c.Limit.Cents, c.ClosingDay, c.DueDay, c.ID, c.OwnerID)
}

const deleteCardEntries = `-- name: DeleteCardEntries :execrows
DELETE FROM credit_card_expenses WHERE card_id = ? AND owner_id = ?`

func (q *Queries) DeleteCardEntries(ctx context.Context, ownerID, cardID int64) (int64, error) {
	return q.exec(ctx, deleteCardEntries, cardID, ownerID)
}

const deleteCard = `-- name: DeleteCard :execrows
DELETE FROM credit_cards WHERE id = ? AND owner_id = ?`

func (q *Queries) DeleteCard(ctx context.Context, ownerID, id int64) (int64, error) {
	return q.exec(ctx, deleteCard, id, ownerID)
}

const entryColumns = `id, card_id, owner_id, series_id, description, amount_cents, installment_amount_cents,
purchase_date, installments, installment_index, category, is_paid, created_at`

const insertEntry = `-- name: InsertEntry :one
INSERT INTO credit_card_expenses (
    card_id, owner_id, series_id, description, amount_cents, installment_amount_cents,
    purchase_date, installments, installment_index, category, is_paid, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) InsertEntry(ctx context.Context, e core.InstallmentEntry) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, q.dialect.rebind(insertEntry),
		e.CardID, e.OwnerID, e.SeriesID, e.Description, e.Amount.Cents, e.InstallmentAmount.Cents,
		e.PurchaseDate.String(), e.Installments, e.InstallmentIndex, e.Category, e.Paid, formatTime(e.CreatedAt),
	).Scan(&id)
	return id, err
}

const getEntry = `-- name: GetEntry :one
SELECT ` + entryColumns + ` FROM credit_card_expenses WHERE id = ? AND owner_id = ?`

func (q *Queries) GetEntry(ctx context.Context, ownerID, id int64) (core.InstallmentEntry, error) {
	return scanEntry(q.db.QueryRowContext(ctx, q.dialect.rebind(getEntry), id, ownerID))
}

const listEntries = `-- name: ListEntries :many
SELECT ` + entryColumns + ` FROM credit_card_expenses WHERE %s
ORDER BY purchase_date DESC, description, id`

func (q *Queries) ListEntries(ctx context.Context, f core.EntryFilter) ([]core.InstallmentEntry, error) {
	where, args := entryWhere(f)
	rows, err := q.db.QueryContext(ctx, q.dialect.rebind(fmt.Sprintf(listEntries, where)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []core.InstallmentEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const sumInstallments = `-- name: SumInstallments :one
SELECT CAST(COALESCE(SUM(installment_amount_cents), 0) AS BIGINT) FROM credit_card_expenses WHERE %s`

func (q *Queries) SumInstallments(ctx context.Context, f core.EntryFilter) (int64, error) {
	where, args := entryWhere(f)
	var total int64
	err := q.db.QueryRowContext(ctx, q.dialect.rebind(fmt.Sprintf(sumInstallments, where)), args...).Scan(&total)
	return total, err
}

const updateEntry = `-- name: UpdateEntry :execrows
UPDATE credit_card_expenses
SET description = ?, amount_cents = ?, installment_amount_cents = ?, purchase_date = ?,
    installments = ?, installment_index = ?, category = ?
WHERE id = ? AND owner_id = ?`

func (q *Queries) UpdateEntry(ctx context.Context, e core.InstallmentEntry) (int64, error) {
	return q.exec(ctx, updateEntry,
		e.Description, e.Amount.Cents, e.InstallmentAmount.Cents, e.PurchaseDate.String(),
		e.Installments, e.InstallmentIndex, e.Category, e.ID, e.OwnerID)
}

const togglePaid = `-- name: TogglePaid :one
UPDATE credit_card_expenses SET is_paid = NOT is_paid
WHERE id = ? AND owner_id = ?
RETURNING ` + entryColumns

func (q *Queries) TogglePaid(ctx context.Context, ownerID, id int64) (core.InstallmentEntry, error) {
	return scanEntry(q.db.QueryRowContext(ctx, q.dialect.rebind(togglePaid), id, ownerID))
}

const deleteEntry = `-- name: DeleteEntry :execrows
DELETE FROM credit_card_expenses WHERE id = ? AND owner_id = ?`

func (q *Queries) DeleteEntry(ctx context.Context, ownerID, id int64) (int64, error) {
	return q.exec(ctx, deleteEntry, id, ownerID)
}

// entryWhere renders f as a WHERE clause. Dates are stored as YYYY-MM-DD so
// range checks compare as text.
func entryWhere(f core.EntryFilter) (string, []interface{}) {
	conds := []string{"owner_id = ?"}
	args := []interface{}{f.OwnerID}
	if f.CardID != 0 {
		conds = append(conds, "card_id = ?")
		args = append(args, f.CardID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "purchase_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "purchase_date <= ?")
		args = append(args, f.To.String())
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Paid != nil {
		conds = append(conds, "is_paid = ?")
		args = append(args, *f.Paid)
	}
	return strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(s scanner) (core.CreditCard, error) {
	var (
		c       core.CreditCard
		created string
	)
	if err := s.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Limit.Cents, &c.ClosingDay, &c.DueDay, &created); err != nil {
		return core.CreditCard{}, err
	}
	var err error
	c.CreatedAt, err = parseTime(created)
	return c, err
}

func scanEntry(s scanner) (core.InstallmentEntry, error) {
	var (
		e                 core.InstallmentEntry
		purchase, created string
	)
	err := s.Scan(&e.ID, &e.CardID, &e.OwnerID, &e.SeriesID, &e.Description, &e.Amount.Cents,
		&e.InstallmentAmount.Cents, &purchase, &e.Installments, &e.InstallmentIndex, &e.Category,
		&e.Paid, &created)
	if err != nil {
		return core.InstallmentEntry{}, err
	}
	if e.PurchaseDate, err = core.ParseDate(purchase); err != nil {
		return core.InstallmentEntry{}, fmt.Errorf("purchase_date %q: %w", purchase, err)
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return core.InstallmentEntry{}, err
	}
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}

// rebind rewrites ? placeholders to $1, $2... for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
