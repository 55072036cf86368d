package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cardledger/internal/core"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

// SQLRepository implements the ledger store on SQLite or Postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	queries *Queries
}

// NewSQLiteRepository opens (creating if needed) the database file at dbPath
// and migrates it.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(SQLite, sqliteDSN(dbPath))
}

// NewPostgresRepository connects to dsn and migrates the schema.
func NewPostgresRepository(dsn string) (*SQLRepository, error) {
	return open(Postgres, dsn)
}

func open(dialect Dialect, dsn string) (*SQLRepository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == SQLite {
		// one writer; readers queue behind it instead of failing with SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{
		db:      db,
		dialect: dialect,
		queries: New(db, dialect),
	}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLRepository) Dialect() Dialect { return r.dialect }

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) CreateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	id, err := r.queries.InsertCard(ctx, c)
	if err != nil {
		return core.CreditCard{}, persistence("create card", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Credit card saved",
		"id", c.ID,
		"owner_id", c.OwnerID,
		"closing_day", c.ClosingDay)

	return c, nil
}

func (r *SQLRepository) GetCard(ctx context.Context, ownerID, id int64) (core.CreditCard, error) {
	c, err := r.queries.GetCard(ctx, ownerID, id)
	if err != nil {
		return core.CreditCard{}, notFoundOr(err, "credit card", id, "get card")
	}
	return c, nil
}

func (r *SQLRepository) ListCards(ctx context.Context, ownerID int64) ([]core.CreditCard, error) {
	cards, err := r.queries.ListCards(ctx, ownerID)
	if err != nil {
		return nil, persistence("list cards", err)
	}
	return cards, nil
}

func (r *SQLRepository) UpdateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	n, err := r.queries.UpdateCard(ctx, c)
	if err != nil {
		return core.CreditCard{}, persistence("update card", err)
	}
	if n == 0 {
		return core.CreditCard{}, &core.NotFoundError{Resource: "credit card", ID: c.ID}
	}
	return c, nil
}

// DeleteCard removes the card's entries explicitly rather than relying on the
// foreign key, which SQLite only enforces when the pragma is on.
func (r *SQLRepository) DeleteCard(ctx context.Context, ownerID, id int64) error {
	return r.inTx(ctx, "delete card", func(q *Queries) error {
		if _, err := q.DeleteCardEntries(ctx, ownerID, id); err != nil {
			return persistence("delete card entries", err)
		}
		n, err := q.DeleteCard(ctx, ownerID, id)
		if err != nil {
			return persistence("delete card", err)
		}
		if n == 0 {
			return &core.NotFoundError{Resource: "credit card", ID: id}
		}
		return nil
	})
}

// CreateEntries inserts the batch in one transaction after checking that
// every referenced card belongs to the entry's owner.
func (r *SQLRepository) CreateEntries(ctx context.Context, entries []core.InstallmentEntry) ([]core.InstallmentEntry, error) {
	out := make([]core.InstallmentEntry, 0, len(entries))
	err := r.inTx(ctx, "create entries", func(q *Queries) error {
		checked := map[int64]bool{}
		for _, e := range entries {
			if !checked[e.CardID] {
				if _, err := q.GetCard(ctx, e.OwnerID, e.CardID); err != nil {
					return notFoundOr(err, "credit card", e.CardID, "get card")
				}
				checked[e.CardID] = true
			}
			id, err := q.InsertEntry(ctx, e)
			if err != nil {
				return persistence("insert entry", err)
			}
			e.ID = id
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Installment entries saved", "count", len(out))
	return out, nil
}

func (r *SQLRepository) GetEntry(ctx context.Context, ownerID, id int64) (core.InstallmentEntry, error) {
	e, err := r.queries.GetEntry(ctx, ownerID, id)
	if err != nil {
		return core.InstallmentEntry{}, notFoundOr(err, "credit card expense", id, "get entry")
	}
	return e, nil
}

func (r *SQLRepository) ListEntries(ctx context.Context, f core.EntryFilter) ([]core.InstallmentEntry, error) {
	entries, err := r.queries.ListEntries(ctx, f)
	if err != nil {
		return nil, persistence("list entries", err)
	}
	return entries, nil
}

func (r *SQLRepository) UpdateEntry(ctx context.Context, e core.InstallmentEntry) (core.InstallmentEntry, error) {
	n, err := r.queries.UpdateEntry(ctx, e)
	if err != nil {
		return core.InstallmentEntry{}, persistence("update entry", err)
	}
	if n == 0 {
		return core.InstallmentEntry{}, &core.NotFoundError{Resource: "credit card expense", ID: e.ID}
	}
	return e, nil
}

func (r *SQLRepository) TogglePaid(ctx context.Context, ownerID, id int64) (core.InstallmentEntry, error) {
	e, err := r.queries.TogglePaid(ctx, ownerID, id)
	if err != nil {
		return core.InstallmentEntry{}, notFoundOr(err, "credit card expense", id, "toggle paid")
	}

	slog.InfoContext(ctx, "Entry paid flag toggled", "id", id, "paid", e.Paid)
	return e, nil
}

func (r *SQLRepository) DeleteEntry(ctx context.Context, ownerID, id int64) error {
	n, err := r.queries.DeleteEntry(ctx, ownerID, id)
	if err != nil {
		return persistence("delete entry", err)
	}
	if n == 0 {
		return &core.NotFoundError{Resource: "credit card expense", ID: id}
	}
	return nil
}

func (r *SQLRepository) SumInstallments(ctx context.Context, f core.EntryFilter) (core.Money, error) {
	cents, err := r.queries.SumInstallments(ctx, f)
	if err != nil {
		return core.Money{}, persistence("sum installments", err)
	}
	return core.Money{Cents: cents}, nil
}

// inTx runs fn in a transaction and rolls back when it fails. Errors from fn
// are returned as is.
func (r *SQLRepository) inTx(ctx context.Context, op string, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence(op+": begin", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistence(op+": commit", err)
	}
	return nil
}

func persistence(op string, err error) error {
	return &core.PersistenceError{Op: op, Err: err}
}

func notFoundOr(err error, resource string, id int64, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &core.NotFoundError{Resource: resource, ID: id}
	}
	return persistence(op, err)
}
