package core

import (
	"strings"
	"time"
)

const (
	maxCardNameLen    = 100
	maxDescriptionLen = 200
	maxCategoryLen    = 100
)

type (
	// CreditCard holds only what the owner typed in. Debt figures are never
	// stored; see CardSummary.
	CreditCard struct {
		ID         int64     `json:"id"`
		OwnerID    int64     `json:"userId"`
		Name       string    `json:"name"`
		Limit      Money     `json:"limit"`
		ClosingDay int       `json:"closingDay"`
		DueDay     int       `json:"dueDay"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	// InstallmentEntry is one billing occurrence of a purchase.
	InstallmentEntry struct {
		ID                int64     `json:"id"`
		CardID            int64     `json:"creditCardId"`
		OwnerID           int64     `json:"userId"`
		SeriesID          string    `json:"seriesId"`
		Description       string    `json:"description"`
		Amount            Money     `json:"amount"`            // full purchase price
		InstallmentAmount Money     `json:"installmentAmount"` // billed in this occurrence
		PurchaseDate      Date      `json:"purchaseDate"`
		Installments      int       `json:"installments"`
		InstallmentIndex  int       `json:"currentInstallment"`
		Category          string    `json:"category"`
		Paid              bool      `json:"isPaid"`
		CreatedAt         time.Time `json:"createdAt"`
	}

	// CardSummary is a card with its aggregates computed at read time for one
	// reference month.
	CardSummary struct {
		CreditCard
		Period           Period `json:"invoicePeriod"`
		CurrentDebt      Money  `json:"currentDebt"`
		TotalConsumption Money  `json:"totalConsumption"`
		AvailableLimit   Money  `json:"availableLimit"`
	}

	// EntryFilter selects installment entries of one owner. Zero fields do not
	// filter.
	EntryFilter struct {
		OwnerID  int64
		CardID   int64
		From     Date // inclusive
		To       Date // inclusive
		Category string
		Paid     *bool
	}
)

func (c CreditCard) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return invalid("name", ErrEmptyName)
	}
	if len(name) > maxCardNameLen {
		return invalid("name", ErrTooLong)
	}
	if err := c.Limit.Validate(); err != nil {
		return invalid("limit", err)
	}
	if err := ValidateDayOfMonth("closingDay", c.ClosingDay); err != nil {
		return err
	}
	return ValidateDayOfMonth("dueDay", c.DueDay)
}

// Validate checks an entry before it is written, including the installment
// invariants.
func (e InstallmentEntry) Validate() error {
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if err := e.InstallmentAmount.Validate(); err != nil {
		return invalid("installmentAmount", err)
	}
	if err := e.PurchaseDate.Validate(); err != nil {
		return invalid("purchaseDate", err)
	}
	if e.Installments < 1 {
		return invalid("installments", ErrInvalidInstallment)
	}
	if e.InstallmentIndex < 1 || e.InstallmentIndex > e.Installments {
		return invalid("currentInstallment", ErrInvalidInstallment)
	}
	if len(e.Category) > maxCategoryLen {
		return invalid("category", ErrTooLong)
	}
	if e.CardID <= 0 {
		return invalid("creditCardId", ErrMissingCard)
	}
	return nil
}

// Normalize applies the per-entry amount rule: a single installment bills the
// full amount at index 1, otherwise the amount is split evenly.
func (e *InstallmentEntry) Normalize() {
	if e.Installments > 1 {
		e.InstallmentAmount = e.Amount.Split(e.Installments)
		return
	}
	e.Installments = 1
	e.InstallmentIndex = 1
	e.InstallmentAmount = e.Amount
}

// Matches reports whether e passes the filter.
func (f EntryFilter) Matches(e InstallmentEntry) bool {
	if f.OwnerID != 0 && e.OwnerID != f.OwnerID {
		return false
	}
	if f.CardID != 0 && e.CardID != f.CardID {
		return false
	}
	if !f.From.IsZero() && e.PurchaseDate.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.PurchaseDate.After(f.To.Time) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Paid != nil && e.Paid != *f.Paid {
		return false
	}
	return true
}

func validateDescription(s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return invalid("description", ErrEmptyDescription)
	}
	if len(s) > maxDescriptionLen {
		return invalid("description", ErrTooLong)
	}
	return nil
}
