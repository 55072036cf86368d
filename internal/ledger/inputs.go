package ledger

import "cardledger/internal/core"

type (
	// NewInstallmentSeries describes a purchase split into monthly entries.
	// A zero InstallmentAmount is derived from Amount.
	NewInstallmentSeries struct {
		Description       string     `json:"description"`
		Amount            core.Money `json:"amount"`
		InstallmentAmount core.Money `json:"installmentAmount"`
		PurchaseDate      core.Date  `json:"purchaseDate"`
		Installments      int        `json:"installments"`
		Category          string     `json:"category"`
		CardID            int64      `json:"creditCardId"`
	}

	// ExistingInstallmentSeries backfills a purchase made before it was
	// tracked, starting at StartInstallment.
	ExistingInstallmentSeries struct {
		Description          string     `json:"description"`
		OriginalPurchaseDate core.Date  `json:"originalPurchaseDate"`
		TotalAmount          core.Money `json:"totalAmount"`
		InstallmentAmount    core.Money `json:"installmentAmount"`
		TotalInstallments    int        `json:"totalInstallments"`
		StartInstallment     int        `json:"currentInstallment"`
		Category             string     `json:"category"`
		CardID               int64      `json:"creditCardId"`
	}

	// NewEntry is a single entry. Installments and InstallmentIndex default
	// to 1.
	NewEntry struct {
		Description      string     `json:"description"`
		Amount           core.Money `json:"amount"`
		PurchaseDate     core.Date  `json:"purchaseDate"`
		Installments     int        `json:"installments"`
		InstallmentIndex int        `json:"currentInstallment"`
		Category         string     `json:"category"`
		CardID           int64      `json:"creditCardId"`
	}

	EntryUpdate struct {
		Description      string     `json:"description"`
		Amount           core.Money `json:"amount"`
		PurchaseDate     core.Date  `json:"purchaseDate"`
		Installments     int        `json:"installments"`
		InstallmentIndex int        `json:"currentInstallment"`
		Category         string     `json:"category"`
	}

	// EntryQuery filters an owner's entries. Month matches the calendar month
	// of the purchase date.
	EntryQuery struct {
		Month    *core.MonthRef
		Category string
		Paid     *bool
	}

	// CardEntryQuery filters one card's entries. ActiveOnly keeps unpaid
	// entries inside the card's invoice period for Month (current month when
	// nil); otherwise Month is a calendar-month filter.
	CardEntryQuery struct {
		Month      *core.MonthRef
		ActiveOnly bool
	}

	CardInput struct {
		Name       string     `json:"name"`
		Limit      core.Money `json:"limit"`
		ClosingDay int        `json:"closingDay"`
		DueDay     int        `json:"dueDay"`
	}
)
