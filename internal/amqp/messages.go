package amqp

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventInstallmentsCreated EventType = "installments.created"
	EventEntryCreated        EventType = "entry.created"
	EventEntryUpdated        EventType = "entry.updated"
	EventEntryPaidToggled    EventType = "entry.paid_toggled"
	EventEntryDeleted        EventType = "entry.deleted"
	EventCardDeleted         EventType = "card.deleted"
)

// LedgerEvent announces a change to a card's installment entries. It carries
// ids only; consumers read current state back from the ledger.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	OwnerID   int64     `json:"owner_id"`
	CardID    int64     `json:"card_id"`
	EntryIDs  []int64   `json:"entry_ids,omitempty"`
	SeriesID  string    `json:"series_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(typ EventType, ownerID, cardID int64, entryIDs ...int64) *LedgerEvent {
	return &LedgerEvent{
		Type:      typ,
		OwnerID:   ownerID,
		CardID:    cardID,
		EntryIDs:  entryIDs,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
