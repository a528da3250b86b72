package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntryPostedTopic is the Kafka topic for committed journal entries.
const EntryPostedTopic = "wallet.entry_posted"

// EntryPostedEvent is published best-effort after each committed journal
// entry. Downstream consumers (analytics, lobby) key on PlayerID.
type EntryPostedEvent struct {
	EventID    uuid.UUID     `json:"eventId"`
	PlayerID   string        `json:"playerId"`
	Entry      *JournalEntry `json:"entry"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// NewEntryPostedEvent builds the event for a ledger entry.
func NewEntryPostedEvent(entry *JournalEntry) EntryPostedEvent {
	return EntryPostedEvent{
		EventID:    uuid.New(),
		PlayerID:   entry.PlayerID,
		Entry:      entry,
		OccurredAt: time.Now(),
	}
}

// Marshal returns the Kafka key and JSON value for the event.
func (e EntryPostedEvent) Marshal() (key, value []byte, err error) {
	value, err = json.Marshal(e)
	return []byte(e.PlayerID), value, err
}
