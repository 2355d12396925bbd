package models

import "time"

type SyncDirection string

const (
	SyncPush SyncDirection = "push"
	SyncPull SyncDirection = "pull"
)

type SyncOutcome string

const (
	OutcomeSuccess   SyncOutcome = "success"
	OutcomeFailure   SyncOutcome = "failure"
	OutcomeExhausted SyncOutcome = "exhausted"
	OutcomeApplied   SyncOutcome = "applied"
	OutcomeIgnored   SyncOutcome = "ignored"
)

// SyncJournalEntry records one push attempt or remote apply.
type SyncJournalEntry struct {
	ID             int64         `json:"id" db:"id"`
	UserID         string        `json:"userId" db:"user_id"`
	DeviceID       string        `json:"deviceId" db:"device_id"`
	Direction      SyncDirection `json:"direction" db:"direction"`
	Reason         string        `json:"reason" db:"reason"`
	Outcome        SyncOutcome   `json:"outcome" db:"outcome"`
	Attempt        int           `json:"attempt" db:"attempt"`
	StateUpdatedAt time.Time     `json:"stateUpdatedAt" db:"state_updated_at"`
	Error          string        `json:"error,omitempty" db:"error"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
}

type SyncJournalFilter struct {
	UserID    string
	Direction SyncDirection
	Outcome   SyncOutcome
	Limit     int
}
