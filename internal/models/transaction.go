package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// amounts render as JSON numbers, matching the provider's payloads
	decimal.MarshalJSONWithoutQuotes = true
}

type TransactionStatus string

const (
	StatusNormal   TransactionStatus = "normal"
	StatusVerified TransactionStatus = "verified"
	StatusIssue    TransactionStatus = "issue"
	StatusRefund   TransactionStatus = "refund"
)

// ValidStatus reports whether s is one of the recognized statuses.
func ValidStatus(s TransactionStatus) bool {
	switch s {
	case StatusNormal, StatusVerified, StatusIssue, StatusRefund:
		return true
	}
	return false
}

// Transaction is the canonical record produced from an inbound webhook.
// Only Status may change after creation, and only through the workflow guard.
type Transaction struct {
	ID         string            `json:"id"`
	Sender     string            `json:"sender"`
	Amount     decimal.Decimal   `json:"amount"`
	OccurredAt time.Time         `json:"date"`
	Message    string            `json:"message"`
	Status     TransactionStatus `json:"status"`
	RawPayload map[string]any    `json:"raw_payload,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
