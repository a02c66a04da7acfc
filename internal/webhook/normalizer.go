package webhook

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/naruebet/tmwatch/internal/models"
)

// Unit divisors for incoming amounts. The live provider sends satang (minor
// units); the manual/simulated path already supplies baht. Callers pick one
// explicitly so an entry point can never double-convert.
const (
	UnitMinor int64 = 100
	UnitMajor int64 = 1
)

// ErrAmountNonPositive rejects payloads whose resolved amount is zero or
// negative. Never coerced to a placeholder.
var ErrAmountNonPositive = errors.New("payload amount must be positive")

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalize maps a decoded payload onto the canonical Transaction. Field
// resolution is ordered: primary key, alternate key, hard default. The id is
// generated exactly once, after validation succeeds.
func Normalize(payload map[string]any, unitDivisor int64) (models.Transaction, error) {
	now := time.Now().UTC()

	amount := amountField(payload, "amount", "txn_amount")
	if unitDivisor > 1 {
		amount = amount.Div(decimal.NewFromInt(unitDivisor))
	}
	if !amount.IsPositive() {
		return models.Transaction{}, ErrAmountNonPositive
	}

	occurred := now
	if t, ok := timeField(payload, "received_time", "created_at"); ok {
		occurred = t
	}

	return models.Transaction{
		ID:         newTxnID(now),
		Sender:     stringField(payload, "Unknown", "sender_mobile", "payer_mobile"),
		Amount:     amount,
		OccurredAt: occurred,
		Message:    stringField(payload, "Webhook P2P", "message"),
		Status:     models.StatusNormal,
		RawPayload: payload,
		CreatedAt:  now,
	}, nil
}

// newTxnID builds "TXN-<millis>-<0..999>" ids, the provider-facing scheme.
func newTxnID(now time.Time) string {
	return fmt.Sprintf("TXN-%d-%d", now.UnixMilli(), rand.IntN(1000))
}

func stringField(payload map[string]any, def string, keys ...string) string {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	return def
}

func amountField(payload map[string]any, keys ...string) decimal.Decimal {
	for _, k := range keys {
		switch v := payload[k].(type) {
		case float64:
			if v != 0 {
				return decimal.NewFromFloat(v)
			}
		case string:
			if d, err := decimal.NewFromString(v); err == nil && !d.IsZero() {
				return d
			}
		case int:
			if v != 0 {
				return decimal.NewFromInt(int64(v))
			}
		case int64:
			if v != 0 {
				return decimal.NewFromInt(v)
			}
		}
	}
	return decimal.Zero
}

// timeField returns the first payload value that parses to a valid instant.
// A bad date never rejects the payload; the caller falls back to ingestion time.
func timeField(payload map[string]any, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		s, ok := payload[k].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range timeFormats {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
