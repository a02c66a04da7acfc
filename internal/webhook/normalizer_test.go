package webhook

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naruebet/tmwatch/internal/models"
)

func TestNormalizeUnitDivisor(t *testing.T) {
	payload := map[string]any{"amount": float64(10050)}

	tx, err := Normalize(payload, UnitMinor)
	require.NoError(t, err)
	assert.Equal(t, "100.5", tx.Amount.String())

	tx, err = Normalize(payload, UnitMajor)
	require.NoError(t, err)
	assert.Equal(t, "10050", tx.Amount.String())
}

func TestNormalizeDefaults(t *testing.T) {
	_, err := Normalize(map[string]any{}, UnitMajor)
	assert.ErrorIs(t, err, ErrAmountNonPositive)

	tx, err := Normalize(map[string]any{"amount": float64(50)}, UnitMajor)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", tx.Sender)
	assert.Equal(t, "Webhook P2P", tx.Message)
	assert.Equal(t, models.StatusNormal, tx.Status)
}

func TestNormalizeRejectsNegativeAmount(t *testing.T) {
	_, err := Normalize(map[string]any{"amount": float64(-20)}, UnitMajor)
	assert.ErrorIs(t, err, ErrAmountNonPositive)
}

func TestNormalizeFieldResolutionOrder(t *testing.T) {
	tx, err := Normalize(map[string]any{
		"sender_mobile": "081-111-1111",
		"payer_mobile":  "089-999-9999",
		"amount":        float64(1),
	}, UnitMajor)
	require.NoError(t, err)
	assert.Equal(t, "081-111-1111", tx.Sender)

	tx, err = Normalize(map[string]any{
		"payer_mobile": "089-999-9999",
		"txn_amount":   float64(75),
	}, UnitMajor)
	require.NoError(t, err)
	assert.Equal(t, "089-999-9999", tx.Sender)
	assert.Equal(t, "75", tx.Amount.String())
}

func TestNormalizeStringAmount(t *testing.T) {
	tx, err := Normalize(map[string]any{"amount": "120.50"}, UnitMajor)
	require.NoError(t, err)
	assert.Equal(t, "120.5", tx.Amount.String())
}

func TestNormalizeOccurredAt(t *testing.T) {
	tx, err := Normalize(map[string]any{
		"amount":        float64(1),
		"received_time": "2025-06-01T09:30:00Z",
	}, UnitMajor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), tx.OccurredAt)

	// created_at is the alternate key
	tx, err = Normalize(map[string]any{
		"amount":     float64(1),
		"created_at": "2025-06-02 10:00:00",
	}, UnitMajor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), tx.OccurredAt)

	// an unparseable date never rejects; ingestion time is used
	before := time.Now().UTC()
	tx, err = Normalize(map[string]any{
		"amount":        float64(1),
		"received_time": "yesterday-ish",
	}, UnitMajor)
	require.NoError(t, err)
	assert.False(t, tx.OccurredAt.Before(before.Add(-time.Second)))
}

func TestNormalizeIDScheme(t *testing.T) {
	tx, err := Normalize(map[string]any{"amount": float64(1)}, UnitMajor)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx.ID, "TXN-"))
	assert.Len(t, strings.Split(tx.ID, "-"), 3)
}

func TestNormalizeKeepsRawPayload(t *testing.T) {
	payload := map[string]any{"amount": float64(1), "event_type": "P2P"}
	tx, err := Normalize(payload, UnitMajor)
	require.NoError(t, err)
	assert.Equal(t, "P2P", tx.RawPayload["event_type"])
}
