package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDecoder() *Decoder {
	return NewDecoder(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestDecodeRawJSONObject(t *testing.T) {
	body := []byte(`{"amount": 10050, "sender_mobile": "081-111-2222"}`)
	m, err := testDecoder().Decode(body)
	require.NoError(t, err)
	assert.Equal(t, float64(10050), m["amount"])
	assert.Equal(t, "081-111-2222", m["sender_mobile"])
}

func TestDecodeTokenInMessageField(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"amount": 250.0, "payer_mobile": "089-000-1111"})
	body, err := json.Marshal(map[string]string{"message": tok})
	require.NoError(t, err)

	m, err := testDecoder().Decode(body)
	require.NoError(t, err)
	assert.Equal(t, float64(250), m["amount"])
	assert.Equal(t, "089-000-1111", m["payer_mobile"])
}

func TestDecodeTokenInTokenField(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"amount": 99.0})
	body, err := json.Marshal(map[string]string{"token": tok})
	require.NoError(t, err)

	m, err := testDecoder().Decode(body)
	require.NoError(t, err)
	assert.Equal(t, float64(99), m["amount"])
}

func TestDecodeBareToken(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"amount": 10.0})
	m, err := testDecoder().Decode([]byte(tok))
	require.NoError(t, err)
	assert.Equal(t, float64(10), m["amount"])
}

func TestSegmentCountDisqualifiesTokenPath(t *testing.T) {
	// two and four segments must never hit the token decoder; the outer
	// object comes back untouched
	for _, s := range []string{"a.b", "a.b.c.d"} {
		body, err := json.Marshal(map[string]string{"message": s})
		require.NoError(t, err)

		m, err := testDecoder().Decode(body)
		require.NoError(t, err)
		assert.Equal(t, s, m["message"])
	}
}

func TestMalformedTokenDegradesToOuterObject(t *testing.T) {
	body := []byte(`{"message": "not.base64!.segments", "amount": 5}`)
	m, err := testDecoder().Decode(body)
	require.NoError(t, err)
	assert.Equal(t, float64(5), m["amount"])
}

func TestDecodeNoPayload(t *testing.T) {
	_, err := testDecoder().Decode([]byte("not json at all"))
	assert.ErrorIs(t, err, ErrNoPayload)
}
