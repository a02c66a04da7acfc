package webhook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/naruebet/tmwatch/internal/metrics"
)

// ErrNoPayload is returned when the request body cannot be interpreted as a
// payload map in any form.
var ErrNoPayload = errors.New("body is neither a JSON object nor a signed token")

// Decoder turns an inbound webhook body into a loosely typed payload map.
// It understands two shapes: a plain JSON object, and a three-segment signed
// token (carried raw, or inside a "message"/"token" field). Token claims are
// decoded without signature verification; transport-level auth is assumed
// upstream.
type Decoder struct {
	log *slog.Logger
}

func NewDecoder(log *slog.Logger) *Decoder {
	return &Decoder{log: log}
}

// Decode extracts the payload map from body. A malformed token degrades to the
// enclosing JSON object when there is one; only a body that yields no map at
// all returns ErrNoPayload.
func (d *Decoder) Decode(body []byte) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil && obj != nil {
		for _, key := range []string{"message", "token"} {
			s, ok := obj[key].(string)
			if !ok || !isToken(s) {
				continue
			}
			claims, err := decodeToken(s)
			if err != nil {
				d.log.Warn("token decode failed", "field", key, "err", err)
				metrics.DecodeFailures.Inc()
				break // fall back to the outer object
			}
			return claims, nil
		}
		return obj, nil
	}

	// Not a JSON object; the body itself may be a bare token.
	if raw := strings.TrimSpace(string(body)); isToken(raw) {
		claims, err := decodeToken(raw)
		if err == nil {
			return claims, nil
		}
		d.log.Warn("token decode failed", "err", err)
		metrics.DecodeFailures.Inc()
	}
	return nil, ErrNoPayload
}

// isToken applies the dispatch rule: exactly three dot-separated segments.
func isToken(s string) bool {
	return len(strings.Split(s, ".")) == 3
}

func decodeToken(s string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(s, claims); err != nil {
		return nil, err
	}
	return map[string]any(claims), nil
}
