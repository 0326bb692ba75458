package connectors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CB-ACCESS-SIGN = base64( HMAC_SHA256(base64decode(secret), timestamp + method + requestPath + body) )
// requestPath includes the query string exactly as sent, e.g. "/fills?product_id=BTC-USD".
func SignRequest(secret, timestamp, method, requestPath string, body any) (string, error) {
	payload, err := serializeBody(body)
	if err != nil {
		return "", err
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("base64 decode api secret failed: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(timestamp + method + requestPath + payload))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// serializeBody renders the body part of the prehash string. Text bodies are used
// verbatim, anything else is signed as its JSON encoding.
func serializeBody(body any) (string, error) {
	switch b := body.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	case []byte:
		return string(b), nil
	case json.RawMessage:
		return string(b), nil
	case fmt.Stringer:
		return b.String(), nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return "", fmt.Errorf("marshal body for signature: %w", err)
		}
		return string(raw), nil
	}
}

// accessTimestamp formats t as unix seconds with millisecond fraction ("1700000000.123").
func accessTimestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', -1, 64)
}
