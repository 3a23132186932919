package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// hmacFields is the order Paymob concatenates transaction fields in
// before signing a TRANSACTION callback.
var hmacFields = []string{
	"amount_cents",
	"created_at",
	"currency",
	"error_occured",
	"has_parent_transaction",
	"id",
	"integration_id",
	"is_3d_secure",
	"is_auth",
	"is_capture",
	"is_refunded",
	"is_standalone_payment",
	"is_voided",
	"order.id",
	"owner",
	"pending",
	"source_data.pan",
	"source_data.sub_type",
	"source_data.type",
	"success",
}

// PaymobHMAC signs and verifies webhook transaction objects.
type PaymobHMAC struct {
	secret []byte
}

func NewPaymobHMAC(secret string) *PaymobHMAC {
	return &PaymobHMAC{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA512 of the transaction's signing string.
func (h *PaymobHMAC) Sign(obj json.RawMessage) (string, error) {
	message, err := ConcatTransactionFields(obj)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, h.secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature matches obj. An empty signature never matches.
func (h *PaymobHMAC) Verify(obj json.RawMessage, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" || len(h.secret) == 0 {
		return false
	}
	expected, err := h.Sign(obj)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ConcatTransactionFields builds the signing string. Values are rendered the way
// Paymob's own string interpolation renders them: strings without quotes,
// numbers and booleans verbatim, null or missing as empty.
func ConcatTransactionFields(obj json.RawMessage) (string, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(obj, &root); err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	var b strings.Builder
	for _, field := range hmacFields {
		b.WriteString(fieldString(root, field))
	}
	return b.String(), nil
}

func fieldString(root map[string]json.RawMessage, path string) string {
	parts := strings.Split(path, ".")
	current := root
	for i, part := range parts {
		raw, ok := current[part]
		if !ok {
			return ""
		}
		if i == len(parts)-1 {
			return scalarString(raw)
		}
		next := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &next); err != nil {
			return ""
		}
		current = next
	}
	return ""
}

func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}
