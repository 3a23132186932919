package testutil

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/coursepay/internal/services"
)

// Transaction builds a Paymob transaction object carrying every signed field.
func Transaction(orderID string, amountCents int64, success, pending bool) map[string]any {
	order, err := strconv.ParseInt(orderID, 10, 64)
	var orderRef any = orderID
	if err == nil {
		orderRef = order
	}

	return map[string]any{
		"id":                     192036465,
		"pending":                pending,
		"amount_cents":           amountCents,
		"success":                success,
		"is_auth":                false,
		"is_capture":             false,
		"is_standalone_payment":  true,
		"is_voided":              false,
		"is_refunded":            false,
		"is_3d_secure":           true,
		"integration_id":         CardIntegrationID,
		"has_parent_transaction": false,
		"order": map[string]any{
			"id":           orderRef,
			"amount_cents": amountCents,
			"currency":     "EGP",
		},
		"created_at":    "2024-06-13T11:33:44.592345",
		"currency":      "EGP",
		"error_occured": false,
		"owner":         302852,
		"source_data": map[string]any{
			"pan":      "2346",
			"type":     "card",
			"sub_type": "MasterCard",
		},
		"data": map[string]any{"message": "Approved"},
	}
}

// Envelope marshals txn into a TRANSACTION webhook body and signs it.
func Envelope(t testing.TB, txn map[string]any) (body []byte, signature string) {
	t.Helper()

	obj, err := json.Marshal(txn)
	require.NoError(t, err)

	signature, err = services.NewPaymobHMAC(HMACSecret).Sign(obj)
	require.NoError(t, err)

	body, err = json.Marshal(services.WebhookEnvelope{Type: services.WebhookTypeTransaction, Obj: obj})
	require.NoError(t, err)
	return body, signature
}
