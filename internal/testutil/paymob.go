package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/coursepay/internal/config"
)

const (
	HMACSecret         = "test-hmac-secret"
	PaymobToken        = "paymob-auth-token"
	CardIntegrationID  = 5237776
	CardIframeID       = 949862
	VoucherIntegration = 5237777
	VoucherIframeID    = 949863
)

// PaymobConfig returns a sandbox configuration pointing at baseURL.
func PaymobConfig(baseURL string) config.PaymobConfig {
	return config.PaymobConfig{
		BaseURL:              strings.TrimRight(baseURL, "/"),
		APIKey:               "test-api-key",
		HMACSecret:           HMACSecret,
		Environment:          config.EnvironmentSandbox,
		Currency:             "EGP",
		Country:              "EG",
		CardIntegrationID:    CardIntegrationID,
		CardIframeID:         CardIframeID,
		VoucherIntegrationID: VoucherIntegration,
		VoucherIframeID:      VoucherIframeID,
		RedirectURL:          "https://courses.example.com/payment/return",
		RequestTimeout:       5 * time.Second,
		TokenTTL:             50 * time.Minute,
	}
}

// RecordedRequest is one call the fake received.
type RecordedRequest struct {
	Path          string
	Authorization string
	Body          map[string]any
}

// FakePaymob is an in-process stand-in for the Paymob Accept API.
type FakePaymob struct {
	Server *httptest.Server

	mu          sync.Mutex
	nextOrderID int64
	failures    map[string]int
	inquiries   map[string]map[string]any
	requests    []RecordedRequest
}

// NewFakePaymob starts the fake; it is closed when the test ends.
func NewFakePaymob(t testing.TB) *FakePaymob {
	t.Helper()

	f := &FakePaymob{
		nextOrderID: 123,
		failures:    map[string]int{},
		inquiries:   map[string]map[string]any{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakePaymob) URL() string {
	return f.Server.URL
}

// Fail makes every call to path answer with status. Status 0 clears it.
func (f *FakePaymob) Fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, path)
		return
	}
	f.failures[path] = status
}

// SetInquiry sets the transaction returned for an order by transaction_inquiry.
func (f *FakePaymob) SetInquiry(orderID string, txn map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inquiries[orderID] = txn
}

// Requests returns the calls made to path, in order.
func (f *FakePaymob) Requests(path string) []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []RecordedRequest
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakePaymob) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	body := map[string]any{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	})
	status, failing := f.failures[r.URL.Path]
	f.mu.Unlock()

	if failing {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"detail":"forced failure"}`))
		return
	}

	if r.URL.Path != "/auth/tokens" && r.Header.Get("Authorization") != "Bearer "+PaymobToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/tokens":
		writeJSON(w, map[string]any{"token": PaymobToken})
	case "/ecommerce/orders":
		f.mu.Lock()
		id := f.nextOrderID
		f.nextOrderID++
		f.mu.Unlock()
		writeJSON(w, map[string]any{"id": id, "amount_cents": body["amount_cents"], "currency": body["currency"]})
	case "/acceptance/payment_keys":
		writeJSON(w, map[string]any{"token": fmt.Sprintf("pk_%v", body["order_id"])})
	case "/ecommerce/orders/transaction_inquiry":
		orderID := fmt.Sprint(body["order_id"])
		f.mu.Lock()
		txn, ok := f.inquiries[orderID]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"detail": "not found"})
			return
		}
		writeJSON(w, txn)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}
