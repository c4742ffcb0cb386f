package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, handler http.Handler) (*ExplorerClient, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewExplorerClient(srv.URL, 5, 2, 1024*1024)
	return client, srv.Close
}

func TestExplorerGetBalance(t *testing.T) {
	client, cleanup := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/addresses/XSNaddr1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"balance":"123.4567891","totalTransactions":5,"lastTransactionTime":1700000000}`))
	}))
	defer cleanup()

	balance, found, err := client.GetBalance(context.Background(), "XSNaddr1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected address to be found")
	}
	want, _ := decimal.NewFromString("123.4567891")
	if !balance.Equal(want) {
		t.Fatalf("balance = %s, want %s", balance, want)
	}
}

func TestExplorerGetBalanceUnknownAddress(t *testing.T) {
	client, cleanup := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer cleanup()

	_, found, err := client.GetBalance(context.Background(), "bogus")
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if found {
		t.Fatal("unknown address must report found=false")
	}
}

func TestExplorerGetLastWatermark(t *testing.T) {
	client, cleanup := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balance":"0","totalTransactions":0,"lastTransactionTime":1699999999}`))
	}))
	defer cleanup()

	last, err := client.GetLastWatermark(context.Background(), "XSNaddr1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last != 1699999999 {
		t.Fatalf("watermark = %d, want 1699999999", last)
	}
}

func TestExplorerGetNewTransactions(t *testing.T) {
	client, cleanup := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("since"); got != "100" {
			t.Errorf("since = %q, want 100", got)
		}
		w.Write([]byte(`{"transactions":[
			{"sent":"0","received":"2.5","time":150},
			{"sent":"1.0","received":"0","time":120}
		]}`))
	}))
	defer cleanup()

	txs, err := client.GetNewTransactions(context.Background(), "XSNaddr1", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].Time != 150 || txs[1].Time != 120 {
		t.Fatalf("unexpected times: %d, %d", txs[0].Time, txs[1].Time)
	}
	if !txs[0].Delta().Equal(decimal.NewFromFloat(2.5)) {
		t.Fatalf("delta = %s, want 2.5", txs[0].Delta())
	}
}

func TestExplorerRetriesServerErrors(t *testing.T) {
	attempts := 0
	client, cleanup := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"balance":"1","totalTransactions":1,"lastTransactionTime":10}`))
	}))
	defer cleanup()

	_, found, err := client.GetBalance(context.Background(), "XSNaddr1")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if !found {
		t.Fatal("expected found after retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExplorerMalformedResponse(t *testing.T) {
	client, cleanup := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>definitely not json</html>`))
	}))
	defer cleanup()

	_, _, err := client.GetBalance(context.Background(), "XSNaddr1")
	if err == nil {
		t.Fatal("expected error for malformed response")
	}
}
