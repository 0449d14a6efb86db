package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/snapshot/memory"
	"budget/internal/views"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(":0", memory.New(), 16, time.Minute)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
}

func TestImportAndOverview(t *testing.T) {
	s := newTestServer(t)

	csv := "Date,Description,Amount\n01/02/2024,Coffee Shop,-4.50\n05/02/2024,Salary,2500.00\n"
	rec := do(t, s, http.MethodPost, "/api/import", csv)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d: %s", rec.Code, rec.Body)
	}
	var imported map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &imported); err != nil {
		t.Fatal(err)
	}
	if imported["imported"] != 2 {
		t.Fatalf("imported = %d", imported["imported"])
	}

	rec = do(t, s, http.MethodPost, "/api/overview", `{"dateFilterType":"all"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview = %d: %s", rec.Code, rec.Body)
	}
	var ov views.Overview
	if err := json.Unmarshal(rec.Body.Bytes(), &ov); err != nil {
		t.Fatal(err)
	}
	if len(ov.Transactions) != 2 {
		t.Fatalf("transactions = %d", len(ov.Transactions))
	}
	if ov.Stats.Income.Value() != 2500 {
		t.Fatalf("income = %v", ov.Stats.Income)
	}
}

func TestOverviewCacheInvalidatedByMutation(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/import", "Date,Description,Amount\n01/02/2024,Coffee,-4.50\n")

	rec := do(t, s, http.MethodPost, "/api/overview", `{"dateFilterType":"all"}`)
	var before views.Overview
	json.Unmarshal(rec.Body.Bytes(), &before)

	// A second import with more rows must be visible immediately.
	do(t, s, http.MethodPost, "/api/import", "Date,Description,Amount\n01/02/2024,Coffee,-4.50\n02/02/2024,Tea,-3.00\n")

	rec = do(t, s, http.MethodPost, "/api/overview", `{"dateFilterType":"all"}`)
	var after views.Overview
	json.Unmarshal(rec.Body.Bytes(), &after)

	if len(before.Transactions) != 1 || len(after.Transactions) != 2 {
		t.Fatalf("before = %d, after = %d", len(before.Transactions), len(after.Transactions))
	}
}

func TestTransactionLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/transactions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("add = %d: %s", rec.Code, rec.Body)
	}
	var tx core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatal(err)
	}
	if tx.Category != core.Uncategorized {
		t.Fatalf("category = %q", tx.Category)
	}

	tx.Description = "Groceries"
	tx.Category = "Food"
	body, _ := json.Marshal(tx)
	rec = do(t, s, http.MethodPut, fmt.Sprintf("/api/transactions/%d", tx.ID), string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body)
	}

	// Manual categorization creates a rule.
	rec = do(t, s, http.MethodGet, "/api/rules", "")
	if !strings.Contains(rec.Body.String(), "Food") {
		t.Fatalf("rules = %s", rec.Body)
	}

	rec = do(t, s, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = do(t, s, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", rec.Code)
	}
}

func TestAllocationEndpointStatusCodes(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/import",
		"Date,Description,Category,Amount\n01/02/2024,Transfer,Savings,100.00\n02/02/2024,Coffee,Dining,-4.50\n")

	rec := do(t, s, http.MethodGet, "/api/transactions", "")
	var txs []core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &txs); err != nil {
		t.Fatal(err)
	}
	var savings, coffee int64
	for _, tx := range txs {
		if tx.Category == "Savings" {
			savings = tx.ID
		} else {
			coffee = tx.ID
		}
	}

	// Not a savings deposit.
	rec = do(t, s, http.MethodPost, fmt.Sprintf("/api/transactions/%d/allocations", coffee), `{"purpose":"Trip","amount":10}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("non-savings = %d: %s", rec.Code, rec.Body)
	}

	// Valid allocation.
	rec = do(t, s, http.MethodPost, fmt.Sprintf("/api/transactions/%d/allocations", savings), `{"purpose":"Trip","amount":60}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("allocate = %d: %s", rec.Code, rec.Body)
	}

	// Over capacity: 60 + 50 > 100.
	rec = do(t, s, http.MethodPost, fmt.Sprintf("/api/transactions/%d/allocations", savings), `{"purpose":"Car","amount":50}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over capacity = %d: %s", rec.Code, rec.Body)
	}

	// Unknown transaction.
	rec = do(t, s, http.MethodPost, "/api/transactions/99999/allocations", `{"purpose":"Trip","amount":1}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown tx = %d", rec.Code)
	}
}

func TestAccountEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/accounts", `{"name":"Savings"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add account = %d: %s", rec.Code, rec.Body)
	}
	var acc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &acc); err != nil {
		t.Fatal(err)
	}

	// Deleting the default partition is rejected.
	rec = do(t, s, http.MethodDelete, "/api/accounts/default", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete default = %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/accounts/default/switch", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("switch = %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodDelete, "/api/accounts/"+acc.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodDelete, "/api/accounts/default", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete last = %d", rec.Code)
	}

	// Blank name is rejected.
	rec = do(t, s, http.MethodPost, "/api/accounts", `{"name":"  "}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank name = %d", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/import", "Date,Description,Amount\n01/02/2024,Coffee,-4.50\n")

	rec := do(t, s, http.MethodGet, "/api/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "Date,Description,Category,Amount,Type,State") {
		t.Fatalf("header missing: %s", body)
	}
	if !strings.Contains(body, "01/02/2024,Coffee,") || !strings.Contains(body, "-4.50") {
		t.Fatalf("row missing: %s", body)
	}
}

func TestConcurrentOverviewAndMutations(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/import", "Date,Description,Amount\n01/02/2024,Coffee,-4.50\n")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 6; j++ {
				rec := do(t, s, http.MethodPost, "/api/overview", `{"dateFilterType":"all"}`)
				if rec.Code != http.StatusOK {
					t.Errorf("overview = %d", rec.Code)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				rec := do(t, s, http.MethodPost, "/api/transactions", "")
				if rec.Code != http.StatusCreated {
					t.Errorf("add = %d", rec.Code)
					return
				}
			}
		}()
	}
	wg.Wait()

	// After all mutations settle, the overview must reflect every one.
	rec := do(t, s, http.MethodPost, "/api/overview", `{"dateFilterType":"all"}`)
	var ov views.Overview
	if err := json.Unmarshal(rec.Body.Bytes(), &ov); err != nil {
		t.Fatal(err)
	}
	if len(ov.Transactions) != 17 {
		t.Fatalf("transactions = %d, want 17", len(ov.Transactions))
	}
}

func TestUsersAreIsolated(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import",
		strings.NewReader("Date,Description,Amount\n01/02/2024,Coffee,-4.50\n"))
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("X-User-ID", "bob")
	rec = httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	var txs []core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &txs); err != nil {
		t.Fatal(err)
	}
	if len(txs) != 0 {
		t.Fatalf("bob sees alice's transactions: %+v", txs)
	}
}
