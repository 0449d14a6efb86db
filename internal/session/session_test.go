package session

import (
	"context"
	"errors"
	"testing"

	"budget/internal/allocation"
	"budget/internal/core"
	"budget/internal/snapshot"
	"budget/internal/snapshot/memory"
	"budget/internal/views"
)

func TestImportThenOverview(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), "u1")

	csv := "Date,Description,Amount\n" +
		"01/02/2024,Coffee Shop,-4.50\n" +
		"05/02/2024,Salary,2500.00\n"
	if n := s.ImportCSV(ctx, csv); n != 2 {
		t.Fatalf("imported %d rows, want 2", n)
	}

	ov := s.Overview(views.Filter{DateScope: views.ScopeAll})
	if len(ov.Transactions) != 2 {
		t.Fatalf("overview transactions = %d", len(ov.Transactions))
	}
	if ov.Stats.Income.Cents != 250000 || ov.Stats.Spending.Cents != 450 {
		t.Fatalf("stats = %+v", ov.Stats)
	}
}

func TestSwitchAccountIsLossless(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), "u1")

	s.ImportCSV(ctx, "Date,Description,Amount\n01/02/2024,Coffee,-4.50\n")
	s.AddRule(ctx, "coffee", "Dining")

	acc, err := s.AddAccount(ctx, "Savings")
	if err != nil {
		t.Fatal(err)
	}
	if acc.ID == "" || s.ActiveAccount().ID != acc.ID {
		t.Fatalf("AddAccount did not switch: active = %q", s.ActiveAccount().ID)
	}
	if len(s.Transactions()) != 0 || len(s.Rules()) != 0 {
		t.Fatal("new partition not empty")
	}

	s.ImportCSV(ctx, "Date,Description,Amount\n03/02/2024,Deposit,100.00\n")

	if err := s.SwitchAccount(ctx, snapshot.DefaultAccountID); err != nil {
		t.Fatal(err)
	}
	txs := s.Transactions()
	if len(txs) != 1 || txs[0].Description != "Coffee" {
		t.Fatalf("default partition lost data: %+v", txs)
	}
	if len(s.Rules()) != 1 {
		t.Fatalf("rules = %+v", s.Rules())
	}

	if err := s.SwitchAccount(ctx, acc.ID); err != nil {
		t.Fatal(err)
	}
	txs = s.Transactions()
	if len(txs) != 1 || txs[0].Description != "Deposit" {
		t.Fatalf("second partition lost data: %+v", txs)
	}
}

func TestDeleteAccountGuards(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), "u1")

	if err := s.DeleteAccount(ctx, snapshot.DefaultAccountID); !errors.Is(err, ErrProtectedPartition) {
		t.Fatalf("err = %v, want ErrProtectedPartition", err)
	}

	acc, _ := s.AddAccount(ctx, "Side")
	if err := s.DeleteAccount(ctx, acc.ID); err != nil {
		t.Fatal(err)
	}
	if s.ActiveAccount().ID != snapshot.DefaultAccountID {
		t.Fatalf("active = %q after deleting active partition", s.ActiveAccount().ID)
	}
	if err := s.DeleteAccount(ctx, snapshot.DefaultAccountID); !errors.Is(err, ErrProtectedPartition) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadMigratesLegacySnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.SeedRaw("u1", []byte(`{
		"transactions": [{"id": 7, "date": "01/02/2024", "description": "Coffee", "category": "Dining", "amount": -4.5}],
		"categoryRules": {"coffee": "Dining"}
	}`))

	s := New(store, "u1")
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if s.ActiveAccount().ID != snapshot.DefaultAccountID {
		t.Fatalf("active = %q", s.ActiveAccount().ID)
	}
	txs := s.Transactions()
	if len(txs) != 1 || txs[0].Amount.Cents != -450 {
		t.Fatalf("transactions = %+v", txs)
	}
	if len(s.Rules()) != 1 {
		t.Fatalf("rules = %+v", s.Rules())
	}

	// New ids must not collide with migrated ones.
	tx := s.AddTransaction(ctx)
	if tx.ID <= 7 {
		t.Fatalf("new id %d collides with migrated ids", tx.ID)
	}
}

func TestAllocateEnforcesEligibility(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), "u1")
	s.ImportCSV(ctx, "Date,Description,Category,Amount\n"+
		"01/02/2024,Transfer,Savings,170.00\n"+
		"02/02/2024,Coffee,Dining,-4.50\n")

	txs := s.Transactions()
	var savings, coffee core.Transaction
	for _, tx := range txs {
		if tx.Description == "Transfer" {
			savings = tx
		} else {
			coffee = tx
		}
	}

	if err := s.Allocate(ctx, coffee.ID, "Trip", core.Money{Cents: 100}); !errors.Is(err, ErrNotSavings) {
		t.Fatalf("err = %v, want ErrNotSavings", err)
	}
	if err := s.Allocate(ctx, savings.ID, "Trip", core.Money{Cents: 15000}); err != nil {
		t.Fatal(err)
	}
	if got := s.TotalAllocated(savings.ID); got.Cents != 15000 {
		t.Fatalf("total = %d", got.Cents)
	}
}

func TestUpdateMayShrinkAmountBelowAllocatedTotal(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), "u1")
	s.ImportCSV(ctx, "Date,Description,Category,Amount\n01/02/2024,Transfer,Savings,100.00\n")
	tx := s.Transactions()[0]

	if err := s.Allocate(ctx, tx.ID, "Trip", core.Money{Cents: 8000}); err != nil {
		t.Fatal(err)
	}

	// Shrinking the amount below the allocated total is allowed; existing
	// allocations survive untouched.
	tx.Amount = core.Money{Cents: 5000}
	if err := s.UpdateTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	if got := s.TotalAllocated(tx.ID); got.Cents != 8000 {
		t.Fatalf("total = %d", got.Cents)
	}

	// The breakdown keeps the named bucket and omits the now negative
	// unallocated remainder.
	ov := s.Overview(views.Filter{DateScope: views.ScopeAll})
	if len(ov.Savings) != 1 || ov.Savings[0].Name != "Trip" {
		t.Fatalf("savings = %+v", ov.Savings)
	}

	// Further allocations are rejected against the new, smaller amount.
	if err := s.Allocate(ctx, tx.ID, "Car", core.Money{Cents: 100}); !errors.Is(err, allocation.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
}

func TestDeleteTransactionDropsAllocations(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), "u1")
	s.ImportCSV(ctx, "Date,Description,Category,Amount\n01/02/2024,Transfer,Savings,100.00\n")
	id := s.Transactions()[0].ID

	if err := s.Allocate(ctx, id, "Trip", core.Money{Cents: 5000}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTransaction(ctx, id); err != nil {
		t.Fatal(err)
	}
	if got := s.TotalAllocated(id); got.Cents != 0 {
		t.Fatalf("allocations survived deletion: %d", got.Cents)
	}
}

func TestUpdateTransactionOverwritesRule(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), "u1")
	s.AddRule(ctx, "coffee shop", "Dining")
	s.ImportCSV(ctx, "Date,Description,Amount\n01/02/2024,Coffee Shop,-4.50\n")

	tx := s.Transactions()[0]
	if tx.Category != "Dining" {
		t.Fatalf("category = %q", tx.Category)
	}

	tx.Category = "Coffee"
	if err := s.UpdateTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	rs := s.Rules()
	if len(rs) != 1 || rs[0].Category != "Coffee" {
		t.Fatalf("rules = %+v", rs)
	}
}

func TestSaveFailureDoesNotCorruptState(t *testing.T) {
	ctx := context.Background()
	s := New(failingGateway{}, "u1")

	if n := s.ImportCSV(ctx, "Date,Description,Amount\n01/02/2024,Coffee,-4.50\n"); n != 1 {
		t.Fatalf("imported %d", n)
	}
	if len(s.Transactions()) != 1 {
		t.Fatal("in-memory state lost on save failure")
	}
}

func TestLogoutResets(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), "u1")
	s.ImportCSV(ctx, "Date,Description,Amount\n01/02/2024,Coffee,-4.50\n")
	s.AddAccount(ctx, "Side")

	s.Logout()
	if len(s.Transactions()) != 0 {
		t.Fatal("transactions survived logout")
	}
	accs := s.Accounts()
	if len(accs) != 1 || accs[0].ID != snapshot.DefaultAccountID {
		t.Fatalf("accounts = %+v", accs)
	}
}

type failingGateway struct{}

func (failingGateway) Save(context.Context, string, snapshot.Snapshot) error {
	return errors.New("backend down")
}

func (failingGateway) Load(context.Context, string) (*snapshot.Snapshot, error) {
	return nil, nil
}
