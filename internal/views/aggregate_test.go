package views

import (
	"testing"

	"budget/internal/allocation"
	"budget/internal/core"
)

func TestCategoryBreakdown(t *testing.T) {
	txs := []core.Transaction{
		tx(1, "01/01/2024", "a", "Dining", -1050),
		tx(2, "01/01/2024", "b", "Dining", -950),
		tx(3, "01/01/2024", "c", "Groceries", -3000),
		tx(4, "01/01/2024", "d", "Salary", 500000), // income never counts
	}
	got := CategoryBreakdown(txs)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Name != "Groceries" || got[0].Value != 30 {
		t.Fatalf("bucket 0 = %+v", got[0])
	}
	if got[1].Name != "Dining" || got[1].Value != 20 {
		t.Fatalf("bucket 1 = %+v", got[1])
	}
}

func TestMonthlySeries(t *testing.T) {
	txs := []core.Transaction{
		tx(1, "01/2/2024", "a", "X", -1000),
		tx(2, "15/02/2024", "b", "X", -500),
		tx(3, "01/02/2024", "c", "X", 2000),
		tx(4, "01/01/2024", "d", "X", -100),
		tx(5, "no-date", "e", "X", -999),
	}
	got := MonthlySeries(txs)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Month != "2024-01" || got[0].Spending != 1 || got[0].Income != 0 {
		t.Fatalf("point 0 = %+v", got[0])
	}
	if got[1].Month != "2024-02" || got[1].Spending != 15 || got[1].Income != 20 {
		t.Fatalf("point 1 = %+v", got[1])
	}
}

func TestSavingsBreakdown(t *testing.T) {
	txs := []core.Transaction{
		tx(1, "01/01/2024", "Deposit", "Savings", 12000),
		tx(2, "01/01/2024", "Deposit", "Holiday savings", 5000),
		tx(3, "01/01/2024", "Withdrawal", "Savings", -4000), // negative: not eligible
		tx(4, "01/01/2024", "Lunch", "Dining", -1000),
	}
	ledger := allocation.New()
	if err := ledger.Allocate(1, "Trip", core.Money{Cents: 10000}, core.Money{Cents: 12000}); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Allocate(2, "Trip", core.Money{Cents: 5000}, core.Money{Cents: 5000}); err != nil {
		t.Fatal(err)
	}

	got := SavingsBreakdown(txs, ledger)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Name != "Trip" || got[0].Value != 150 {
		t.Fatalf("bucket 0 = %+v", got[0])
	}
	// Only tx 1 has a positive remainder; tx 2 is fully allocated and adds
	// no Unallocated bucket.
	if got[1].Name != UnallocatedBucket || got[1].Value != 20 {
		t.Fatalf("bucket 1 = %+v", got[1])
	}
}

func TestSummarize(t *testing.T) {
	txs := []core.Transaction{
		tx(1, "01/01/2024", "a", "X", -1050),
		tx(2, "01/01/2024", "b", "X", 2000),
		tx(3, "01/01/2024", "c", "X", -950),
	}
	s := Summarize(txs)
	if s.Total.Cents != 0 {
		t.Fatalf("total = %d", s.Total.Cents)
	}
	if s.Spending.Cents != 2000 || s.Income.Cents != 2000 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestDistinctValues(t *testing.T) {
	txs := []core.Transaction{
		tx(1, "01/01/2024", "a", "Groceries", -1),
		tx(2, "01/02/2024", "b", "Dining", -1),
		tx(3, "01/2/2023", "c", "Dining", -1),
		tx(4, "broken", "d", "Dining", -1),
	}

	cats := DistinctCategories(txs)
	if len(cats) != 2 || cats[0] != "Dining" || cats[1] != "Groceries" {
		t.Fatalf("categories = %v", cats)
	}

	months := DistinctMonths(txs)
	if len(months) != 3 || months[0] != "2024-02" || months[2] != "2023-02" {
		t.Fatalf("months = %v", months)
	}

	years := DistinctYears(txs)
	if len(years) != 2 || years[0] != "2024" || years[1] != "2023" {
		t.Fatalf("years = %v", years)
	}
}
