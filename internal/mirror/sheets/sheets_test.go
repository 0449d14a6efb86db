package sheets

import (
	"testing"

	"budget/internal/core"
	"budget/internal/snapshot"
)

func TestSnapshotRows(t *testing.T) {
	snap := snapshot.Empty()
	snap.Accounts = append(snap.Accounts, snapshot.Account{ID: "acc_2", Name: "Side"})
	snap.AccountsData[snapshot.DefaultAccountID] = snapshot.AccountData{
		Transactions: []core.Transaction{
			{ID: 1, Date: "01/02/2024", Description: "Coffee", Category: "Dining", Amount: core.Money{Cents: -450}, Type: "Card Payment", State: core.StateCompleted},
		},
	}
	snap.AccountsData["acc_2"] = snapshot.AccountData{
		Transactions: []core.Transaction{
			{ID: 2, Date: "03/02/2024", Description: "Deposit", Category: "Savings", Amount: core.Money{Cents: 10000}},
		},
	}

	rows := snapshotRows(snap)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][0] != snapshot.DefaultAccountName || rows[1][4] != "-4.50" {
		t.Fatalf("row 1 = %v", rows[1])
	}
	if rows[2][0] != "Side" || rows[2][4] != "100.00" {
		t.Fatalf("row 2 = %v", rows[2])
	}
}

func TestSheetTitle(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"alice@example.com", "alice@example.com"},
		{"a/b:c", "a_b_c"},
		{"", "default"},
	}
	for i, c := range cases {
		if got := sheetTitle(c.in); got != c.want {
			t.Fatalf("case %d: sheetTitle(%q) = %q, want %q", i, c.in, got, c.want)
		}
	}
}
