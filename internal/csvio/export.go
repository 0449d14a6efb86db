package csvio

import (
	"strings"

	"budget/internal/core"
)

// ExportHeader is the fixed header line of exported files.
const ExportHeader = "Date,Description,Category,Amount,Type,State"

// Export renders the full transaction list, one line per transaction in
// list order. Fields are joined as-is; embedded commas are not escaped,
// matching the import side's plain comma split.
func Export(transactions []core.Transaction) string {
	lines := make([]string, 0, len(transactions)+1)
	lines = append(lines, ExportHeader)
	for _, t := range transactions {
		lines = append(lines, strings.Join([]string{
			t.Date,
			t.Description,
			t.Category,
			t.Amount.String(),
			t.Type,
			t.State,
		}, ","))
	}
	return strings.Join(lines, "\n")
}
