// Package csvio parses bank-exported CSV text into transactions and writes
// them back out. Parsing is lenient by design: a malformed field falls back
// to a benign value and never aborts the batch.
package csvio

import (
	"strings"

	"budget/internal/core"
)

// Classifier pre-fills categories during import and learns rules from the
// parsed batch. *rules.Engine satisfies it.
type Classifier interface {
	Classify(description string) string
	Learn(transactions []core.Transaction)
}

// Import parses raw CSV text whose first line is a header row. Column
// values are mapped by header name (case-sensitive, last duplicate wins),
// cells are trimmed, and blank lines are skipped. Recognized columns:
// Description, Categories or Category (first non-empty wins), Started Date
// or Date, Amount, Type, State. Ids are drawn from nextID in row order.
//
// Every parsed row, including reverted and pending ones, feeds
// rule-learning before the state filter runs; only completed rows appear in
// the returned list.
func Import(text string, classifier Classifier, nextID func() int64) []core.Transaction {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return nil
	}

	headers := splitRow(lines[0])
	columns := make(map[string]int, len(headers))
	for i, h := range headers {
		// Duplicate header names resolve to the last occurrence.
		columns[h] = i
	}

	var parsed []core.Transaction
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		values := splitRow(line)
		cell := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(values) {
				return ""
			}
			return values[i]
		}

		description := cell("Description")
		category := cell("Categories")
		if category == "" {
			category = cell("Category")
		}
		if category == "" {
			category = classifier.Classify(description)
		}
		date := cell("Started Date")
		if date == "" {
			date = cell("Date")
		}
		amount, _ := core.ParseAmount(cell("Amount"))

		parsed = append(parsed, core.Transaction{
			ID:          nextID(),
			Date:        date,
			Description: description,
			Category:    category,
			Amount:      amount,
			Type:        cell("Type"),
			State:       cell("State"),
		})
	}

	classifier.Learn(parsed)

	out := parsed[:0]
	for _, t := range parsed {
		if t.Excluded() {
			continue
		}
		out = append(out, t)
	}
	return out
}

func splitRow(line string) []string {
	cells := strings.Split(line, ",")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}
