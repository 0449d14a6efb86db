// Package rules implements the auto-categorization rule engine: an ordered
// list of pattern to category mappings matched by case-insensitive
// substring containment.
package rules

import (
	"strings"

	"budget/internal/core"
)

// Rule maps a lower-cased, trimmed pattern to a category name.
type Rule struct {
	Pattern  string `json:"pattern"`
	Category string `json:"category"`
}

// Engine holds the rules of one account partition. Enumeration order is an
// explicit property: Classify returns the first match in insertion order,
// so the list, not a bare map, is the source of truth.
type Engine struct {
	rules []Rule
	index map[string]int
}

// New returns an empty engine.
func New() *Engine {
	return &Engine{index: make(map[string]int)}
}

// FromRules rebuilds an engine from a stored rule list, keeping order.
// Later duplicates of a pattern overwrite earlier ones in place.
func FromRules(rules []Rule) *Engine {
	e := New()
	for _, r := range rules {
		e.Put(r.Pattern, r.Category)
	}
	return e
}

// Classify returns the category of the first rule whose pattern is a
// substring of the description, or the Uncategorized sentinel. It never
// mutates the engine.
func (e *Engine) Classify(description string) string {
	desc := strings.ToLower(description)
	for _, r := range e.rules {
		if strings.Contains(desc, r.Pattern) {
			return r.Category
		}
	}
	return core.Uncategorized
}

// Put adds or overwrites a rule by hand. Blank patterns or categories are
// ignored. Overwriting keeps the rule's position in enumeration order.
func (e *Engine) Put(pattern, category string) {
	pattern = normalize(pattern)
	if pattern == "" || strings.TrimSpace(category) == "" {
		return
	}
	if i, ok := e.index[pattern]; ok {
		e.rules[i].Category = category
		return
	}
	e.index[pattern] = len(e.rules)
	e.rules = append(e.rules, Rule{Pattern: pattern, Category: category})
}

// Delete removes a rule by pattern.
func (e *Engine) Delete(pattern string) {
	pattern = normalize(pattern)
	i, ok := e.index[pattern]
	if !ok {
		return
	}
	e.rules = append(e.rules[:i], e.rules[i+1:]...)
	delete(e.index, pattern)
	for j := i; j < len(e.rules); j++ {
		e.index[e.rules[j].Pattern] = j
	}
}

// Learn derives rules from categorized transactions: each record with a
// non-empty description and a non-sentinel category contributes its
// lower-cased trimmed description as a pattern. Existing rules are never
// overwritten by learning; only manual Put can do that.
func (e *Engine) Learn(transactions []core.Transaction) {
	for _, t := range transactions {
		if t.Description == "" || t.Category == "" || t.Category == core.Uncategorized {
			continue
		}
		pattern := normalize(t.Description)
		if pattern == "" {
			continue
		}
		if _, ok := e.index[pattern]; ok {
			continue
		}
		e.index[pattern] = len(e.rules)
		e.rules = append(e.rules, Rule{Pattern: pattern, Category: t.Category})
	}
}

// Reapply reclassifies every record still carrying the sentinel category,
// in place. Records with any other category are left untouched.
func (e *Engine) Reapply(transactions []core.Transaction) {
	for i := range transactions {
		if transactions[i].Category == core.Uncategorized {
			transactions[i].Category = e.Classify(transactions[i].Description)
		}
	}
}

// Rules returns the rules in stable enumeration order. The slice is a copy.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

func normalize(pattern string) string {
	return strings.ToLower(strings.TrimSpace(pattern))
}
