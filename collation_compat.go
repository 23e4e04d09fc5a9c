package main

import (
	"fmt"
	"sort"
	"strings"
)

// collectCollationWarnings reports the COLLATE clauses dropped from column
// declarations. SQLite compares those columns with its BINARY collation.
func collectCollationWarnings(tables []TranslatedTable) []string {
	// collation → "table.column" references
	refs := make(map[string][]string)
	for _, t := range tables {
		for _, clause := range t.Collations {
			col, coll, ok := strings.Cut(clause, " COLLATE ")
			if !ok {
				continue
			}
			coll = strings.Trim(coll, `"`)
			refs[coll] = append(refs[coll], fmt.Sprintf("%s.%s", t.Name, col))
		}
	}
	if len(refs) == 0 {
		return nil
	}

	var warnings []string
	warnings = append(warnings, fmt.Sprintf("source collations found: %s", strings.Join(sortedKeys(refs), ", ")))
	for _, coll := range sortedKeys(refs) {
		if isCaseInsensitiveCollation(coll) {
			warnings = append(warnings, fmt.Sprintf(
				"%d column(s) use %s (case-insensitive); SQLite text comparisons are case-sensitive by default: %s",
				len(refs[coll]), coll, strings.Join(refs[coll], ", ")))
			continue
		}
		warnings = append(warnings, fmt.Sprintf(
			"%d column(s) use %s; SQLite compares them with BINARY: %s",
			len(refs[coll]), coll, strings.Join(refs[coll], ", ")))
	}
	return warnings
}

// isCaseInsensitiveCollation recognizes ICU nondeterministic collations by
// their conventional names.
func isCaseInsensitiveCollation(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "_ci") || strings.Contains(lower, "nocase") ||
		strings.Contains(lower, "case_insensitive") || strings.Contains(lower, "-ks-level")
}

// sortedKeys returns the keys of a map in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
