package main

import (
	"fmt"
	"strings"
)

func collectGeneratedColumnWarnings(tables []TranslatedTable) []string {
	var warnings []string
	for _, t := range tables {
		for _, col := range t.Generated {
			warnings = append(warnings, fmt.Sprintf(
				"generated column %s.%s will be loaded as plain data; generation expression is not recreated",
				t.Name, col,
			))
		}
	}
	return warnings
}

// collectConstraintWarnings summarizes the table constraints left out of the
// translated DDL.
func collectConstraintWarnings(tables []TranslatedTable) []string {
	var names []string
	total := 0
	for _, t := range tables {
		if t.DroppedConstraints == 0 {
			continue
		}
		total += t.DroppedConstraints
		names = append(names, fmt.Sprintf("%s (%d)", t.Name, t.DroppedConstraints))
	}
	if total == 0 {
		return nil
	}
	return []string{fmt.Sprintf("%d table constraint(s) not enforced: %s", total, strings.Join(names, ", "))}
}
