package main

import "fmt"

func collectIndexCompatibilityWarnings(plan *IndexPlan) []string {
	if plan == nil {
		return nil
	}

	var warnings []string
	for _, d := range plan.Dropped {
		name := d.Name
		if name == "" {
			name = d.Statement
		}
		warnings = append(warnings, fmt.Sprintf("index %s dropped: %s", name, d.Reason))
	}
	return warnings
}
