package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// compatWarnings gathers the warnings about a translated schema and, when
// given, its index plan.
func compatWarnings(tr *tableTranslation, plan *IndexPlan) []string {
	var warnings []string
	warnings = append(warnings, skippedStatementWarnings(tr.Skipped)...)
	warnings = append(warnings, collectConstraintWarnings(tr.Tables)...)
	warnings = append(warnings, collectCollationWarnings(tr.Tables)...)
	warnings = append(warnings, collectGeneratedColumnWarnings(tr.Tables)...)
	warnings = append(warnings, collectIndexCompatibilityWarnings(plan)...)
	return warnings
}

// runCheck translates the schema without touching the database and prints
// everything that is dropped or coerced. Unknown types are collected rather
// than fatal so that one run lists all of them.
func runCheck(cfg *Config, w io.Writer, columns bool) error {
	mapper := NewTypeMapper(cfg.Translate)
	mapper.collect = true

	tr, err := translateTableFiles(cfg.tablesPaths(), mapper)
	if tr == nil {
		return err
	}
	plan, ierr := translateIndexFile(cfg)
	if ierr != nil {
		err = errors.Join(err, ierr)
	}

	cols, epoch := 0, 0
	for _, t := range tr.Tables {
		for _, c := range t.Columns {
			cols++
			if c.Epoch {
				epoch++
			}
		}
	}
	fmt.Fprintf(w, "tables: %d, columns: %d (%d epoch timestamps)\n", len(tr.Tables), cols, epoch)
	if plan != nil {
		fmt.Fprintf(w, "indexes: %d kept, %d dropped\n", len(plan.Statements), len(plan.Dropped))
	}

	if columns {
		for _, t := range tr.Tables {
			fmt.Fprintf(w, "%s\n", t.Name)
			for _, c := range t.Columns {
				target := formatTargetType(c)
				if labels := mapper.enums.labels(c.SourceType); len(labels) > 0 {
					target += " enum(" + strings.Join(labels, ", ") + ")"
				}
				fmt.Fprintf(w, "  %-32s %-28s %s\n", c.Name, c.SourceType, target)
			}
		}
	}

	unknown := collectUnsupportedTypeErrors(mapper)
	for _, u := range unknown {
		fmt.Fprintf(w, "ERROR: %s\n", u)
	}
	for _, warn := range compatWarnings(tr, plan) {
		fmt.Fprintf(w, "WARN: %s\n", warn)
	}

	if len(unknown) > 0 {
		err = errors.Join(err, fmt.Errorf("%d column(s) with unknown types (set translate.unknown_as_text or translate.type_overrides)", len(unknown)))
	}
	return err
}
