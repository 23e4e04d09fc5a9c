package main

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
)

// IndexPlan is the result of translating an index script.
type IndexPlan struct {
	Statements []string
	Dropped    []DroppedIndex
	Skipped    []SkippedStatement
}

var (
	indexCommentRe    = regexp.MustCompile(`--.*`)
	createIndexRe     = regexp.MustCompile(`(?i)^CREATE\s+(?:UNIQUE\s+)?INDEX\b`)
	createUniqueRe    = regexp.MustCompile(`(?i)^CREATE\s+UNIQUE\s+`)
	indexNameRe       = regexp.MustCompile(`(?i) INDEX\s+(?:CONCURRENTLY\s+)?(?:IF\s+NOT\s+EXISTS\s+)?(\S*)`)
	indexOnRe         = regexp.MustCompile(`(?i)\sON\s`)
	usingMethodRe     = regexp.MustCompile(`(?i)\s*\bUSING\s+\w+`)
	concurrentlyRe    = regexp.MustCompile(`(?i)\bCONCURRENTLY\s+`)
	operatorClassRe   = regexp.MustCompile(`(?i)([\w")])\s+[\w.]*_ops\b`)
	indexWhitespaceRe = regexp.MustCompile(`\s+`)
)

// translateIndexes turns a PostgreSQL index script into statements SQLite
// accepts. Expression indexes are dropped, custom access methods and
// operator classes are stripped, and the configured known-bad indexes lose
// their UNIQUE qualifier.
func translateIndexes(r io.Reader, cfg TranslateConfig) (*IndexPlan, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var lines []string
	for sc.Scan() {
		line := strings.TrimSpace(indexCommentRe.ReplaceAllString(sc.Text(), ""))
		if line == "" || strings.HasPrefix(line, `\`) {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read index script: %w", err)
	}

	plan := &IndexPlan{}
	for _, stmt := range splitStatements(strings.Join(lines, " ")) {
		stmt = strings.TrimSpace(stmt)
		switch strings.ToLower(stmt) {
		case "", "begin", "commit":
			continue
		}
		if kind, name, ok := unsupportedStatement(stmt); ok {
			plan.Skipped = append(plan.Skipped, SkippedStatement{Kind: kind, Name: name})
			continue
		}
		if createIndexRe.MatchString(stmt) {
			out, dropped := rewriteIndex(stmt, cfg)
			if dropped != nil {
				plan.Dropped = append(plan.Dropped, *dropped)
				continue
			}
			stmt = out
		}
		plan.Statements = append(plan.Statements, stmt)
	}
	return plan, nil
}

// rewriteIndex rewrites one CREATE INDEX statement, or reports why it must be dropped.
func rewriteIndex(stmt string, cfg TranslateConfig) (string, *DroppedIndex) {
	name := indexName(stmt)

	if cols, ok := indexColumnList(stmt); ok {
		lower := strings.ToLower(cols)
		for _, fn := range cfg.DropIndexFunctions {
			if fn != "" && strings.Contains(lower, strings.ToLower(fn)) {
				return "", &DroppedIndex{Name: name, Reason: fmt.Sprintf("function %q in column list", strings.TrimSuffix(fn, "(")), Statement: stmt}
			}
		}
		if strings.Contains(cols, "(") {
			return "", &DroppedIndex{Name: name, Reason: "expression key-parts are not supported", Statement: stmt}
		}
	}

	if slices.Contains(cfg.NonUniqueIndexes, strings.ToLower(strings.Trim(name, `"`))) {
		stmt = createUniqueRe.ReplaceAllString(stmt, "CREATE ")
	}
	stmt = concurrentlyRe.ReplaceAllString(stmt, "")
	stmt = usingMethodRe.ReplaceAllString(stmt, "")
	stmt = operatorClassRe.ReplaceAllString(stmt, "$1")
	stmt = indexWhitespaceRe.ReplaceAllString(strings.TrimSpace(stmt), " ")
	return stmt, nil
}

// indexColumnList returns the text between the parentheses following ON <table>.
func indexColumnList(stmt string) (string, bool) {
	loc := indexOnRe.FindStringIndex(stmt)
	if loc == nil {
		return "", false
	}
	open := strings.IndexByte(stmt[loc[1]:], '(')
	if open < 0 {
		return "", false
	}
	start := loc[1] + open + 1
	depth := 1
	for i := start; i < len(stmt); i++ {
		switch stmt[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return stmt[start:i], true
			}
		}
	}
	return "", false
}

// indexName returns the index name of a CREATE INDEX statement, or "".
func indexName(stmt string) string {
	m := indexNameRe.FindStringSubmatch(stmt)
	if m == nil {
		return ""
	}
	return m[1]
}
