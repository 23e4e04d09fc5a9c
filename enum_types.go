package main

import (
	"regexp"
	"strings"
)

// enumRegistry tracks PostgreSQL enum types declared with CREATE TYPE ... AS ENUM.
type enumRegistry struct {
	byName map[string][]string
}

func newEnumRegistry() *enumRegistry {
	return &enumRegistry{byName: make(map[string][]string)}
}

var createEnumRe = regexp.MustCompile(`(?is)^\s*CREATE\s+TYPE\s+(\S+)\s+AS\s+ENUM\b`)

// register records the enum declared by stmt, if it is one. stmt may span
// several lines and must include the closing parenthesis to capture labels.
func (r *enumRegistry) register(stmt string) (string, bool) {
	m := createEnumRe.FindStringSubmatch(stmt)
	if m == nil {
		return "", false
	}
	name := normalizeTypeName(m[1])
	r.byName[name] = parseEnumLabels(stmt[len(m[0]):])
	return name, true
}

// has reports whether kind (a lower-cased column type) names a registered enum,
// optionally schema-qualified or as an array.
func (r *enumRegistry) has(kind string) bool {
	if len(r.byName) == 0 {
		return false
	}
	_, ok := r.byName[normalizeTypeName(kind)]
	return ok
}

// labels returns the labels of a registered enum, or nil.
func (r *enumRegistry) labels(name string) []string {
	return r.byName[normalizeTypeName(name)]
}

func normalizeTypeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "[]")
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return strings.Trim(s, `"`)
}

// parseEnumLabels extracts the quoted labels of "('a', 'b''c')".
func parseEnumLabels(s string) []string {
	var labels []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inQuote {
			if c == '\'' {
				inQuote = true
				cur.Reset()
			}
			if c == ')' {
				break
			}
			continue
		}
		if c == '\'' {
			if i+1 < len(s) && s[i+1] == '\'' {
				cur.WriteByte('\'')
				i++
				continue
			}
			inQuote = false
			labels = append(labels, cur.String())
			continue
		}
		cur.WriteByte(c)
	}
	return labels
}
