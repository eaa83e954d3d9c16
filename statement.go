package crud

import (
	"fmt"
	"strings"
)

// StatementKind tells whether a statement returns rows or an affected-row count
type StatementKind int

const (
	KindMutation StatementKind = iota
	KindQuery
)

func (k StatementKind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "mutation"
}

var queryKeywords = []string{"select", "with", "show", "pragma"}

// Statement is a single SQL statement with "?" placeholders and the values
// bound to them, in order.
type Statement struct {
	Text string
	Args []any
}

// NewStatement returns a Statement for text and args
func NewStatement(text string, args ...any) Statement {
	return Statement{Text: text, Args: args}
}

// Kind classifies the statement by its leading keyword
func (s Statement) Kind() StatementKind {
	t := strings.ToLower(strings.TrimSpace(s.Text))
	for _, kw := range queryKeywords {
		if strings.HasPrefix(t, kw) && (len(t) == len(kw) || !isIdentChar(t[len(kw)])) {
			return KindQuery
		}
	}
	return KindMutation
}

// Check returns an error when number of placeholders in Text is different
// from number of Args
func (s Statement) Check() error {
	n := countPlaceholders(s.Text)
	if n != len(s.Args) {
		return fmt.Errorf("statement has %d placeholders but %d arguments", n, len(s.Args))
	}
	return nil
}

// countPlaceholders counts "?" outside of quoted literals and identifiers
func countPlaceholders(q string) int {
	n := 0
	var quote byte
	for i := 0; i < len(q); i++ {
		ch := q[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '?':
			n++
		}
	}
	return n
}

func isIdentChar(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
