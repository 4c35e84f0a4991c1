package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Store is the relational target of the loader.
type Store interface {
	// Upsert inserts rows or updates them in place on conflict with the
	// table's key. All rows are written by one statement.
	Upsert(ctx context.Context, table TableSpec, rows [][]any) (int64, error)
	// Count returns the number of rows in table matching filter.
	Count(ctx context.Context, table string, filter Filter) (int64, error)
	// SelectIDs returns the subset of ids present in table.column.
	SelectIDs(ctx context.Context, table, column string, ids []int64) ([]int64, error)
	RefreshViews(ctx context.Context) error
	Close() error
}

type TableSpec struct {
	Name     string
	Columns  []string
	Conflict []string
}

// Filter restricts a count to rows whose Column is one of IDs. The zero
// value counts the whole table.
type Filter struct {
	Column string
	IDs    []int64
}

func (f Filter) IsZero() bool {
	return f.Column == ""
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identPattern.MatchString(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}

type placeholderFunc func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// buildUpsert renders a multi-row INSERT ... ON CONFLICT statement. Both
// SQLite and PostgreSQL accept the excluded pseudo table.
func buildUpsert(table TableSpec, rows [][]any, ph placeholderFunc) (string, []any, error) {
	if err := checkIdent(table.Name); err != nil {
		return "", nil, err
	}
	if err := checkIdent(table.Columns...); err != nil {
		return "", nil, err
	}
	if len(table.Conflict) == 0 {
		return "", nil, fmt.Errorf("table %s has no conflict key", table.Name)
	}

	var b strings.Builder
	args := make([]any, 0, len(rows)*len(table.Columns))

	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table.Name, strings.Join(table.Columns, ", "))
	n := 0
	for i, row := range rows {
		if len(row) != len(table.Columns) {
			return "", nil, fmt.Errorf("%s row %d has %d values, want %d", table.Name, i, len(row), len(table.Columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			n++
			b.WriteString(ph(n))
		}
		b.WriteByte(')')
		args = append(args, row...)
	}

	conflict := make(map[string]bool, len(table.Conflict))
	for _, c := range table.Conflict {
		conflict[c] = true
	}
	updates := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		if !conflict[c] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	fmt.Fprintf(&b, " ON CONFLICT (%s)", strings.Join(table.Conflict, ", "))
	if len(updates) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		fmt.Fprintf(&b, " DO UPDATE SET %s", strings.Join(updates, ", "))
	}
	return b.String(), args, nil
}

// buildIn renders "column IN (...)" for ids.
func buildIn(column string, ids []int64, ph placeholderFunc) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = ph(i + 1)
		args[i] = id
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(marks, ", ")), args
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// chunkIDs splits ids so IN lists stay under driver parameter limits.
func chunkIDs(ids []int64, size int) [][]int64 {
	var chunks [][]int64
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}
