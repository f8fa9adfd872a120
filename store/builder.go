package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/shrek82/jpersist/dialect"
)

// builder assembles the single-table statements a Tx issues. Conditions are
// written with "?" and rewritten to the dialect's placeholders on Build.
type builder struct {
	dialect   dialect.Dialect
	table     string
	whereExpr string
	whereArgs []any
	sb        strings.Builder
}

var builderPool = sync.Pool{
	New: func() any {
		return &builder{}
	},
}

func newBuilder(d dialect.Dialect, table string) *builder {
	b := builderPool.Get().(*builder)
	b.reset(d)
	b.table = table
	return b
}

func putBuilder(b *builder) {
	b.reset(nil)
	builderPool.Put(b)
}

func (b *builder) reset(d dialect.Dialect) {
	b.dialect = d
	b.table = ""
	b.whereExpr = ""
	b.whereArgs = b.whereArgs[:0]
	b.sb.Reset()
}

// where adds an AND condition.
func (b *builder) where(cond string, args ...any) *builder {
	if cond == "" {
		return b
	}
	if b.whereExpr == "" {
		b.whereExpr = "(" + cond + ")"
	} else {
		b.whereExpr = b.whereExpr + " AND (" + cond + ")"
	}
	b.whereArgs = append(b.whereArgs, args...)
	return b
}

func (b *builder) predicates(preds []Predicate) *builder {
	for _, p := range preds {
		col := b.dialect.Quote(p.Column)
		switch p.op {
		case opEq:
			if p.Values[0] == nil {
				b.where(col + " IS NULL")
			} else {
				b.where(col+" = ?", p.Values[0])
			}
		case opIn, opNotIn:
			if len(p.Values) == 0 {
				if p.op == opIn {
					b.where("1 = 0")
				}
				continue
			}
			kw := " IN ("
			if p.op == opNotIn {
				kw = " NOT IN ("
			}
			b.where(col+kw+strings.TrimSuffix(strings.Repeat("?, ", len(p.Values)), ", ")+")", p.Values...)
		}
	}
	return b
}

func (b *builder) replacePlaceholders(sql string) string {
	if !strings.Contains(sql, "?") || b.dialect.Placeholder(1) == "?" {
		return sql
	}

	// sql was produced from b.sb, so the buffer can be reused.
	b.sb.Reset()

	index := 1
	for {
		idx := strings.Index(sql, "?")
		if idx == -1 {
			b.sb.WriteString(sql)
			break
		}

		b.sb.WriteString(sql[:idx])
		b.sb.WriteString(b.dialect.Placeholder(index))
		sql = sql[idx+1:]
		index++
	}
	return b.sb.String()
}

// sortedColumns returns the row's columns in a deterministic order.
func sortedColumns(row map[string]any) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// buildInsert generates the INSERT statement; scan reports whether the
// generated key comes back as a result row.
func (b *builder) buildInsert(row map[string]any, returning string) (sql string, args []any, scan bool) {
	columns := sortedColumns(row)
	args = make([]any, len(columns))
	for i, col := range columns {
		args[i] = row[col]
	}
	sql, scan = b.dialect.InsertSQL(b.table, columns, returning)
	return sql, args, scan
}

// buildUpdate generates the UPDATE statement.
func (b *builder) buildUpdate(data map[string]any) (string, []any) {
	b.sb.Reset()

	args := make([]any, 0, len(data)+len(b.whereArgs))

	b.sb.WriteString("UPDATE ")
	b.sb.WriteString(b.dialect.Quote(b.table))
	b.sb.WriteString(" SET ")

	for i, col := range sortedColumns(data) {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(b.dialect.Quote(col))
		b.sb.WriteString(" = ?")
		args = append(args, data[col])
	}

	if b.whereExpr != "" {
		b.sb.WriteString(" WHERE ")
		b.sb.WriteString(b.whereExpr)
		args = append(args, b.whereArgs...)
	}

	return b.replacePlaceholders(b.sb.String()), args
}

// buildDelete generates the DELETE statement.
func (b *builder) buildDelete() (string, []any) {
	b.sb.Reset()
	args := make([]any, 0, len(b.whereArgs))

	b.sb.WriteString("DELETE FROM ")
	b.sb.WriteString(b.dialect.Quote(b.table))

	if b.whereExpr != "" {
		b.sb.WriteString(" WHERE ")
		b.sb.WriteString(b.whereExpr)
		args = append(args, b.whereArgs...)
	}

	return b.replacePlaceholders(b.sb.String()), args
}

// buildCount generates a SELECT count(*) over the current conditions.
func (b *builder) buildCount() (string, []any) {
	b.sb.Reset()
	args := make([]any, 0, len(b.whereArgs))

	b.sb.WriteString("SELECT count(*) FROM ")
	b.sb.WriteString(b.dialect.Quote(b.table))

	if b.whereExpr != "" {
		b.sb.WriteString(" WHERE ")
		b.sb.WriteString(b.whereExpr)
		args = append(args, b.whereArgs...)
	}

	return b.replacePlaceholders(b.sb.String()), args
}
