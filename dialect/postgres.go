package dialect

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/shrek82/jpersist/value"
)

// PostgreSQL dialect implementation, shared by lib/pq ("postgres") and pgx ("pgx")
type postgres struct{}

func (d *postgres) Name() string { return "postgres" }

func (d *postgres) DataTypeOf(kind value.Kind) string {
	switch kind {
	case value.Bool:
		return "boolean"
	case value.Int32:
		return "integer"
	case value.Int64:
		return "bigint"
	case value.Float32:
		return "real"
	case value.Float64:
		return "double precision"
	case value.String:
		return "varchar(255)"
	case value.Any:
		return "text"
	}
	panic(fmt.Sprintf("invalid sql type for kind %s", kind))
}

func (d *postgres) Quote(name string) string {
	// PostgreSQL uses double quotes for identifiers
	return fmt.Sprintf(`"%s"`, name)
}

func (d *postgres) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *postgres) InsertSQL(table string, columns []string, returning string) (string, bool) {
	var query string
	if len(columns) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", d.Quote(table))
	} else {
		cols, placeholders := insertParts(d, columns)
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Quote(table), cols, placeholders)
	}
	if returning == "" {
		return query, false
	}
	// no LastInsertId support in either driver
	return query + " RETURNING " + d.Quote(returning), true
}

func (d *postgres) CreateTableSQL(table string, columns []Column) string {
	return createTable(d, table, columns, func(col Column) string {
		if col.AutoIncrement {
			if col.Kind == value.Int32 {
				return fmt.Sprintf("%s SERIAL PRIMARY KEY", d.Quote(col.Name))
			}
			return fmt.Sprintf("%s BIGSERIAL PRIMARY KEY", d.Quote(col.Name))
		}
		return fmt.Sprintf("%s %s PRIMARY KEY", d.Quote(col.Name), d.DataTypeOf(col.Kind))
	})
}

func (d *postgres) HasTableSQL(table string) (string, []any) {
	return "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1", []any{table}
}

func (d *postgres) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", d.Quote(table))
}

func (d *postgres) Classify(err error) Constraint {
	var code string
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	case errors.As(err, &pgErr):
		code = pgErr.Code
	default:
		return ConstraintNone
	}
	switch code {
	case "23505":
		return ConstraintUnique
	case "23503":
		return ConstraintForeignKey
	}
	return ConstraintNone
}
