package dialect

import (
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/shrek82/jpersist/value"
)

// MySQL dialect implementation
type mysql struct{}

func (d *mysql) Name() string { return "mysql" }

func (d *mysql) DataTypeOf(kind value.Kind) string {
	switch kind {
	case value.Bool:
		return "boolean"
	case value.Int32:
		return "int"
	case value.Int64:
		return "bigint"
	case value.Float32:
		return "float"
	case value.Float64:
		return "double"
	case value.String:
		return "varchar(255)"
	case value.Any:
		return "text"
	}
	panic(fmt.Sprintf("invalid sql type for kind %s", kind))
}

func (d *mysql) Quote(name string) string {
	return fmt.Sprintf("`%s`", name)
}

func (d *mysql) Placeholder(index int) string {
	return "?"
}

func (d *mysql) InsertSQL(table string, columns []string, returning string) (string, bool) {
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s () VALUES ()", d.Quote(table)), false
	}
	cols, placeholders := insertParts(d, columns)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Quote(table), cols, placeholders), false
}

func (d *mysql) CreateTableSQL(table string, columns []Column) string {
	return createTable(d, table, columns, func(col Column) string {
		def := fmt.Sprintf("%s %s PRIMARY KEY", d.Quote(col.Name), d.DataTypeOf(col.Kind))
		if col.AutoIncrement {
			def += " AUTO_INCREMENT"
		}
		return def
	})
}

func (d *mysql) HasTableSQL(table string) (string, []any) {
	return "SELECT count(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{table}
}

func (d *mysql) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.Quote(table))
}

func (d *mysql) Classify(err error) Constraint {
	var myErr *mysqldriver.MySQLError
	if !errors.As(err, &myErr) {
		return ConstraintNone
	}
	switch myErr.Number {
	case 1062:
		return ConstraintUnique
	case 1451, 1452:
		return ConstraintForeignKey
	}
	return ConstraintNone
}
